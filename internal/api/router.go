package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	// Registers the API definitions served under /api/swagger.
	_ "gemchat/docs"
	"gemchat/internal/metrics"
)

// NewRouter creates and configures a new chi router with all the application's routes.
func NewRouter(sessionHandler *SessionHandler, chatHandler *ChatHandler, m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()

	// --- Global Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(instrument(m))

	// --- Public Routes ---
	r.Get("/api/swagger/*", httpSwagger.WrapHandler)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", m.Handler())

	// --- API Version 1 Routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// Quick commands get a request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			// --- Session ---
			r.Get("/session", sessionHandler.GetSession)
			r.Post("/session/login", sessionHandler.Login)
			r.Post("/session/register", sessionHandler.Register)
			r.Post("/session/password-reset", sessionHandler.PasswordReset)
			r.Post("/session/logout", sessionHandler.Logout)
			r.Post("/session/acknowledge", sessionHandler.Acknowledge)

			// --- Chats ---
			r.Get("/chats", chatHandler.GetChats)
			r.Post("/chats", chatHandler.StartConversation)
			r.Put("/chats/active", chatHandler.SwitchConversation)
		})

		// Streams and completions hold the connection open and must not time out.
		r.Group(func(r chi.Router) {
			r.Get("/session/events", sessionHandler.SessionEvents)
			r.Get("/chats/events", chatHandler.ChatEvents)
			r.Post("/chats/messages", chatHandler.SendMessage)
		})
	})

	return r
}
