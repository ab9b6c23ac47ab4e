package api

import (
	"context"
	"log/slog"
	"net/http"

	"gemchat/internal/interfaces"
)

type SessionHandler struct {
	session interfaces.SessionService
}

func NewSessionHandler(session interfaces.SessionService) *SessionHandler {
	return &SessionHandler{session: session}
}

// commandContext detaches auth commands from the request: the session is shared,
// so a client hanging up must not turn its command into a failure.
func commandContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// GetSession godoc
// @Summary      Get the session state
// @Tags         Session
// @Produce      json
// @Success      200  {object}  model.SessionState
// @Router       /v1/session [get]
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.session.State())
}

// SessionEvents godoc
// @Summary      Stream session states
// @Description  Sends the current session state, then every change, as server-sent events.
// @Tags         Session
// @Produce      text/event-stream
// @Success      200  {object}  model.SessionState
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/session/events [get]
func (h *SessionHandler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		sendStreamError(w, "Streaming is not supported.")
		return
	}
	setStreamHeaders(w)

	for state := range h.session.Watch(r.Context()) {
		if err := writeStreamEvent(w, state); err != nil {
			slog.Info("Session stream closed by client", "error", err)
			return
		}
	}
}

// Login godoc
// @Summary      Sign in
// @Description  Provider failures are reported in the returned state, not as an HTTP error.
// @Tags         Session
// @Accept       json
// @Produce      json
// @Param        credentials  body  CredentialsRequest  true  "Email and password"
// @Success      200          {object}  model.SessionState
// @Failure      400          {object}  ErrorResponse
// @Failure      409          {object}  ErrorResponse
// @Router       /v1/session/login [post]
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.session.Login(commandContext(r), req.Email, req.Password); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.session.State())
}

// Register godoc
// @Summary      Create an account
// @Description  The account is not signed in.
// @Tags         Session
// @Accept       json
// @Produce      json
// @Param        credentials  body  CredentialsRequest  true  "Email and password"
// @Success      200          {object}  model.SessionState
// @Failure      400          {object}  ErrorResponse
// @Failure      409          {object}  ErrorResponse
// @Router       /v1/session/register [post]
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.session.Register(commandContext(r), req.Email, req.Password); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.session.State())
}

// PasswordReset godoc
// @Summary      Send a password reset email
// @Tags         Session
// @Accept       json
// @Produce      json
// @Param        request  body  PasswordResetRequest  true  "Account email"
// @Success      200      {object}  model.SessionState
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Router       /v1/session/password-reset [post]
func (h *SessionHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.session.SendPasswordReset(commandContext(r), req.Email); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.session.State())
}

// Logout godoc
// @Summary      Sign out
// @Description  Always ends signed out and supersedes a pending command.
// @Tags         Session
// @Produce      json
// @Success      200  {object}  model.SessionState
// @Router       /v1/session/logout [post]
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(commandContext(r))
	respondWithJSON(w, http.StatusOK, h.session.State())
}

// Acknowledge godoc
// @Summary      Dismiss an informational state
// @Description  Returns the registered, reset-sent and failed states to signed out.
// @Tags         Session
// @Produce      json
// @Success      200  {object}  model.SessionState
// @Router       /v1/session/acknowledge [post]
func (h *SessionHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.session.Acknowledge()
	respondWithJSON(w, http.StatusOK, h.session.State())
}
