package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemchat/internal/config"
	"gemchat/internal/model"
)

func newGeminiServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": reply}}}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, geminiURL string) *config.Config {
	return &config.Config{
		AppPort:           0,
		LogLevel:          "DEBUG",
		AuthBackend:       config.AuthLocal,
		JWTSecret:         "test-secret",
		JWTTTL:            time.Hour,
		StoreBackend:      config.StoreMemory,
		DatabasePath:      filepath.Join(t.TempDir(), "gemchat.db"),
		CompletionBackend: config.CompletionGemini,
		GeminiAPIKey:      "test-key",
		GeminiURL:         geminiURL,
		GeminiModel:       "gemini-test",
		CompletionTimeout: 5 * time.Second,
	}
}

func TestNewApp(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		cfg := testConfig(t, newGeminiServer(t, "hi").URL)

		app, err := NewApp(context.Background(), cfg)
		require.NoError(t, err)
		defer func() { require.NoError(t, app.Close()) }()

		assert.NotNil(t, app.DB)
		assert.NotNil(t, app.Repo)
		assert.NotNil(t, app.Server)
		assert.Equal(t, model.SessionSignedOut, app.Session.State().Status)
	})

	t.Run("Failure - unreachable redis", func(t *testing.T) {
		cfg := testConfig(t, "http://127.0.0.1:1")
		cfg.StoreBackend = config.StoreRedis
		cfg.RedisAddr = "127.0.0.1:1"

		app, err := NewApp(context.Background(), cfg)

		require.Error(t, err)
		assert.Nil(t, app)
		assert.Contains(t, err.Error(), "failed to connect to redis")
	})
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// TestApp_EndToEnd drives a full sign-up, sign-in and send through the HTTP API.
func TestApp_EndToEnd(t *testing.T) {
	// ARRANGE
	cfg := testConfig(t, newGeminiServer(t, "Hi there").URL)
	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = app.FollowSession(ctx) }()

	srv := httptest.NewServer(app.Server.Handler)
	defer srv.Close()
	creds := `{"email":"ayse@example.com","password":"secret1"}`

	// ACT
	resp := postJSON(t, srv.URL+"/api/v1/session/register", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	postJSON(t, srv.URL+"/api/v1/session/acknowledge", "")
	resp = postJSON(t, srv.URL+"/api/v1/session/login", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return app.Chat.State().ActiveConversationID != ""
	}, 2*time.Second, 10*time.Millisecond, "signing in should open a conversation")
	active := app.Chat.State().ActiveConversationID

	resp = postJSON(t, srv.URL+"/api/v1/chats/messages", `{"content":"hello"}`)

	// ASSERT
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool {
		return len(app.Chat.State().Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)

	st := app.Chat.State()
	assert.Equal(t, active, st.ActiveConversationID)
	assert.Equal(t, "hello", st.Messages[0].Content)
	assert.Equal(t, model.OriginUser, st.Messages[0].Origin)
	assert.Equal(t, "Hi there", st.Messages[1].Content)
	assert.Equal(t, model.OriginAssistant, st.Messages[1].Origin)
	assert.Empty(t, st.Error)
	assert.False(t, st.Loading)

	require.Eventually(t, func() bool {
		return len(app.Chat.State().ConversationIDs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{active}, app.Chat.State().ConversationIDs)

	// Signing out without an anonymous scope empties the chat state.
	postJSON(t, srv.URL+"/api/v1/session/logout", "")
	require.Eventually(t, func() bool {
		return app.Chat.State().ActiveConversationID == ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApp_SendWithoutSignIn(t *testing.T) {
	cfg := testConfig(t, newGeminiServer(t, "unused").URL)
	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close()) }()

	app.Chat.StartNewConversation()
	srv := httptest.NewServer(app.Server.Handler)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/v1/chats/messages", `{"content":"hello"}`)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestApp_AnonymousScope(t *testing.T) {
	cfg := testConfig(t, newGeminiServer(t, "welcome").URL)
	cfg.AnonymousScope = "public"
	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = app.FollowSession(ctx) }()

	require.Eventually(t, func() bool {
		return app.Chat.State().ActiveConversationID != ""
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, app.Chat.SendMessage(context.Background(), "hello"))
	require.Eventually(t, func() bool {
		return len(app.Chat.State().Messages) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSetupLogger(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	SetupLogger("debug")
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	SetupLogger("unknown")
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
}
