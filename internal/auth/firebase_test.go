package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirebaseProvider(t *testing.T) {
	var capturedPath, capturedKey string
	var capturedBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedKey = r.URL.Query().Get("key")
		capturedBody = map[string]any{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1/accounts:signInWithPassword" && capturedBody["password"] == "secret1":
			_, _ = w.Write([]byte(`{"localId":"uid-1","email":"ayse@example.com","idToken":"tok"}`))
		case r.URL.Path == "/v1/accounts:signInWithPassword":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"INVALID_PASSWORD"}}`))
		case r.URL.Path == "/v1/accounts:signUp":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"WEAK_PASSWORD : Password should be at least 6 characters"}}`))
		case r.URL.Path == "/v1/accounts:sendOobCode":
			_, _ = w.Write([]byte(`{"email":"ayse@example.com"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := NewFirebaseProvider(server.URL, "api-key", 5*time.Second)
	ctx := context.Background()

	t.Run("Login Success", func(t *testing.T) {
		// ACT
		identity, err := provider.Login(ctx, "ayse@example.com", "secret1")

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, "uid-1", identity.UID)
		assert.Equal(t, "tok", identity.Token)
		assert.Equal(t, "/v1/accounts:signInWithPassword", capturedPath)
		assert.Equal(t, "api-key", capturedKey)
		assert.Equal(t, true, capturedBody["returnSecureToken"])

		current := provider.CurrentIdentity()
		require.NotNil(t, current)
		assert.Equal(t, "ayse@example.com", current.Email)
	})

	t.Run("SignOut clears the identity", func(t *testing.T) {
		require.NoError(t, provider.SignOut(ctx))
		assert.Nil(t, provider.CurrentIdentity())
	})

	t.Run("Login Failure - wrong password", func(t *testing.T) {
		_, err := provider.Login(ctx, "ayse@example.com", "nope")

		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, CodeInvalidPassword, authErr.Code)
		assert.Contains(t, authErr.Error(), "The password is invalid")
	})

	t.Run("Register Failure - weak password", func(t *testing.T) {
		err := provider.Register(ctx, "ayse@example.com", "123")

		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, CodeWeakPassword, authErr.Code)
		assert.Contains(t, authErr.Error(), "Password should be at least")
	})

	t.Run("SendPasswordReset Success", func(t *testing.T) {
		err := provider.SendPasswordReset(ctx, "ayse@example.com")

		require.NoError(t, err)
		assert.Equal(t, "/v1/accounts:sendOobCode", capturedPath)
		assert.Equal(t, "PASSWORD_RESET", capturedBody["requestType"])
	})
}

func TestFirebaseProvider_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	provider := NewFirebaseProvider(url, "api-key", time.Second)
	_, err := provider.Login(context.Background(), "ayse@example.com", "secret1")

	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, CodeNetwork, authErr.Code)
	assert.Contains(t, err.Error(), "A network error")
}

func TestFirebaseProvider_APIKeyIsEscaped(t *testing.T) {
	var capturedKey, capturedQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedKey = r.URL.Query().Get("key")
		capturedQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"email":"ayse@example.com"}`))
	}))
	defer server.Close()

	provider := NewFirebaseProvider(server.URL, "k+y&alt=media #1", time.Second)
	require.NoError(t, provider.SendPasswordReset(context.Background(), "ayse@example.com"))

	assert.Equal(t, "k+y&alt=media #1", capturedKey)
	assert.NotContains(t, capturedQuery, "alt=media")
}

func TestDecodeFirebaseError(t *testing.T) {
	t.Run("Unknown code keeps the detail", func(t *testing.T) {
		err := decodeFirebaseError(400, []byte(`{"error":{"message":"TOO_MANY_ATTEMPTS_TRY_LATER : Try again later."}}`))
		assert.EqualError(t, err, "Try again later.")
	})

	t.Run("Body that is not JSON", func(t *testing.T) {
		err := decodeFirebaseError(502, []byte("bad gateway"))

		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "HTTP_502", authErr.Code)
		assert.Equal(t, "bad gateway", authErr.Message)
	})
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "ay****@example.com", MaskEmail("ayse@example.com"))
	assert.Equal(t, "a****@x.io", MaskEmail("a@x.io"))
	assert.Equal(t, "no****", MaskEmail("noatsign"))
}
