package llm

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

// TestOllamaProvider runs the client against an httptest server standing in for
// the Ollama API, so no real model is needed.
func TestOllamaProvider(t *testing.T) {
	// These variables capture the request received by the mock server.
	var capturedMethod, capturedPath string
	var capturedReq GenerateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedMethod = r.Method
		capturedPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&capturedReq))

		if capturedReq.Prompt == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("model not loaded"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"model":"llama3","response":"hi there","done":true}`))
		assert.NoError(t, err)
	}))
	defer server.Close()

	// ARRANGE: point the provider at the mock server.
	provider := NewOllamaProvider(server.URL, "llama3", 5*time.Second)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// ACT
		reply, err := provider.Complete(ctx, "hello")

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, "hi there", reply)
		assert.Equal(t, http.MethodPost, capturedMethod)
		assert.Equal(t, "/api/generate", capturedPath)
		assert.Equal(t, "llama3", capturedReq.Model)
		assert.False(t, capturedReq.Stream)
	})

	t.Run("Failure - non-200 status", func(t *testing.T) {
		_, err := provider.Complete(ctx, "boom")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-200 status 500")
		assert.Contains(t, err.Error(), "model not loaded")
	})
}
