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

func TestGeminiProvider(t *testing.T) {
	var capturedPath, capturedKey string
	var capturedReq geminiRequest
	response := `{"candidates":[{"content":{"role":"model","parts":[{"text":"hi there"},{"text":"ignored"}]}}]}`
	status := http.StatusOK

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedKey = r.URL.Query().Get("key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&capturedReq))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	defer server.Close()

	provider := NewGeminiProvider(server.URL+"/", "key-123", "gemini-1.5-pro", 5*time.Second)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// ACT
		reply, err := provider.Complete(ctx, "hello")

		// ASSERT
		require.NoError(t, err)
		assert.Equal(t, "hi there", reply)
		assert.Equal(t, "/v1/models/gemini-1.5-pro:generateContent", capturedPath)
		assert.Equal(t, "key-123", capturedKey)
		require.Len(t, capturedReq.Contents, 1)
		assert.Equal(t, "hello", capturedReq.Contents[0].Parts[0].Text)
	})

	t.Run("Success - no candidates", func(t *testing.T) {
		response = `{"candidates":[]}`
		defer func() { response = `{}` }()

		reply, err := provider.Complete(ctx, "hello")

		require.NoError(t, err)
		assert.Empty(t, reply)
	})

	t.Run("Failure - non-200 status", func(t *testing.T) {
		status = http.StatusForbidden
		response = `{"error":{"message":"API key not valid"}}`
		defer func() { status = http.StatusOK }()

		_, err := provider.Complete(ctx, "hello")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-200 status 403")
		assert.Contains(t, err.Error(), "API key not valid")
	})
}

func TestNewGenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewGenAIProvider(context.Background(), "", "gemini-1.5-pro")
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}
