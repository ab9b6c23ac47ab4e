package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults with required secrets from the environment", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("GEMINI_API_KEY", "key")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 8000, cfg.AppPort)
		assert.Equal(t, AuthLocal, cfg.AuthBackend)
		assert.Equal(t, StoreSQLite, cfg.StoreBackend)
		assert.Equal(t, CompletionGemini, cfg.CompletionBackend)
		assert.Equal(t, "public", cfg.AnonymousScope)
		assert.Equal(t, 60*time.Second, cfg.CompletionTimeout)
		assert.True(t, cfg.NeedsDatabase())
	})

	t.Run("Environment overrides", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("AUTH_BACKEND", "firebase")
		t.Setenv("FIREBASE_API_KEY", "fb")
		t.Setenv("STORE_BACKEND", "redis")
		t.Setenv("COMPLETION_BACKEND", "ollama")
		t.Setenv("COMPLETION_TIMEOUT", "5s")
		t.Setenv("ANONYMOUS_SCOPE", "")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, AuthFirebase, cfg.AuthBackend)
		assert.Equal(t, StoreRedis, cfg.StoreBackend)
		assert.Equal(t, 5*time.Second, cfg.CompletionTimeout)
		assert.Empty(t, cfg.AnonymousScope)
		assert.False(t, cfg.NeedsDatabase())
	})

	t.Run("Failure - missing credential", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("GEMINI_API_KEY", "")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "GEMINI_API_KEY")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AuthBackend:       AuthLocal,
			JWTSecret:         "s",
			StoreBackend:      StoreMemory,
			CompletionBackend: CompletionOllama,
			OllamaURL:         "http://localhost:11434",
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.StoreBackend = "mongo"
	assert.ErrorContains(t, cfg.Validate(), "unknown STORE_BACKEND")

	cfg = valid()
	cfg.StoreBackend = StoreFirestore
	assert.ErrorContains(t, cfg.Validate(), "FIRESTORE_PROJECT")

	cfg = valid()
	cfg.AuthBackend = "ldap"
	assert.ErrorContains(t, cfg.Validate(), "unknown AUTH_BACKEND")

	cfg = valid()
	cfg.CompletionRateLimit = -1
	assert.Error(t, cfg.Validate())
}
