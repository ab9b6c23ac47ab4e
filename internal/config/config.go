package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by the *_BACKEND settings.
const (
	AuthLocal    = "local"
	AuthFirebase = "firebase"

	StoreMemory    = "memory"
	StoreSQLite    = "sqlite"
	StoreRedis     = "redis"
	StoreFirestore = "firestore"

	CompletionGemini = "gemini"
	CompletionGenAI  = "genai"
	CompletionOllama = "ollama"
)

type Config struct {
	AppPort  int    `mapstructure:"APP_PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	AuthBackend     string        `mapstructure:"AUTH_BACKEND"`
	FirebaseAPIKey  string        `mapstructure:"FIREBASE_API_KEY"`
	FirebaseAuthURL string        `mapstructure:"FIREBASE_AUTH_URL"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	JWTTTL          time.Duration `mapstructure:"JWT_TTL"`

	StoreBackend     string `mapstructure:"STORE_BACKEND"`
	DatabasePath     string `mapstructure:"DATABASE_PATH"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	FirestoreProject string `mapstructure:"FIRESTORE_PROJECT"`

	CompletionBackend   string        `mapstructure:"COMPLETION_BACKEND"`
	GeminiAPIKey        string        `mapstructure:"GEMINI_API_KEY"`
	GeminiURL           string        `mapstructure:"GEMINI_URL"`
	GeminiModel         string        `mapstructure:"GEMINI_MODEL"`
	OllamaURL           string        `mapstructure:"OLLAMA_URL"`
	OllamaModel         string        `mapstructure:"OLLAMA_MODEL"`
	CompletionTimeout   time.Duration `mapstructure:"COMPLETION_TIMEOUT"`
	CompletionRateLimit float64       `mapstructure:"COMPLETION_RATE_LIMIT"`

	// AnonymousScope is the store partition used while nobody is signed in.
	// Empty disables unauthenticated use.
	AnonymousScope string `mapstructure:"ANONYMOUS_SCOPE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", 8000)
	v.SetDefault("LOG_LEVEL", "INFO")

	v.SetDefault("AUTH_BACKEND", AuthLocal)
	v.SetDefault("FIREBASE_API_KEY", "")
	v.SetDefault("FIREBASE_AUTH_URL", "https://identitytoolkit.googleapis.com")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", 7*24*time.Hour)

	v.SetDefault("STORE_BACKEND", StoreSQLite)
	v.SetDefault("DATABASE_PATH", "/data/gemchat.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("FIRESTORE_PROJECT", "")

	v.SetDefault("COMPLETION_BACKEND", CompletionGemini)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-pro")
	v.SetDefault("OLLAMA_URL", "http://ollama:11434")
	v.SetDefault("OLLAMA_MODEL", "llama3.2")
	v.SetDefault("COMPLETION_TIMEOUT", 60*time.Second)
	v.SetDefault("COMPLETION_RATE_LIMIT", 0.0)

	v.SetDefault("ANONYMOUS_SCOPE", "public")
}

// LoadConfig reads configuration from an optional .env file and the environment.
// Environment variables win over the file; defaults fill the rest.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ConfigFileUsed = v.ConfigFileUsed()

	return &cfg, nil
}

// ConfigFileUsed is the path of the .env file picked up by the last LoadConfig
// call, or empty when only the environment was used.
var ConfigFileUsed string

// Validate checks that the selected backends are known and have what they need.
func (c *Config) Validate() error {
	switch c.AuthBackend {
	case AuthLocal:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET must be set for the %q auth backend", c.AuthBackend)
		}
	case AuthFirebase:
		if c.FirebaseAPIKey == "" {
			return fmt.Errorf("FIREBASE_API_KEY must be set for the %q auth backend", c.AuthBackend)
		}
	default:
		return fmt.Errorf("unknown AUTH_BACKEND %q", c.AuthBackend)
	}

	switch c.StoreBackend {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR must be set for the %q store backend", c.StoreBackend)
		}
	case StoreFirestore:
		if c.FirestoreProject == "" {
			return fmt.Errorf("FIRESTORE_PROJECT must be set for the %q store backend", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.CompletionBackend {
	case CompletionGemini, CompletionGenAI:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set for the %q completion backend", c.CompletionBackend)
		}
	case CompletionOllama:
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL must be set for the %q completion backend", c.CompletionBackend)
		}
	default:
		return fmt.Errorf("unknown COMPLETION_BACKEND %q", c.CompletionBackend)
	}

	if c.CompletionRateLimit < 0 {
		return fmt.Errorf("COMPLETION_RATE_LIMIT must not be negative")
	}
	return nil
}

// NeedsDatabase reports whether any selected backend keeps its data in SQLite.
func (c *Config) NeedsDatabase() bool {
	return c.AuthBackend == AuthLocal || c.StoreBackend == StoreSQLite
}
