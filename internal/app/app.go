package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"gemchat/internal/api"
	"gemchat/internal/auth"
	"gemchat/internal/config"
	"gemchat/internal/database"
	"gemchat/internal/llm"
	"gemchat/internal/metrics"
	"gemchat/internal/repository"
	"gemchat/internal/service"
)

// App holds every long-lived component of a gemchat process.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Repo    repository.Repository
	Session *service.SessionStore
	Chat    *service.ChatController
	Metrics *metrics.Metrics
	Server  *http.Server

	scope service.ScopeFunc
	rdb   *redis.Client
	fsDB  *firestore.Client
}

// NewApp builds the components selected by cfg. On error everything opened so
// far is closed again.
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg, Metrics: metrics.NewMetrics()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if cfg.NeedsDatabase() {
		a.DB, err = database.InitDB(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)
	}

	provider, err := a.newAuthProvider()
	if err != nil {
		return nil, err
	}
	if a.Repo, err = a.newRepository(ctx); err != nil {
		return nil, err
	}
	completer, err := a.newCompleter(ctx)
	if err != nil {
		return nil, err
	}

	a.Session = service.NewSessionStore(provider, a.Metrics)
	a.scope = service.IdentityScope(a.Session, cfg.AnonymousScope)
	a.Chat = service.NewChatController(a.Repo, completer, a.scope, service.WithMetrics(a.Metrics))

	router := api.NewRouter(api.NewSessionHandler(a.Session), api.NewChatHandler(a.Chat), a.Metrics)
	a.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}
	return a, nil
}

func (a *App) newAuthProvider() (auth.Provider, error) {
	switch a.Config.AuthBackend {
	case config.AuthFirebase:
		return auth.NewFirebaseProvider(a.Config.FirebaseAuthURL, a.Config.FirebaseAPIKey, a.Config.CompletionTimeout), nil
	case config.AuthLocal:
		return auth.NewLocalProvider(a.DB, a.Config.JWTSecret, a.Config.JWTTTL), nil
	default:
		return nil, fmt.Errorf("unknown auth backend %q", a.Config.AuthBackend)
	}
}

func (a *App) newRepository(ctx context.Context) (repository.Repository, error) {
	switch a.Config.StoreBackend {
	case config.StoreMemory:
		return repository.NewMemoryRepository(), nil
	case config.StoreSQLite:
		return repository.NewSQLiteRepository(a.DB), nil
	case config.StoreRedis:
		a.rdb = redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.Config.RedisAddr, err)
		}
		slog.Info("Successfully connected to Redis.", "addr", a.Config.RedisAddr)
		return repository.NewRedisRepository(a.rdb), nil
	case config.StoreFirestore:
		client, err := repository.NewFirestoreClient(ctx, a.Config.FirestoreProject)
		if err != nil {
			return nil, err
		}
		a.fsDB = client
		return repository.NewFirestoreRepository(client), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.Config.StoreBackend)
	}
}

func (a *App) newCompleter(ctx context.Context) (llm.Completer, error) {
	var completer llm.Completer
	switch a.Config.CompletionBackend {
	case config.CompletionGemini:
		completer = llm.NewGeminiProvider(a.Config.GeminiURL, a.Config.GeminiAPIKey, a.Config.GeminiModel, a.Config.CompletionTimeout)
	case config.CompletionGenAI:
		p, err := llm.NewGenAIProvider(ctx, a.Config.GeminiAPIKey, a.Config.GeminiModel)
		if err != nil {
			return nil, err
		}
		completer = p
	case config.CompletionOllama:
		waitForOllama(ctx, a.Config.OllamaURL, 30*time.Second)
		completer = llm.NewOllamaProvider(a.Config.OllamaURL, a.Config.OllamaModel, a.Config.CompletionTimeout)
	default:
		return nil, fmt.Errorf("unknown completion backend %q", a.Config.CompletionBackend)
	}
	return llm.NewRateLimited(completer, a.Config.CompletionRateLimit), nil
}

// FollowSession restarts the chat controller whenever the store scope changes:
// a sign-in switches to the user's conversations, a sign-out to the anonymous
// scope or to an empty state. It returns when ctx is done.
func (a *App) FollowSession(ctx context.Context) error {
	a.Session.CheckCurrentIdentity()

	var current string
	started := false
	for range a.Session.Watch(ctx) {
		scope, ok := a.scope()
		if ok == started && scope == current {
			continue
		}
		a.Chat.Clear()
		started, current = false, ""
		if ok {
			slog.Info("Loading conversations", "scope", scope)
			a.Chat.Start()
			started, current = true, scope
		}
	}
	a.Chat.Clear()
	return nil
}

// Run serves the HTTP API until ctx is cancelled, then shuts the server down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.FollowSession(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases the store and the clients behind it.
func (a *App) Close() error {
	var errs []error
	if a.Repo != nil {
		errs = append(errs, a.Repo.Close())
	}
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.fsDB != nil {
		errs = append(errs, a.fsDB.Close())
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogConfigSource reports where the configuration came from.
func LogConfigSource() {
	if config.ConfigFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", config.ConfigFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

// SetupLogger installs the JSON logger at the given level as the default.
func SetupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// waitForOllama polls the Ollama server until it answers or wait runs out. A
// server that never comes up is only logged; completions will then fail.
func waitForOllama(ctx context.Context, ollamaURL string, wait time.Duration) {
	slog.Info("Waiting for Ollama to be ready...")
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(wait)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ollamaURL, nil)
		if err != nil {
			slog.Warn("Invalid Ollama URL", "url", ollamaURL, "error", err)
			return
		}
		resp, err := client.Do(req)
		if resp != nil {
			_ = resp.Body.Close()
		}
		if err == nil && resp.StatusCode == http.StatusOK {
			slog.Info("Ollama is ready.")
			return
		}
		if time.Now().After(deadline) {
			slog.Warn("Ollama is not ready, continuing anyway", "url", ollamaURL, "error", err)
			return
		}
		slog.Debug("Ollama not ready yet, retrying in 3 seconds...", "url", ollamaURL, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}
