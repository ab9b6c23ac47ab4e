package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gemchat/internal/app"
	"gemchat/internal/auth"
	"gemchat/internal/config"
	"gemchat/internal/database"
	"gemchat/internal/terminal"
)

var terminationSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

var (
	rootCmd = &cobra.Command{
		Use:           "gemchat",
		Short:         "Chat with a Gemini model, with per-user conversation history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app.SetupLogger(cfg.LogLevel)
			app.LogConfigSource()

			ctx, stop := signal.NotifyContext(cmd.Context(), terminationSignals...)
			defer stop()

			a, err := app.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					slog.Error("Failed to close application", "error", err)
				}
			}()
			return a.Run(ctx)
		},
	}

	verbose bool

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Chat in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if verbose {
				app.SetupLogger(cfg.LogLevel)
			} else {
				app.SetupLogger("ERROR")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), terminationSignals...)
			defer stop()

			a, err := app.NewApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			go func() { _ = a.FollowSession(ctx) }()
			return terminal.NewClient(a.Session, a.Chat, cmd.OutOrStdout()).Run(ctx, cmd.InOrStdin())
		},
	}

	resetPasswordCmd = &cobra.Command{
		Use:   "reset-password <token> <new-password>",
		Short: "Redeem a password reset token issued by the local auth backend",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app.SetupLogger(cfg.LogLevel)
			if cfg.AuthBackend != config.AuthLocal {
				return fmt.Errorf("reset-password needs AUTH_BACKEND=%s, got %q", config.AuthLocal, cfg.AuthBackend)
			}

			db, err := database.InitDB(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer db.Close()

			provider := auth.NewLocalProvider(db, cfg.JWTSecret, cfg.JWTTTL)
			if err := provider.ResetPassword(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Sign in with the new password.")
			return nil
		},
	}
)

func init() {
	chatCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log at LOG_LEVEL instead of errors only")
	rootCmd.AddCommand(serveCmd, chatCmd, resetPasswordCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return nil, err
	}
	return cfg, nil
}

// @title        gemchat API
// @version      1.0
// @description  Session and chat endpoints of the gemchat server.
// @BasePath     /api
func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
