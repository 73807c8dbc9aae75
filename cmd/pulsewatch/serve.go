package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/pulsewatch"
	"github.com/jpalmerr/pulsewatch/config"
)

const (
	shutdownTimeout   = 10 * time.Second
	sentryFlushWindow = 2 * time.Second
)

// newLogger creates a JSON logger for CLI use at the configured level.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// serveCmd starts probing and serves the dashboard.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start probing and serve the dashboard",
	Long: `Start Pulsewatch.

The server will:
  - Load configuration from the specified YAML file
  - Apply PULSEWATCH_* environment overrides
  - Check every configured endpoint on each cycle
  - Write the status document after every cycle
  - Serve the dashboard, status API and metrics if server.port is set
  - Reload the configuration whenever the file changes

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  pulsewatch serve -c config.yaml
  pulsewatch serve --config /etc/pulsewatch/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	// loaded once here for the logger and sentry; the SDK watches the file itself
	cfg, err := config.LoadWithEnv(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.LogLevel)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     "pulsewatch@" + version,
		}); err != nil {
			return fmt.Errorf("failed to initialise sentry: %w", err)
		}
		defer sentry.Flush(sentryFlushWindow)
	}

	logger.Info("config loaded",
		"sites", len(cfg.Sites),
		"port", cfg.Server.Port,
	)

	pw, err := pulsewatch.New(
		pulsewatch.WithConfigFile(configFile),
		pulsewatch.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create pulsewatch: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- pw.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
