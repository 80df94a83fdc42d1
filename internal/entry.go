// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/renshaw/taskwire/internal/api"
	"github.com/renshaw/taskwire/internal/hub"
	"github.com/renshaw/taskwire/internal/mcpserver"
	"github.com/renshaw/taskwire/internal/notify"
	"github.com/renshaw/taskwire/internal/pending"
	"github.com/renshaw/taskwire/internal/profiles"
	"github.com/renshaw/taskwire/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. MCP mode owns stdout for the
	// protocol, so logs move to stderr there.
	logSink := os.Stdout
	if app.mcpMode {
		logSink = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logSink, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("profiles_path", cfg.Profiles.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("watch_strategy", cfg.Watch.Strategy),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure profiles directory exists.
	if err := os.MkdirAll(cfg.Profiles.Path, 0o755); err != nil {
		return fmt.Errorf("create profiles dir: %w", err)
	}

	// Initialize the profile store.
	store, err := profiles.NewFS(cfg.Profiles.Path)
	if err != nil {
		return fmt.Errorf("init profiles: %w", err)
	}

	// Initialize the pending-notification mailbox.
	db, err := pending.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init pending store: %w", err)
	}
	defer db.Close()

	// Channel manager and broadcaster.
	channels := hub.New(db, logger)
	broadcaster := notify.New(channels, db, logger)

	if app.mcpMode {
		logger.Info("Serving MCP on stdio")
		return mcpserver.New(broadcaster, db).ServeStdio()
	}

	// Watch engine over the profiles tree.
	engine, err := watch.New(store, broadcaster, logger, cfg.Watch.Strategy, cfg.Watch.Interval())
	if err != nil {
		return fmt.Errorf("init watch engine: %w", err)
	}

	// Build API router.
	apiRouter := api.NewRouter(broadcaster, db, cfg.Auth.AuthEnabled(), cfg.Auth.Token, channels.Handler())

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes at the root; the mobile clients use the documented
	// /notifications/... paths verbatim.
	r.Mount("/", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the watch engine.
	if err := engine.Start(gCtx); err != nil {
		return fmt.Errorf("start watch engine: %w", err)
	}
	defer engine.Stop()

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
