// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/gts-portal/internal/api"
	"github.com/starford/gts-portal/internal/auth"
	"github.com/starford/gts-portal/internal/dashboard"
	"github.com/starford/gts-portal/internal/kv"
	"github.com/starford/gts-portal/internal/mcpserver"
	"github.com/starford/gts-portal/internal/metrics"
	"github.com/starford/gts-portal/internal/mockstore"
	"github.com/starford/gts-portal/internal/models"
	"github.com/starford/gts-portal/internal/push"
	"github.com/starford/gts-portal/internal/sse"
)

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(cfg, app.logOutput)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("store_path", cfg.Store.Path),
		slog.String("media_path", cfg.Media.Path),
		slog.Bool("push_enabled", cfg.Push.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Media.Path, 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}

	mirror, store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer mirror.Close()

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.StatsThrottle)
	defer broker.Close()
	store.Observe(broker)

	notifier := push.New(ctx, mirror, push.DelivererFunc(func(_ context.Context, clientID string, n push.Notification) error {
		broker.SendTo(clientID, sse.Event{Type: sse.EventNotification, Data: n})
		return nil
	}), push.Options{Enabled: cfg.Push.Enabled, Logger: logger})

	apiRouter := api.NewRouter(api.Deps{
		Store:        store,
		Dashboards:   dashboard.NewBuilder(store, time.Now),
		Auth:         auth.NewService(store),
		Push:         notifier,
		PreviewHosts: cfg.Push.PreviewHosts,
		MediaRoot:    cfg.Media.Path,
		Events:       broker,
		AuthEnabled:  cfg.Auth.AuthEnabled(),
		Token:        cfg.Auth.Token,
		Latency:      cfg.App.HTTP.SimulatedLatency,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK)
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := mirror.Keys(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeHealth(w, http.StatusServiceUnavailable)
			return
		}
		writeHealth(w, http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())

	// Uploaded images are public so marketing pages can embed them.
	r.Get("/media/{filename}", api.NewMediaHandler(cfg.Media.Path).ServeFile)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload tables edited on disk by another process.
	if cfg.Store.Backend == kv.BackendFile && cfg.Store.Watch {
		g.Go(func() error {
			err := kv.Watch(gCtx, cfg.Store.Path, 0, logger, func(kind, key string) {
				if !models.IsTable(key) {
					return
				}
				if err := store.Reload(gCtx, key); err != nil {
					logger.Warn("mirror reload failed",
						slog.String("table", key), slog.String("kind", kind), slog.String("error", err.Error()))
				}
			})
			if err != nil {
				logger.Error("mirror watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams never end on their own; closing the broker releases them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs default to stderr, stdout
// belongs to the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, app.logOutput)

	mirror, store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer mirror.Close()

	srv := mcpserver.New(store, dashboard.NewBuilder(store, time.Now), cfg.Media.Path)
	logger.Info("MCP server starting on stdio", slog.String("store_backend", cfg.Store.Backend))
	return srv.ServeStdio()
}

// ResetStore drops every table back to the seed fixtures and writes them to
// the mirror.
func ResetStore(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, app.logOutput)

	mirror, store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer mirror.Close()

	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	for _, t := range store.Tables() {
		logger.Info("table reset", slog.String("table", t.Name), slog.Int("rows", t.Rows))
	}
	return nil
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger initializes the structured JSON logger and makes it the default.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openStore opens the configured mirror and loads the tables from it.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (kv.Provider, *mockstore.Store, error) {
	mirror, err := kv.Open(ctx, cfg.Store.KVOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("init store mirror: %w", err)
	}
	store, err := mockstore.Open(ctx, mirror, mockstore.Options{Logger: logger})
	if err != nil {
		_ = mirror.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	return mirror, store, nil
}

func writeHealth(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusOK {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"unavailable"}`))
}
