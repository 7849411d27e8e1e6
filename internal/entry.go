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

	"github.com/starford/lens/internal/api"
	"github.com/starford/lens/internal/docservice"
	"github.com/starford/lens/internal/hierarchy"
	"github.com/starford/lens/internal/index"
	"github.com/starford/lens/internal/mcpserver"
	"github.com/starford/lens/internal/metrics"
	"github.com/starford/lens/internal/sse"
	"github.com/starford/lens/internal/syncer"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	db      *index.DB
	broker  *sse.Broker
	metrics *metrics.Metrics
	manager *syncer.Manager
	svc     *docservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// start opens the store and wires the sync pipeline. Background syncs derive
// from ctx.
func (a *application) start(ctx context.Context) (*runtime, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("watch", cfg.Sync.Watch),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// A crash mid-sync leaves projects locked.
	n, err := db.ResetStaleSyncs(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reset stale syncs: %w", err)
	}
	if n > 0 {
		logger.Warn("reset interrupted syncs", slog.Int64("projects", n))
	}

	broker := sse.NewBroker(cfg.SSE.Throttle)
	m := metrics.New()
	engine := syncer.NewEngine(db, cfg.Sync.Sources(), logger)
	manager := syncer.NewManager(ctx, db, engine, broker, m, logger)

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		broker:  broker,
		metrics: m,
		manager: manager,
		svc:     docservice.New(db, manager, docservice.WithVersion(a.version)),
	}, nil
}

// close waits for running syncs, then releases the broker and the store.
func (rt *runtime) close() {
	rt.manager.Wait()
	rt.broker.Close()
	if err := rt.db.Close(); err != nil {
		rt.logger.Error("close index", slog.String("error", err.Error()))
	}
}

// watch runs the file watcher when enabled and blocks until ctx ends.
func (rt *runtime) watch(ctx context.Context) error {
	if !rt.cfg.Sync.Watch {
		return nil
	}
	if err := rt.manager.Watch(ctx, rt.cfg.Sync.Debounce); err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	return nil
}

// router builds the outer HTTP router: probes, metrics and the API.
func (rt *runtime) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(rt.metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", rt.metrics.Handler())

	// Mount API routes under /api/v1; the event stream shares its auth.
	r.Mount("/api/v1", api.NewRouter(rt.svc, rt.cfg.Auth.AuthEnabled(), rt.cfg.Auth.Token, rt.broker))

	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	g, gCtx := errgroup.WithContext(ctx)

	rt, err := app.start(gCtx)
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           rt.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Start file watcher.
	g.Go(func() error {
		return rt.watch(gCtx)
	})

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

// errShutdown cancels the group so the watcher and background syncs stop.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := app.start(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	watchDone := make(chan error, 1)
	go func() { watchDone <- rt.watch(ctx) }()

	err = mcpserver.New(rt.svc, app.version).ServeStdio()
	cancel()
	if werr := <-watchDone; werr != nil {
		rt.logger.Error("watcher stopped", slog.String("error", werr.Error()))
	}
	return err
}

// PrintTree writes the visible rows of a project's hierarchy to w. With
// syncFirst the project is synced before reading.
func PrintTree(ctx context.Context, w io.Writer, slug, mode string, syncFirst bool, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	rt, err := app.start(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	if syncFirst {
		if _, err := rt.manager.SyncNow(ctx, slug); err != nil {
			return fmt.Errorf("sync %s: %w", slug, err)
		}
	}

	tree, err := rt.svc.Tree(ctx, slug, mode)
	if err != nil {
		return err
	}
	return hierarchy.WriteOutline(w, tree.Rows)
}
