package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/lens/internal/index"
	"github.com/starford/lens/internal/metrics"
	"github.com/starford/lens/internal/models"
	"github.com/starford/lens/internal/sse"
)

// Publisher receives sync lifecycle events. *sse.Broker satisfies it.
type Publisher interface {
	PublishSync(kind, slug string, data map[string]any)
}

var _ Publisher = (*sse.Broker)(nil)

// Manager runs syncs in the background, at most one per project.
type Manager struct {
	store   index.Store
	engine  *Engine
	events  Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	base    context.Context
	wg      sync.WaitGroup
	rewatch chan struct{}
}

// NewManager creates a manager. Background runs derive from base, so
// cancelling it aborts them. events and m may be nil.
func NewManager(base context.Context, store index.Store, engine *Engine, events Publisher, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		engine:  engine,
		events:  events,
		metrics: m,
		logger:  logger,
		base:    base,
		rewatch: make(chan struct{}, 1),
	}
}

// Trigger marks the project as syncing and starts the sync in the
// background. It fails with apperr.ErrNotFound for unknown projects and
// apperr.ErrSyncInProgress when a sync is already running.
func (m *Manager) Trigger(ctx context.Context, slug string) (*models.Project, error) {
	p, err := m.store.BeginSync(ctx, slug)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	m.publish(sse.SyncStarted, slug, map[string]any{"run_id": runID})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, _ = m.run(m.base, p, runID)
	}()
	return p, nil
}

// SyncNow runs a sync in the foreground and returns its result.
func (m *Manager) SyncNow(ctx context.Context, slug string) (Result, error) {
	p, err := m.store.BeginSync(ctx, slug)
	if err != nil {
		return Result{}, err
	}
	runID := uuid.NewString()
	m.publish(sse.SyncStarted, slug, map[string]any{"run_id": runID})
	return m.run(ctx, p, runID)
}

// Wait blocks until every background run has finished.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) run(ctx context.Context, p *models.Project, runID string) (Result, error) {
	logger := m.logger.With(slog.String("project", p.Slug), slog.String("run_id", runID))
	logger.Info("sync: started", slog.String("source", p.SourceType))

	start := time.Now()
	res, syncErr := m.engine.Sync(ctx, p)
	elapsed := time.Since(start)

	// The run context may be cancelled by now; the status must still land.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.store.FinishSync(finishCtx, p.ID, syncErr, time.Now()); err != nil {
		logger.Error("sync: record status failed", slog.String("error", err.Error()))
	}

	m.metrics.ObserveSync(elapsed, metrics.SyncCounts{
		Added: res.Added, Updated: res.Updated, Skipped: res.Skipped, Deleted: res.Deleted, Errors: res.Errors,
	}, syncErr)

	if syncErr != nil {
		logger.Error("sync: failed", slog.String("error", syncErr.Error()))
		m.publish(sse.SyncFailed, p.Slug, map[string]any{"run_id": runID, "error": syncErr.Error()})
		return res, syncErr
	}

	logger.Info("sync: completed",
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped),
		slog.Int("deleted", res.Deleted),
		slog.Int("errors", res.Errors),
		slog.Duration("elapsed", elapsed))
	m.publish(sse.SyncCompleted, p.Slug, map[string]any{
		"run_id":  runID,
		"added":   res.Added,
		"updated": res.Updated,
		"skipped": res.Skipped,
		"deleted": res.Deleted,
		"errors":  res.Errors,
	})
	return res, nil
}

func (m *Manager) publish(kind, slug string, data map[string]any) {
	if m.events != nil {
		m.events.PublishSync(kind, slug, data)
	}
}

// ProjectsChanged tells a running Watch to reload the set of watched
// project roots.
func (m *Manager) ProjectsChanged() {
	select {
	case m.rewatch <- struct{}{}:
	default:
	}
}
