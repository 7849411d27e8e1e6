// Package docservice coordinates the document store, the sync manager and
// the renderers behind the REST, MCP and CLI surfaces.
package docservice

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/lens/internal/apperr"
	"github.com/starford/lens/internal/index"
	"github.com/starford/lens/internal/models"
	"github.com/starford/lens/internal/render"
)

// Syncer starts background syncs and reacts to project registration changes.
type Syncer interface {
	Trigger(ctx context.Context, slug string) (*models.Project, error)
	ProjectsChanged()
}

// Service implements the application's use cases.
type Service struct {
	db       index.Store
	syncer   Syncer
	renderer *render.Renderer
	version  string
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithVersion sets the version reported by SystemHealth.
func WithVersion(v string) Option {
	return func(s *Service) { s.version = v }
}

// WithClock overrides the clock used by health checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. syncer may be nil, in which case sync requests fail.
func New(db index.Store, syncer Syncer, opts ...Option) *Service {
	s := &Service{
		db:       db,
		syncer:   syncer,
		renderer: render.New(),
		version:  "dev",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) project(ctx context.Context, slug string) (*models.Project, error) {
	return s.db.GetProject(ctx, slug)
}

func (s *Service) projectsChanged() {
	if s.syncer != nil {
		s.syncer.ProjectsChanged()
	}
}

// TriggerSync starts a background sync of the project.
func (s *Service) TriggerSync(ctx context.Context, slug string) (*models.Project, error) {
	if s.syncer == nil {
		return nil, fmt.Errorf("sync: %w: no sync manager configured", apperr.ErrValidation)
	}
	return s.syncer.Trigger(ctx, slug)
}
