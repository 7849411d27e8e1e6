package index

import (
	"context"
	"time"

	"github.com/starford/lens/internal/models"
)

// Store defines the persistence operations used by the service, syncer and
// API layers. Consumers should depend on this interface rather than the
// concrete *DB type.
type Store interface {
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, slug string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, slug string) error
	BeginSync(ctx context.Context, slug string) (*models.Project, error)
	FinishSync(ctx context.Context, projectID int64, syncErr error, now time.Time) error

	UpsertDocument(ctx context.Context, d *models.Document) (bool, error)
	DeleteDocuments(ctx context.Context, projectID int64, paths []string) (int, error)
	FileHashes(ctx context.Context, projectID int64) (map[string]string, error)
	CountDocuments(ctx context.Context, projectID int64) (int, error)
	ListDocuments(ctx context.Context, projectID int64, q ListQuery) ([]models.DocumentSummary, int, error)
	Summaries(ctx context.Context, projectID int64) ([]models.DocumentSummary, error)
	GetDocument(ctx context.Context, projectID int64, docType, docID string) (*models.Document, error)
	AllDocuments(ctx context.Context, projectID int64) ([]models.Document, error)
	ProjectCounts(ctx context.Context, projectID int64) (*Counts, error)
	Search(ctx context.Context, q SearchQuery) ([]SearchResult, int, error)

	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
