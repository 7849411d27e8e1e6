package docservice

import (
	"context"
	"math"
	"time"

	"github.com/starford/lens/internal/health"
	"github.com/starford/lens/internal/models"
)

// ProjectStats summarises one project's documents.
type ProjectStats struct {
	Slug                 string         `json:"slug"`
	Name                 string         `json:"name"`
	TotalDocuments       int            `json:"total_documents"`
	ByType               map[string]int `json:"by_type"`
	ByStatus             map[string]int `json:"by_status"`
	CompletionPercentage float64        `json:"completion_percentage"`
	LastSyncedAt         *time.Time     `json:"last_synced_at"`
}

// ProjectSummary is a project's entry in the aggregate statistics.
type ProjectSummary struct {
	Slug                 string     `json:"slug"`
	Name                 string     `json:"name"`
	TotalDocuments       int        `json:"total_documents"`
	CompletionPercentage float64    `json:"completion_percentage"`
	LastSyncedAt         *time.Time `json:"last_synced_at"`
}

// AggregateStats summarises every project.
type AggregateStats struct {
	TotalProjects        int              `json:"total_projects"`
	TotalDocuments       int              `json:"total_documents"`
	ByType               map[string]int   `json:"by_type"`
	ByStatus             map[string]int   `json:"by_status"`
	CompletionPercentage float64          `json:"completion_percentage"`
	Projects             []ProjectSummary `json:"projects"`
}

// SystemHealth reports service and database liveness.
type SystemHealth struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
}

// percent returns part/whole as a percentage rounded to one decimal.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

func (s *Service) projectStats(ctx context.Context, p *models.Project) (*ProjectStats, int, error) {
	c, err := s.db.ProjectCounts(ctx, p.ID)
	if err != nil {
		return nil, 0, err
	}
	return &ProjectStats{
		Slug:                 p.Slug,
		Name:                 p.Name,
		TotalDocuments:       c.Total,
		ByType:               c.ByType,
		ByStatus:             c.ByStatus,
		CompletionPercentage: percent(c.DoneStories, c.Stories),
		LastSyncedAt:         p.LastSyncedAt,
	}, c.Stories, nil
}

// ProjectStats counts a project's documents by type and status. Completion
// is the share of stories marked Done.
func (s *Service) ProjectStats(ctx context.Context, slug string) (*ProjectStats, error) {
	p, err := s.project(ctx, slug)
	if err != nil {
		return nil, err
	}
	st, _, err := s.projectStats(ctx, p)
	return st, err
}

// AggregateStats merges the statistics of every project. Completion is
// weighted by each project's story count.
func (s *Service) AggregateStats(ctx context.Context) (*AggregateStats, error) {
	projects, err := s.db.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	out := &AggregateStats{
		TotalProjects: len(projects),
		ByType:        map[string]int{},
		ByStatus:      map[string]int{},
		Projects:      []ProjectSummary{},
	}
	var stories, done int
	for i := range projects {
		st, n, err := s.projectStats(ctx, &projects[i])
		if err != nil {
			return nil, err
		}
		out.TotalDocuments += st.TotalDocuments
		for k, v := range st.ByType {
			out.ByType[k] += v
		}
		for k, v := range st.ByStatus {
			out.ByStatus[k] += v
		}
		if n > 0 {
			stories += n
			done += int(math.RoundToEven(st.CompletionPercentage / 100 * float64(n)))
		}
		out.Projects = append(out.Projects, ProjectSummary{
			Slug:                 st.Slug,
			Name:                 st.Name,
			TotalDocuments:       st.TotalDocuments,
			CompletionPercentage: st.CompletionPercentage,
			LastSyncedAt:         st.LastSyncedAt,
		})
	}
	out.CompletionPercentage = percent(done, stories)
	return out, nil
}

// HealthCheck runs the documentation health rules over a project.
func (s *Service) HealthCheck(ctx context.Context, slug string) (*health.Result, error) {
	p, err := s.project(ctx, slug)
	if err != nil {
		return nil, err
	}
	docs, err := s.db.AllDocuments(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return health.Check(docs, p.Slug, s.now()), nil
}

// SystemHealth pings the database.
func (s *Service) SystemHealth(ctx context.Context) *SystemHealth {
	h := &SystemHealth{Status: "healthy", Database: "connected", Version: s.version}
	if err := s.db.Ping(ctx); err != nil {
		h.Status = "unhealthy"
		h.Database = "disconnected"
	}
	return h
}
