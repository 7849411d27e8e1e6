package api

import (
	"github.com/starford/lens/internal/docservice"
	"github.com/starford/lens/internal/health"
)

// CreateProjectRequest is the request body for registering a project.
type CreateProjectRequest = docservice.ProjectInput

// UpdateProjectRequest is the request body for updating a project. Only the
// fields present are changed.
type UpdateProjectRequest = docservice.ProjectUpdate

// ProjectResponse is the project representation (aliased from the domain layer).
type ProjectResponse = docservice.ProjectView

// SyncTriggerResponse is returned when a sync has been started.
type SyncTriggerResponse struct {
	Slug       string `json:"slug" example:"lens" validate:"required"`
	SyncStatus string `json:"sync_status" example:"syncing" validate:"required"`
	Message    string `json:"message" example:"Sync started" validate:"required"`
}

// DocumentListResponse is one page of documents.
type DocumentListResponse = docservice.DocumentPage

// DocumentDetailResponse is a full document, with html when requested.
type DocumentDetailResponse = docservice.DocumentDetail

// RelatedResponse lists a document's parents and children.
type RelatedResponse = docservice.Related

// TreeResponse is the document hierarchy of a project.
type TreeResponse = docservice.Tree

// SearchResponse wraps search results.
type SearchResponse = docservice.SearchPage

// ProjectStatsResponse holds the statistics of one project.
type ProjectStatsResponse = docservice.ProjectStats

// AggregateStatsResponse holds statistics across projects.
type AggregateStatsResponse = docservice.AggregateStats

// HealthCheckResponse is a documentation health report.
type HealthCheckResponse = health.Result

// SystemHealthResponse reports service liveness.
type SystemHealthResponse = docservice.SystemHealth
