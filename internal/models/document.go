// Package models defines the domain types for lens.
package models

import "time"

// Document types recognised by filename inference and the hierarchy sort.
const (
	TypePRD      = "prd"
	TypeTRD      = "trd"
	TypeTSD      = "tsd"
	TypePersonas = "personas"
	TypeEpic     = "epic"
	TypeStory    = "story"
	TypePlan     = "plan"
	TypeTestSpec = "test-spec"
	TypeBug      = "bug"
	TypeWorkflow = "workflow"
	TypeOther    = "other"
)

// DocumentSummary is the lightweight view of a synced document. Story and
// Epic hold id prefixes (e.g. "US0001"), not full ids; empty means unset.
type DocumentSummary struct {
	DocID       string    `json:"doc_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Status      *string   `json:"status"`
	Owner       *string   `json:"owner"`
	Priority    *string   `json:"priority"`
	StoryPoints *int      `json:"story_points"`
	Epic        *string   `json:"epic"`
	Story       *string   `json:"story"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EpicRef returns the epic reference or "" when unset.
func (d DocumentSummary) EpicRef() string { return deref(d.Epic) }

// StoryRef returns the story reference or "" when unset.
func (d DocumentSummary) StoryRef() string { return deref(d.Story) }

// StatusValue returns the status or "" when unset.
func (d DocumentSummary) StatusValue() string { return deref(d.Status) }

// Document is a fully loaded document row.
type Document struct {
	DocumentSummary
	ProjectID int64          `json:"-"`
	Metadata  map[string]any `json:"metadata"`
	Content   string         `json:"content"`
	FilePath  string         `json:"file_path"`
	FileHash  string         `json:"file_hash"`
	SyncedAt  time.Time      `json:"synced_at"`
}

// Ptr returns a pointer to s, or nil when s is empty.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
