package models

import "time"

// Source types.
const (
	SourceLocal  = "local"
	SourceGitHub = "github"
)

// Sync states of a project.
const (
	SyncNever   = "never_synced"
	SyncSyncing = "syncing"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// Project is a registered source of lifecycle documents.
type Project struct {
	ID           int64      `json:"-"`
	Slug         string     `json:"slug"`
	Name         string     `json:"name"`
	SourceType   string     `json:"source_type"`
	SDLCPath     string     `json:"sdlc_path"`
	RepoURL      string     `json:"repo_url,omitempty"`
	RepoBranch   string     `json:"repo_branch,omitempty"`
	RepoPath     string     `json:"repo_path,omitempty"`
	AccessToken  string     `json:"-"`
	SyncStatus   string     `json:"sync_status"`
	SyncError    *string    `json:"sync_error"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
