// Package syncer brings a project's stored documents in line with its
// source, in the foreground or as tracked background runs.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/starford/lens/internal/index"
	"github.com/starford/lens/internal/models"
	"github.com/starford/lens/internal/parser"
	"github.com/starford/lens/internal/storage"
)

// ErrSourceConfig marks a project whose source cannot be synced as
// configured.
var ErrSourceConfig = errors.New("invalid source configuration")

// Result counts what one sync did.
type Result struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
	Errors  int `json:"errors"`
}

// Sources configures how collectors are built for projects.
type Sources struct {
	Exclude       []string // doublestar globs for local projects
	GitHubBaseURL string
	GitHubClient  *http.Client
}

// Collector returns the collector for p's source.
func (s Sources) Collector(p *models.Project) (storage.Collector, error) {
	switch p.SourceType {
	case models.SourceLocal, "":
		if p.SDLCPath == "" {
			return nil, fmt.Errorf("%w: no sdlc_path configured for local project", ErrSourceConfig)
		}
		info, err := os.Stat(p.SDLCPath)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: path not found: %s", ErrSourceConfig, p.SDLCPath)
		}
		return storage.NewFS(p.SDLCPath, s.Exclude...)
	case models.SourceGitHub:
		if p.RepoURL == "" {
			return nil, fmt.Errorf("%w: no repo_url configured for GitHub project", ErrSourceConfig)
		}
		return &storage.GitHub{
			RepoURL: p.RepoURL,
			Branch:  p.RepoBranch,
			Path:    p.RepoPath,
			Token:   p.AccessToken,
			BaseURL: s.GitHubBaseURL,
			Client:  s.GitHubClient,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown source_type: %s", ErrSourceConfig, p.SourceType)
	}
}

// Columns stored outside the metadata JSON.
var standardFields = map[string]struct{}{
	"status": {}, "owner": {}, "priority": {}, "story_points": {}, "epic": {}, "story": {},
}

// Engine performs syncs.
type Engine struct {
	store   index.Store
	sources Sources
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine creates an engine writing to store.
func NewEngine(store index.Store, sources Sources, logger *slog.Logger) *Engine {
	return &Engine{store: store, sources: sources, logger: logger, now: time.Now}
}

// Sync collects p's documents and updates the store: unchanged hashes are
// skipped, new and changed files are parsed and upserted, and stored paths
// missing from the source are deleted. Unreadable or non UTF-8 files are
// counted as errors without failing the sync.
func (e *Engine) Sync(ctx context.Context, p *models.Project) (Result, error) {
	var res Result

	collector, err := e.sources.Collector(p)
	if err != nil {
		return res, err
	}
	col, err := collector.Collect(ctx)
	if err != nil {
		return res, err
	}
	res.Errors += col.Errors

	stored, err := e.store.FileHashes(ctx, p.ID)
	if err != nil {
		return res, err
	}

	paths := make([]string, 0, len(col.Files))
	for rel := range col.Files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		f := col.Files[rel]
		if h, ok := stored[rel]; ok && h == f.Hash {
			res.Skipped++
			continue
		}
		if !utf8.Valid(f.Data) {
			e.logger.Warn("sync: not valid UTF-8, skipping",
				slog.String("project", p.Slug), slog.String("path", rel))
			res.Errors++
			continue
		}
		doc, ok := e.buildDocument(p.ID, rel, f)
		if !ok {
			continue
		}
		created, err := e.store.UpsertDocument(ctx, doc)
		if err != nil {
			return res, err
		}
		if created {
			res.Added++
		} else {
			res.Updated++
		}
	}

	var gone []string
	for rel := range stored {
		if _, ok := col.Files[rel]; !ok {
			gone = append(gone, rel)
		}
	}
	sort.Strings(gone)
	n, err := e.store.DeleteDocuments(ctx, p.ID, gone)
	if err != nil {
		return res, err
	}
	res.Deleted = n
	return res, nil
}

func (e *Engine) buildDocument(projectID int64, rel string, f storage.File) (*models.Document, bool) {
	inf, ok := parser.Infer(rel)
	if !ok {
		return nil, false
	}
	parsed := parser.Parse(f.Data)

	title := parsed.Title
	if title == "" {
		title = inf.ID
	}
	extra := make(map[string]any)
	for k, v := range parsed.Metadata {
		if _, std := standardFields[k]; !std {
			extra[k] = v
		}
	}
	meta := parsed.Metadata

	return &models.Document{
		DocumentSummary: models.DocumentSummary{
			DocID:       inf.ID,
			Type:        inf.Type,
			Title:       title,
			Status:      models.Ptr(meta["status"]),
			Owner:       models.Ptr(meta["owner"]),
			Priority:    models.Ptr(meta["priority"]),
			StoryPoints: parsed.StoryPoints,
			Epic:        models.Ptr(parser.ExtractDocID(meta["epic"])),
			Story:       models.Ptr(parser.ExtractDocID(meta["story"])),
		},
		ProjectID: projectID,
		Metadata:  extra,
		Content:   parsed.Body,
		FilePath:  rel,
		FileHash:  f.Hash,
		SyncedAt:  e.now().UTC(),
	}, true
}
