package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/lens/internal/apperr"
	"github.com/starford/lens/internal/models"
)

const projectColumns = `id, slug, name, source_type, sdlc_path, repo_url, repo_branch, repo_path,
	access_token, sync_status, sync_error, last_synced_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(s rowScanner) (*models.Project, error) {
	var (
		p        models.Project
		syncErr  sql.NullString
		lastSync sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Slug, &p.Name, &p.SourceType, &p.SDLCPath, &p.RepoURL, &p.RepoBranch,
		&p.RepoPath, &p.AccessToken, &p.SyncStatus, &syncErr, &lastSync, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if syncErr.Valid {
		p.SyncError = &syncErr.String
	}
	if lastSync.Valid {
		t := lastSync.Time.UTC()
		p.LastSyncedAt = &t
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// CreateProject inserts p and fills its id, status and timestamps. A
// duplicate slug yields apperr.ErrAlreadyExists.
func (db *DB) CreateProject(ctx context.Context, p *models.Project) error {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO projects (slug, name, source_type, sdlc_path, repo_url, repo_branch, repo_path,
			access_token, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Slug, p.Name, p.SourceType, p.SDLCPath, p.RepoURL, p.RepoBranch, p.RepoPath,
		p.AccessToken, models.SyncNever, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("index: create project %q: %w", p.Slug, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("index: create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("index: create project id: %w", err)
	}
	p.ID = id
	p.SyncStatus = models.SyncNever
	p.SyncError = nil
	p.LastSyncedAt = nil
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetProject returns the project with the given slug.
func (db *DB) GetProject(ctx context.Context, slug string) (*models.Project, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = ?`, slug)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: project %q: %w", slug, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get project: %w", err)
	}
	return p, nil
}

// ListProjects returns every project ordered by creation time.
func (db *DB) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("index: list projects: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan project: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateProject persists the editable fields of p (looked up by id).
func (db *DB) UpdateProject(ctx context.Context, p *models.Project) error {
	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE projects SET name = ?, source_type = ?, sdlc_path = ?, repo_url = ?, repo_branch = ?,
			repo_path = ?, access_token = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.SourceType, p.SDLCPath, p.RepoURL, p.RepoBranch, p.RepoPath, p.AccessToken, now, p.ID)
	if err != nil {
		return fmt.Errorf("index: update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: project %q: %w", p.Slug, apperr.ErrNotFound)
	}
	p.UpdatedAt = now
	return nil
}

// DeleteProject removes a project; its documents cascade.
func (db *DB) DeleteProject(ctx context.Context, slug string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM projects WHERE slug = ?`, slug).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("index: project %q: %w", slug, apperr.ErrNotFound)
		}
		return fmt.Errorf("index: delete project: %w", err)
	}
	// Explicit delete keeps FTS triggers firing per row.
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("index: delete project documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete project: %w", err)
	}
	return tx.Commit()
}

// BeginSync atomically moves a project into the syncing state. It fails
// with apperr.ErrSyncInProgress when a sync is already running.
func (db *DB) BeginSync(ctx context.Context, slug string) (*models.Project, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE projects SET sync_status = ?, sync_error = NULL, updated_at = ?
		WHERE slug = ? AND sync_status != ?
	`, models.SyncSyncing, time.Now().UTC(), slug, models.SyncSyncing)
	if err != nil {
		return nil, fmt.Errorf("index: begin sync: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := db.GetProject(ctx, slug); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("index: project %q: %w", slug, apperr.ErrSyncInProgress)
	}
	return db.GetProject(ctx, slug)
}

// FinishSync records the outcome of a sync. A nil syncErr marks the project
// synced at now; otherwise the error message is stored.
func (db *DB) FinishSync(ctx context.Context, projectID int64, syncErr error, now time.Time) error {
	var err error
	if syncErr == nil {
		_, err = db.conn.ExecContext(ctx, `
			UPDATE projects SET sync_status = ?, sync_error = NULL, last_synced_at = ?, updated_at = ?
			WHERE id = ?
		`, models.SyncSynced, now.UTC(), now.UTC(), projectID)
	} else {
		_, err = db.conn.ExecContext(ctx, `
			UPDATE projects SET sync_status = ?, sync_error = ?, updated_at = ?
			WHERE id = ?
		`, models.SyncError, syncErr.Error(), now.UTC(), projectID)
	}
	if err != nil {
		return fmt.Errorf("index: finish sync: %w", err)
	}
	return nil
}

// ResetStaleSyncs clears "syncing" states left behind by an unclean
// shutdown. It returns the number of projects reset.
func (db *DB) ResetStaleSyncs(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE projects SET sync_status = ?, sync_error = ?, updated_at = ?
		WHERE sync_status = ?
	`, models.SyncError, "sync interrupted", time.Now().UTC(), models.SyncSyncing)
	if err != nil {
		return 0, fmt.Errorf("index: reset stale syncs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
