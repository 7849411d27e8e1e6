package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/lens/internal/apperr"
	"github.com/starford/lens/internal/models"
)

// Listing defaults and limits.
const (
	DefaultPerPage = 50
	MaxPerPage     = 100
)

// ListQuery filters, sorts and pages a document listing. Zero values pick
// the defaults: every type and status, newest sync first, page 1.
type ListQuery struct {
	Type    string
	Status  string
	Sort    string // title, type, status, updated_at
	Order   string // asc, desc
	Page    int
	PerPage int
}

var sortColumns = map[string]string{
	"title":      "title",
	"type":       "doc_type",
	"status":     "status",
	"updated_at": "synced_at",
}

// Normalize clamps paging and fills defaults.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	if _, ok := sortColumns[q.Sort]; !ok {
		q.Sort = "updated_at"
	}
	if q.Order != "asc" {
		q.Order = "desc"
	}
	return q
}

const summaryColumns = `doc_id, doc_type, title, status, owner, priority, story_points, epic, story, synced_at`

// scanSummary reads summaryColumns into d followed by any extra columns.
func scanSummary(s rowScanner, d *models.DocumentSummary, extra ...any) error {
	var (
		status, owner, priority, epic, story sql.NullString
		points                               sql.NullInt64
	)
	dest := []any{&d.DocID, &d.Type, &d.Title, &status, &owner, &priority, &points, &epic, &story, &d.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	d.Status = nullString(status)
	d.Owner = nullString(owner)
	d.Priority = nullString(priority)
	d.Epic = nullString(epic)
	d.Story = nullString(story)
	if points.Valid {
		n := int(points.Int64)
		d.StoryPoints = &n
	}
	d.UpdatedAt = d.UpdatedAt.UTC()
	return nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func querySummaries(ctx context.Context, conn *sql.DB, query string, args ...any) ([]models.DocumentSummary, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.DocumentSummary{}
	for rows.Next() {
		var d models.DocumentSummary
		if err := scanSummary(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertDocument inserts or replaces the document stored at d.FilePath for
// its project. It reports whether a new row was created.
func (db *DB) UpsertDocument(ctx context.Context, d *models.Document) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var meta any
	if len(d.Metadata) > 0 {
		raw, err := json.Marshal(d.Metadata)
		if err != nil {
			return false, fmt.Errorf("index: encode metadata: %w", err)
		}
		meta = string(raw)
	}

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE project_id = ? AND file_path = ?`,
		d.ProjectID, d.FilePath).Scan(&existing)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return false, fmt.Errorf("index: lookup document: %w", err)
	}

	var points any
	if d.StoryPoints != nil {
		points = *d.StoryPoints
	}
	args := []any{d.Type, d.DocID, d.Title, d.Status, d.Owner, d.Priority, points, d.Epic, d.Story,
		meta, d.Content, d.FileHash, d.SyncedAt.UTC()}

	if created {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (doc_type, doc_id, title, status, owner, priority, story_points, epic, story,
				metadata, content, file_hash, synced_at, project_id, file_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, append(args, d.ProjectID, d.FilePath)...)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET doc_type = ?, doc_id = ?, title = ?, status = ?, owner = ?, priority = ?,
				story_points = ?, epic = ?, story = ?, metadata = ?, content = ?, file_hash = ?, synced_at = ?
			WHERE id = ?
		`, append(args, existing)...)
	}
	if err != nil {
		return false, fmt.Errorf("index: upsert document: %w", err)
	}
	return created, tx.Commit()
}

// DeleteDocuments removes the documents stored at paths and returns how many
// rows went away.
func (db *DB) DeleteDocuments(ctx context.Context, projectID int64, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE project_id = ? AND file_path = ?`)
	if err != nil {
		return 0, fmt.Errorf("index: prepare delete: %w", err)
	}
	defer stmt.Close()

	deleted := 0
	for _, p := range paths {
		res, err := stmt.ExecContext(ctx, projectID, p)
		if err != nil {
			return 0, fmt.Errorf("index: delete document %s: %w", p, err)
		}
		n, _ := res.RowsAffected()
		deleted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit delete: %w", err)
	}
	return deleted, nil
}

// FileHashes maps each stored file path of a project to its content hash.
func (db *DB) FileHashes(ctx context.Context, projectID int64) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT file_path, file_hash FROM documents WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: file hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, h string
		if err := rows.Scan(&p, &h); err != nil {
			return nil, err
		}
		out[p] = h
	}
	return out, rows.Err()
}

// CountDocuments returns the number of documents in a project.
func (db *DB) CountDocuments(ctx context.Context, projectID int64) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM documents WHERE project_id = ?`, projectID).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count documents: %w", err)
	}
	return n, nil
}

// ListDocuments returns one page of a project's documents and the total
// number of matches.
func (db *DB) ListDocuments(ctx context.Context, projectID int64, q ListQuery) ([]models.DocumentSummary, int, error) {
	q = q.Normalize()

	where := []string{"project_id = ?"}
	args := []any{projectID}
	if q.Type != "" {
		where = append(where, "doc_type = ?")
		args = append(args, q.Type)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM documents WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	order := fmt.Sprintf("%s %s, id %s", sortColumns[q.Sort], strings.ToUpper(q.Order), strings.ToUpper(q.Order))
	query := `SELECT ` + summaryColumns + ` FROM documents WHERE ` + cond + ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	items, err := querySummaries(ctx, db.conn, query, append(args, q.PerPage, (q.Page-1)*q.PerPage)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	return items, total, nil
}

// Summaries returns every document summary of a project ordered by file
// path, the input order used for hierarchy building.
func (db *DB) Summaries(ctx context.Context, projectID int64) ([]models.DocumentSummary, error) {
	items, err := querySummaries(ctx, db.conn,
		`SELECT `+summaryColumns+` FROM documents WHERE project_id = ? ORDER BY file_path`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: summaries: %w", err)
	}
	return items, nil
}

const documentColumns = summaryColumns + `, project_id, metadata, content, file_path, file_hash`

func scanDocument(s rowScanner) (*models.Document, error) {
	var (
		d    models.Document
		meta sql.NullString
	)
	if err := scanSummary(s, &d.DocumentSummary, &d.ProjectID, &meta, &d.Content, &d.FilePath, &d.FileHash); err != nil {
		return nil, err
	}
	d.SyncedAt = d.UpdatedAt
	d.Metadata = map[string]any{}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &d, nil
}

// GetDocument returns the document of the given type and id. When ids
// collide the earliest stored row wins.
func (db *DB) GetDocument(ctx context.Context, projectID int64, docType, docID string) (*models.Document, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE project_id = ? AND doc_type = ? AND doc_id = ?
		ORDER BY id LIMIT 1
	`, projectID, docType, docID)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: document %s/%s: %w", docType, docID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	return d, nil
}

// AllDocuments returns every fully loaded document of a project ordered by
// file path.
func (db *DB) AllDocuments(ctx context.Context, projectID int64) ([]models.Document, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE project_id = ? ORDER BY file_path`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: all documents: %w", err)
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
