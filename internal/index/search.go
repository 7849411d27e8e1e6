package index

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
)

// Search paging defaults.
const (
	DefaultSearchPerPage = 20
)

// SearchQuery is a full-text search request. Project and Type are optional
// filters.
type SearchQuery struct {
	Query   string
	Project string
	Type    string
	Page    int
	PerPage int
}

// Normalize clamps paging and fills defaults.
func (q SearchQuery) Normalize() SearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultSearchPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

// SearchResult represents one search hit. Higher scores are more relevant.
type SearchResult struct {
	DocID       string  `json:"doc_id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	ProjectSlug string  `json:"project_slug"`
	ProjectName string  `json:"project_name"`
	Status      *string `json:"status"`
	Snippet     string  `json:"snippet"`
	Score       float64 `json:"score"`
}

// filters appends the optional project and type conditions to where.
func (q SearchQuery) filters(where []string, args []any) (string, []any) {
	if q.Project != "" {
		where = append(where, "p.slug = ?")
		args = append(args, q.Project)
	}
	if q.Type != "" {
		where = append(where, "d.doc_type = ?")
		args = append(args, q.Type)
	}
	return strings.Join(where, " AND "), args
}

// runSearch executes a count query and a page query that share from/where.
// The page query must select the SearchResult columns in order.
func (db *DB) runSearch(ctx context.Context, q SearchQuery, from, cond, selectSQL, orderSQL string, args []any) ([]SearchResult, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) `+from+` WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: search count: %w", err)
	}
	out := []SearchResult{}
	if total == 0 {
		return out, 0, nil
	}

	query := selectSQL + ` ` + from + ` WHERE ` + cond + ` ORDER BY ` + orderSQL + ` LIMIT ? OFFSET ?`
	rows, err := db.conn.QueryContext(ctx, query, append(args, q.PerPage, (q.Page-1)*q.PerPage)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r      SearchResult
			status sql.NullString
		)
		if err := rows.Scan(&r.DocID, &r.Type, &r.Title, &r.ProjectSlug, &r.ProjectName, &status, &r.Snippet, &r.Score); err != nil {
			return nil, 0, err
		}
		r.Status = nullString(status)
		r.Score = math.Round(r.Score*10000) / 10000
		out = append(out, r)
	}
	return out, total, rows.Err()
}
