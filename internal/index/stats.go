package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/lens/internal/models"
)

// Counts summarises the documents of one project.
type Counts struct {
	Total       int
	ByType      map[string]int
	ByStatus    map[string]int // a missing status is counted under "null"
	Stories     int
	DoneStories int
}

// ProjectCounts groups a project's documents by type and status.
func (db *DB) ProjectCounts(ctx context.Context, projectID int64) (*Counts, error) {
	c := &Counts{ByType: map[string]int{}, ByStatus: map[string]int{}}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT doc_type, status, count(*) FROM documents
		WHERE project_id = ?
		GROUP BY doc_type, status
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: project counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			docType string
			status  sql.NullString
			n       int
		)
		if err := rows.Scan(&docType, &status, &n); err != nil {
			return nil, fmt.Errorf("index: scan counts: %w", err)
		}
		key := "null"
		if status.Valid {
			key = status.String
		}
		c.Total += n
		c.ByType[docType] += n
		c.ByStatus[key] += n
		if docType == models.TypeStory {
			c.Stories += n
			if status.Valid && status.String == "Done" {
				c.DoneStories += n
			}
		}
	}
	return c, rows.Err()
}
