//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"strings"
)

// FTSEnabled reports whether search runs on the FTS5 index.
const FTSEnabled = false

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over documents.title and content.
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
// Scores are always zero and snippets are the leading content.
func (db *DB) Search(ctx context.Context, q SearchQuery) ([]SearchResult, int, error) {
	q = q.Normalize()
	like := "%" + likeEscaper.Replace(q.Query) + "%"
	cond, args := q.filters(
		[]string{`(d.title LIKE ? ESCAPE '\' OR d.content LIKE ? ESCAPE '\')`},
		[]any{like, like})
	return db.runSearch(ctx, q,
		`FROM documents d JOIN projects p ON d.project_id = p.id`,
		cond,
		`SELECT d.doc_id, d.doc_type, d.title, p.slug, p.name, d.status, substr(d.content, 1, 200), 0.0`,
		`d.title, d.id`,
		args)
}
