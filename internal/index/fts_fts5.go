//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"strings"
)

// FTSEnabled reports whether search runs on the FTS5 index.
const FTSEnabled = true

// documents_fts mirrors documents(title, content) and is kept current by
// triggers, so repository writes never touch it directly.
const ftsSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	title,
	content,
	content = documents,
	content_rowid = id,
	tokenize = "unicode61 tokenchars '_'"
);

CREATE TRIGGER IF NOT EXISTS documents_fts_ai AFTER INSERT ON documents BEGIN
	INSERT INTO documents_fts(rowid, title, content) VALUES (new.id, new.title, new.content);
END;

CREATE TRIGGER IF NOT EXISTS documents_fts_ad AFTER DELETE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES ('delete', old.id, old.title, old.content);
END;

CREATE TRIGGER IF NOT EXISTS documents_fts_au AFTER UPDATE OF title, content ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES ('delete', old.id, old.title, old.content);
	INSERT INTO documents_fts(rowid, title, content) VALUES (new.id, new.title, new.content);
END;
`

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(ftsSchemaSQL)
	return err
}

// escapeFTSQuery quotes the whole query as one FTS5 string so operators
// like OR, NEAR and * are matched literally.
func escapeFTSQuery(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

// Search ranks matches with bm25 and highlights them with <mark> snippets.
func (db *DB) Search(ctx context.Context, q SearchQuery) ([]SearchResult, int, error) {
	q = q.Normalize()
	cond, args := q.filters([]string{"documents_fts MATCH ?"}, []any{escapeFTSQuery(q.Query)})
	return db.runSearch(ctx, q,
		`FROM documents_fts
		JOIN documents d ON documents_fts.rowid = d.id
		JOIN projects p ON d.project_id = p.id`,
		cond,
		`SELECT d.doc_id, d.doc_type, d.title, p.slug, p.name, d.status,
			snippet(documents_fts, 1, '<mark>', '</mark>', '...', 32),
			-bm25(documents_fts)`,
		`bm25(documents_fts)`,
		args)
}
