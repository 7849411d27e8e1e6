// Package index is the SQLite store for projects and their synced documents,
// with optional FTS5 full-text search.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	slug           TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	source_type    TEXT NOT NULL DEFAULT 'local',
	sdlc_path      TEXT NOT NULL DEFAULT '',
	repo_url       TEXT NOT NULL DEFAULT '',
	repo_branch    TEXT NOT NULL DEFAULT '',
	repo_path      TEXT NOT NULL DEFAULT '',
	access_token   TEXT NOT NULL DEFAULT '',
	sync_status    TEXT NOT NULL DEFAULT 'never_synced',
	sync_error     TEXT,
	last_synced_at DATETIME,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id   INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	doc_type     TEXT NOT NULL,
	doc_id       TEXT NOT NULL,
	title        TEXT NOT NULL,
	status       TEXT,
	owner        TEXT,
	priority     TEXT,
	story_points INTEGER,
	epic         TEXT,
	story        TEXT,
	metadata     TEXT,
	content      TEXT NOT NULL DEFAULT '',
	file_path    TEXT NOT NULL,
	file_hash    TEXT NOT NULL,
	synced_at    DATETIME NOT NULL,
	UNIQUE(project_id, file_path)
);

CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id, doc_type);
CREATE INDEX IF NOT EXISTS idx_documents_epic ON documents(epic);
CREATE INDEX IF NOT EXISTS idx_documents_story ON documents(story);
`

// DB wraps a sql.DB with store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("index: ping: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
