//go:build sqlite_fts5

package index

import (
	"context"
	"strings"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents_fts`).Scan(&count); err != nil {
		t.Fatalf("documents_fts table missing: %v", err)
	}
}

func TestFTS5_SnippetAndScore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := testProject(t, db, "alpha")
	d := testDoc(p, "epic", "EP0001", "", "e.md")
	d.Content = "Lens provides powerful full-text search capabilities."
	_, _ = db.UpsertDocument(ctx, d)

	results, total, err := db.Search(ctx, SearchQuery{Query: "powerful"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 1 || len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", total)
	}
	if !strings.Contains(results[0].Snippet, "<mark>powerful</mark>") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %v, want positive", results[0].Score)
	}
}

func TestFTS5_OperatorsAreLiteral(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := testProject(t, db, "alpha")
	d := testDoc(p, "epic", "EP0001", "", "e.md")
	d.Content = "cats and dogs"
	_, _ = db.UpsertDocument(ctx, d)

	for _, q := range []string{`cats OR birds`, `"unbalanced`, `dog*`, `NEAR(`} {
		if _, _, err := db.Search(ctx, SearchQuery{Query: q}); err != nil {
			t.Errorf("Search(%q): %v", q, err)
		}
	}
	if _, total, _ := db.Search(ctx, SearchQuery{Query: "cats OR birds"}); total != 0 {
		t.Error("OR must be matched as a phrase, not an operator")
	}
}

func TestEscapeFTSQuery(t *testing.T) {
	if got := escapeFTSQuery(`say "hi"`); got != `"say ""hi"""` {
		t.Errorf("escape = %s", got)
	}
}
