package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func paths(c *Collection) []string {
	out := make([]string, 0, len(c.Files))
	for p := range c.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "prd.md", "# PRD")
	writeFile(t, root, "epics/EP0001-a.md", "# EP0001")
	writeFile(t, root, "epics/_index.md", "index")
	writeFile(t, root, "stories/notes.txt", "skip")
	writeFile(t, root, "node_modules/pkg/README.md", "skip")
	writeFile(t, root, ".obsidian/x.md", "skip")
	writeFile(t, root, "build/out.md", "skip")

	s, err := NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	got, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	want := []string{"epics/EP0001-a.md", "prd.md"}
	if g := paths(got); len(g) != len(want) || g[0] != want[0] || g[1] != want[1] {
		t.Fatalf("paths = %v, want %v", g, want)
	}
	if got.Errors != 0 {
		t.Errorf("errors = %d", got.Errors)
	}
	f := got.Files["prd.md"]
	if string(f.Data) != "# PRD" || f.Hash != Checksum([]byte("# PRD")) {
		t.Errorf("file = %+v", f)
	}
}

func TestCollect_ExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "prd.md", "# PRD")
	writeFile(t, root, "archive/old/EP0009.md", "old")
	writeFile(t, root, "stories/US0001-draft.md", "draft")
	writeFile(t, root, "stories/US0002-real.md", "real")

	s, err := NewFS(root, "archive/**", "**/*-draft.md")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	got, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	g := paths(got)
	if len(g) != 2 || g[0] != "prd.md" || g[1] != "stories/US0002-real.md" {
		t.Errorf("paths = %v", g)
	}
}

func TestNewFS_Errors(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}

	root := t.TempDir()
	writeFile(t, root, "file.md", "x")
	if _, err := NewFS(filepath.Join(root, "file.md")); err == nil {
		t.Error("expected error for file root")
	}
	if _, err := NewFS(root, "[unclosed"); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestTracked(t *testing.T) {
	s, err := NewFS(t.TempDir(), "drafts/**")
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]bool{
		"prd.md":                  true,
		"epics/EP0001.md":         true,
		"epics/_index.md":         false,
		"notes.txt":               false,
		".git/x.md":               false,
		"a/node_modules/b/c.md":   false,
		"drafts/US0001.md":        false,
		"stories/.hidden/US01.md": false,
	}
	for rel, want := range tests {
		if got := s.Tracked(filepath.FromSlash(rel)); got != want {
			t.Errorf("Tracked(%q) = %v, want %v", rel, got, want)
		}
	}
}

func TestCollect_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "prd.md", "# PRD")
	s, err := NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Collect(ctx); err == nil {
		t.Error("expected context error")
	}
}
