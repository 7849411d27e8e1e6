// Package testutil provides shared test helpers for databases, project
// directories and registered projects.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/lens/internal/index"
	"github.com/starford/lens/internal/models"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "lens-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			os.Remove(dbFile.Name() + suffix)
		}
	})

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteFile writes content to the slash-separated rel path under root,
// creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ProjectDir creates a temporary document directory holding files.
func ProjectDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		WriteFile(t, dir, rel, content)
	}
	return dir
}

// LocalProject registers a local project rooted at dir.
func LocalProject(t *testing.T, db index.Store, slug, dir string) *models.Project {
	t.Helper()
	p := &models.Project{Slug: slug, Name: slug, SourceType: models.SourceLocal, SDLCPath: dir}
	if err := db.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

// SampleDocs is a small lifecycle document set: a PRD, an epic with two
// stories, and a plan under the first story.
func SampleDocs() map[string]string {
	return map[string]string{
		"prd.md": "# Product Requirements\n\n> **Status:** Approved\n> **Owner:** Team\n\nThe product.\n",
		"epics/EP0001-project-mgmt.md": "# EP0001: Project Management\n\n> **Status:** In Progress\n" +
			"> **Owner:** Darren\n> **Priority:** P1\n\nManage projects end to end.\n",
		"stories/US0001-register.md": "# US0001: Register Project\n\n> **Status:** Done\n" +
			"> **Epic:** [EP0001: Project Management](../epics/EP0001-project-mgmt.md)\n> **Story Points:** 3\n\nRegister a project.\n",
		"stories/US0002-sync.md": "# US0002: Sync Documents\n\n> **Status:** Draft\n" +
			"> **Epic:** EP0001\n> **Story Points:** 5\n\nSync documents into the store.\n",
		"plans/PL0001-register-plan.md": "# PL0001: Register Plan\n\n> **Status:** Done\n> **Story:** US0001\n\nSteps.\n",
	}
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
