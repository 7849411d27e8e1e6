package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/lens/internal/models"
	"github.com/starford/lens/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestEngineSync_AddSkipUpdateDelete(t *testing.T) {
	db := testutil.TestDB(t)
	dir := testutil.ProjectDir(t, testutil.SampleDocs())
	p := testutil.LocalProject(t, db, "alpha", dir)
	e := NewEngine(db, Sources{}, quietLogger())
	ctx := context.Background()

	res, err := e.Sync(ctx, p)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res != (Result{Added: 5}) {
		t.Fatalf("first sync = %+v", res)
	}

	res, err = e.Sync(ctx, p)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res != (Result{Skipped: 5}) {
		t.Fatalf("second sync = %+v", res)
	}

	testutil.WriteFile(t, dir, "stories/US0002-sync.md", "# US0002: Sync Documents\n\n> **Status:** Done\n> **Epic:** EP0001\n\nDone now.\n")
	if err := os.Remove(filepath.Join(dir, "plans", "PL0001-register-plan.md")); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, dir, "bugs/BG0001-crash.md", "# BG0001: Crash\n\n> **Status:** Open\n")

	res, err = e.Sync(ctx, p)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res != (Result{Added: 1, Updated: 1, Skipped: 3, Deleted: 1}) {
		t.Fatalf("third sync = %+v", res)
	}

	d, err := db.GetDocument(ctx, p.ID, models.TypeStory, "US0002-sync")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if d.StatusValue() != "Done" {
		t.Errorf("status = %q", d.StatusValue())
	}
}

func TestEngineSync_DocumentFields(t *testing.T) {
	db := testutil.TestDB(t)
	dir := testutil.ProjectDir(t, map[string]string{
		"stories/US0001-register.md": "# US0001: Register Project\n\n> **Status:** Done\n" +
			"> **Epic:** [EP0001: Project Management](../epics/EP0001-project-mgmt.md)\n" +
			"> **Story Points:** 3\n> **Affects Persona:** Admin\n\nRegister a project.\n",
		"plans/untitled.md": "no heading here\n",
	})
	p := testutil.LocalProject(t, db, "alpha", dir)
	ctx := context.Background()

	if _, err := NewEngine(db, Sources{}, quietLogger()).Sync(ctx, p); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	d, err := db.GetDocument(ctx, p.ID, models.TypeStory, "US0001-register")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if d.Title != "US0001: Register Project" {
		t.Errorf("title = %q", d.Title)
	}
	if d.EpicRef() != "EP0001" {
		t.Errorf("epic = %q", d.EpicRef())
	}
	if d.StoryPoints == nil || *d.StoryPoints != 3 {
		t.Errorf("story points = %v", d.StoryPoints)
	}
	if d.Metadata["affects_persona"] != "Admin" {
		t.Errorf("metadata = %v", d.Metadata)
	}
	if _, ok := d.Metadata["status"]; ok {
		t.Error("standard fields must not be duplicated into metadata")
	}
	if d.FilePath != "stories/US0001-register.md" {
		t.Errorf("file path = %q", d.FilePath)
	}

	plan, err := db.GetDocument(ctx, p.ID, models.TypePlan, "untitled")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if plan.Title != "untitled" {
		t.Errorf("title should fall back to doc id, got %q", plan.Title)
	}
}

func TestEngineSync_InvalidUTF8CountsError(t *testing.T) {
	db := testutil.TestDB(t)
	dir := testutil.ProjectDir(t, map[string]string{
		"prd.md":            "# PRD\n",
		"epics/EP0001-x.md": "# EP\xff\xfe\n",
	})
	p := testutil.LocalProject(t, db, "alpha", dir)

	res, err := NewEngine(db, Sources{}, quietLogger()).Sync(context.Background(), p)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Added != 1 || res.Errors != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestEngineSync_SourceConfigErrors(t *testing.T) {
	e := NewEngine(testutil.TestDB(t), Sources{}, quietLogger())
	tests := []models.Project{
		{Slug: "a", SourceType: models.SourceLocal},
		{Slug: "b", SourceType: models.SourceLocal, SDLCPath: filepath.Join(t.TempDir(), "missing")},
		{Slug: "c", SourceType: models.SourceGitHub},
		{Slug: "d", SourceType: "svn"},
	}
	for _, p := range tests {
		if _, err := e.Sync(context.Background(), &p); !errors.Is(err, ErrSourceConfig) {
			t.Errorf("%s: err = %v, want ErrSourceConfig", p.Slug, err)
		}
	}
}

func TestEngineSync_ExcludeGlobs(t *testing.T) {
	db := testutil.TestDB(t)
	dir := testutil.ProjectDir(t, map[string]string{
		"prd.md":                "# PRD\n",
		"archive/EP0009-old.md": "# Old\n",
	})
	p := testutil.LocalProject(t, db, "alpha", dir)

	res, err := NewEngine(db, Sources{Exclude: []string{"archive/**"}}, quietLogger()).Sync(context.Background(), p)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("result = %+v", res)
	}
	n, _ := db.CountDocuments(context.Background(), p.ID)
	if n != 1 {
		t.Errorf("count = %d", n)
	}
}
