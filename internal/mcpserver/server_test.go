package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/lens/internal/docservice"
	"github.com/starford/lens/internal/index"
	"github.com/starford/lens/internal/models"
	"github.com/starford/lens/internal/syncer"
	"github.com/starford/lens/internal/testutil"
)

type stubSyncer struct {
	db index.Store
}

func (s stubSyncer) Trigger(ctx context.Context, slug string) (*models.Project, error) {
	return s.db.BeginSync(ctx, slug)
}

func (stubSyncer) ProjectsChanged() {}

// testServer returns a server over a database holding one synced project,
// "alpha", with the sample documents.
func testServer(t *testing.T) *Server {
	t.Helper()
	db := testutil.TestDB(t)
	dir := testutil.ProjectDir(t, testutil.SampleDocs())
	p := testutil.LocalProject(t, db, "alpha", dir)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if _, err := syncer.NewEngine(db, syncer.Sources{}, logger).Sync(context.Background(), p); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return New(docservice.New(db, stubSyncer{db: db}), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no call-tool test helper, so handlers are invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_projects":
		result, err = srv.listProjects(ctx, req)
	case "list_documents":
		result, err = srv.listDocuments(ctx, req)
	case "get_document":
		result, err = srv.getDocument(ctx, req)
	case "get_document_tree":
		result, err = srv.getDocumentTree(ctx, req)
	case "search_documents":
		result, err = srv.searchDocuments(ctx, req)
	case "run_health_check":
		result, err = srv.runHealthCheck(ctx, req)
	case "sync_project":
		result, err = srv.syncProject(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestToolsRegistered(t *testing.T) {
	srv := testServer(t)
	tools := srv.MCPServer().ListTools()
	for _, name := range []string{
		"list_projects", "list_documents", "get_document", "get_document_tree",
		"search_documents", "run_health_check", "sync_project",
	} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestListProjects(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_projects", map[string]any{})
	var projects []docservice.ProjectView
	if err := json.Unmarshal([]byte(resultText(r)), &projects); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(projects) != 1 || projects[0].Slug != "alpha" || projects[0].DocumentCount != 5 {
		t.Errorf("projects = %+v", projects)
	}
}

func TestListDocuments(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_documents", map[string]any{"project": "alpha", "type": "story"})
	var page docservice.DocumentPage
	if err := json.Unmarshal([]byte(resultText(r)), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("total = %d, want 2", page.Total)
	}

	r = callTool(t, srv, "list_documents", map[string]any{})
	if !r.IsError {
		t.Error("expected error without project")
	}
}

func TestGetDocument(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_document", map[string]any{
		"project": "alpha",
		"type":    "story",
		"id":      "US0001-register",
	})
	text := resultText(r)
	for _, want := range []string{"# US0001: Register Project", "- status: Done", "- epic: EP0001", "- story points: 3", "Register a project."} {
		if !strings.Contains(text, want) {
			t.Errorf("document text missing %q:\n%s", want, text)
		}
	}
}

func TestGetDocumentMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_document", map[string]any{"project": "alpha", "type": "story", "id": "US9999"})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
}

func TestGetDocumentTree(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_document_tree", map[string]any{"project": "alpha"})
	text := resultText(r)
	if !strings.Contains(text, "v EP0001-project-mgmt [epic]") || !strings.Contains(text, "    - PL0001-register-plan [plan]") {
		t.Errorf("tree =\n%s", text)
	}

	r = callTool(t, srv, "get_document_tree", map[string]any{"project": "alpha", "expand": "none"})
	if lines := strings.Count(resultText(r), "\n"); lines != 2 {
		t.Errorf("collapsed tree has %d lines, want 2", lines)
	}

	r = callTool(t, srv, "get_document_tree", map[string]any{"project": "ghost"})
	if !r.IsError {
		t.Error("expected error for unknown project")
	}
}

func TestSearchDocuments(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_documents", map[string]any{"query": "Register"})
	var page docservice.SearchPage
	if err := json.Unmarshal([]byte(resultText(r)), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("total = %d, want 2", page.Total)
	}
}

func TestRunHealthCheck(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "run_health_check", map[string]any{"project": "alpha"})
	if r.IsError {
		t.Fatalf("health check failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"project_slug": "alpha"`) {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestSyncProject(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "sync_project", map[string]any{"project": "alpha"})
	if resultText(r) != "sync started: alpha" {
		t.Errorf("sync result = %q", resultText(r))
	}
	r = callTool(t, srv, "sync_project", map[string]any{"project": "alpha"})
	if !r.IsError {
		t.Error("expected error while a sync is running")
	}
}

func TestConventionsResource(t *testing.T) {
	srv := testServer(t)
	contents, err := srv.readConventionsResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != conventionsURI || !strings.Contains(tc.Text, "US0001-register") {
		t.Errorf("resource = %+v", contents)
	}
}
