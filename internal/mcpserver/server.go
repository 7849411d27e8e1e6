// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes lens tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/lens/internal/docservice"
	"github.com/starford/lens/internal/hierarchy"
	"github.com/starford/lens/internal/index"
)

const conventionsURI = "lens://document-conventions"

// Server wraps the MCP server with lens tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all lens tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Lens",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List registered projects with their sync status and document counts."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents of a project with optional type and status filters."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project slug")),
		mcp.WithString("type", mcp.Description("Document type (epic, story, plan, ...)")),
		mcp.WithString("status", mcp.Description("Document status")),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
		mcp.WithNumber("per_page", mcp.Description("Page size (max 100)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read a document: title, metadata and Markdown body. "+
			"Read the conventions via the "+conventionsURI+" resource to interpret metadata."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project slug")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Document type")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id (e.g. US0001-register)")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("get_document_tree",
		mcp.WithDescription("Show the epic, story and plan hierarchy of a project as an outline."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project slug")),
		mcp.WithString("expand", mcp.Description("Which nodes are open"), mcp.Enum(docservice.ExpandDefault, docservice.ExpandAll, docservice.ExpandNone)),
	), s.getDocumentTree)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("project", mcp.Description("Restrict to one project slug")),
		mcp.WithString("type", mcp.Description("Restrict to one document type")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("run_health_check",
		mcp.WithDescription("Check a project's documentation for missing artefacts, broken references and stale status."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project slug")),
	), s.runHealthCheck)

	s.mcp.AddTool(mcp.NewTool("sync_project",
		mcp.WithDescription("Start a background sync of a project from its source."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project slug")),
	), s.syncProject)

	s.mcp.AddResource(
		mcp.NewResource(conventionsURI, "Document Conventions",
			mcp.WithResourceDescription("How lens derives document types, ids, titles and metadata."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventionsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.svc.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(projects)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := s.svc.ListDocuments(ctx, slug, index.ListQuery{
		Type:    req.GetString("type", ""),
		Status:  req.GetString("status", ""),
		Page:    req.GetInt("page", 0),
		PerPage: req.GetInt("per_page", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(page)
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetDocument(ctx, slug, docType, id, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	fmt.Fprintf(&b, "- id: %s\n- type: %s\n- path: %s\n", d.DocID, d.Type, d.FilePath)
	for _, kv := range []struct{ k, v string }{
		{"status", d.StatusValue()},
		{"owner", deref(d.Owner)},
		{"priority", deref(d.Priority)},
		{"epic", d.EpicRef()},
		{"story", d.StoryRef()},
	} {
		if kv.v != "" {
			fmt.Fprintf(&b, "- %s: %s\n", kv.k, kv.v)
		}
	}
	if d.StoryPoints != nil {
		fmt.Fprintf(&b, "- story points: %d\n", *d.StoryPoints)
	}
	b.WriteString("\n")
	b.WriteString(d.Content)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getDocumentTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tree, err := s.svc.Tree(ctx, slug, req.GetString("expand", docservice.ExpandDefault))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if tree.Total == 0 {
		return mcp.NewToolResultText("no documents"), nil
	}
	var b strings.Builder
	if err := hierarchy.WriteOutline(&b, tree.Rows); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Search(ctx, index.SearchQuery{
		Query:   query,
		Project: req.GetString("project", ""),
		Type:    req.GetString("type", ""),
		PerPage: 20,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) runHealthCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.HealthCheck(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) syncProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.TriggerSync(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("sync started: %s", p.Slug)), nil
}

func (s *Server) readConventionsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      conventionsURI,
			MIMEType: "text/markdown",
			Text:     DocumentConventions,
		},
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
