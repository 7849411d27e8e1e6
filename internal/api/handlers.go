package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lens/internal/apperr"
	"github.com/starford/lens/internal/docservice"
	"github.com/starford/lens/internal/index"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// urlParam returns a decoded path parameter.
func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// intQuery parses an optional integer query parameter; absent means 0.
func intQuery(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", apperr.ErrValidation, name)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", apperr.ErrValidation)
	}
	return nil
}

// ListProjects handles GET /api/v1/projects.
//
//	@Summary		List registered projects
//	@Tags			projects
//	@Produce		json
//	@Success		200	{array}		ProjectResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, "list projects", err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// CreateProject handles POST /api/v1/projects.
//
//	@Summary		Register a project
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateProjectRequest	true	"Project to register"
//	@Success		201		{object}	ProjectResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, "create project", err)
		return
	}
	p, err := h.svc.CreateProject(r.Context(), req)
	if err != nil {
		writeError(w, r, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/v1/projects/{slug}.
//
//	@Summary		Get a project
//	@Tags			projects
//	@Produce		json
//	@Param			slug	path		string	true	"Project slug"
//	@Success		200		{object}	ProjectResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug} [get]
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), urlParam(r, "slug"))
	if err != nil {
		writeError(w, r, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject handles PUT /api/v1/projects/{slug}.
//
//	@Summary		Update a project
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			slug	path		string					true	"Project slug"
//	@Param			body	body		UpdateProjectRequest	true	"Fields to change"
//	@Success		200		{object}	ProjectResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug} [put]
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, "update project", err)
		return
	}
	p, err := h.svc.UpdateProject(r.Context(), urlParam(r, "slug"), req)
	if err != nil {
		writeError(w, r, "update project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/v1/projects/{slug}.
//
//	@Summary		Delete a project and its documents
//	@Tags			projects
//	@Param			slug	path	string	true	"Project slug"
//	@Success		204		"Project deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug} [delete]
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProject(r.Context(), urlParam(r, "slug")); err != nil {
		writeError(w, r, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TriggerSync handles POST /api/v1/projects/{slug}/sync.
//
//	@Summary		Start a background sync
//	@Tags			projects
//	@Produce		json
//	@Param			slug	path		string	true	"Project slug"
//	@Success		202		{object}	SyncTriggerResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug}/sync [post]
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.TriggerSync(r.Context(), urlParam(r, "slug"))
	if err != nil {
		writeError(w, r, "trigger sync", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SyncTriggerResponse{
		Slug:       p.Slug,
		SyncStatus: p.SyncStatus,
		Message:    "Sync started",
	})
}

// ProjectStats handles GET /api/v1/projects/{slug}/stats.
//
//	@Summary		Document statistics of a project
//	@Tags			stats
//	@Produce		json
//	@Param			slug	path		string	true	"Project slug"
//	@Success		200		{object}	ProjectStatsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug}/stats [get]
func (h *Handler) ProjectStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.ProjectStats(r.Context(), urlParam(r, "slug"))
	if err != nil {
		writeError(w, r, "project stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListDocuments handles GET /api/v1/projects/{slug}/documents.
//
//	@Summary		List documents with filtering, sorting and pagination
//	@Tags			documents
//	@Produce		json
//	@Param			slug		path		string	true	"Project slug"
//	@Param			type		query		string	false	"Document type"
//	@Param			status		query		string	false	"Document status"
//	@Param			sort		query		string	false	"Sort field"	Enums(title, type, status, updated_at)
//	@Param			order		query		string	false	"Sort order"	Enums(asc, desc)
//	@Param			page		query		int		false	"Page number"
//	@Param			per_page	query		int		false	"Page size (max 100)"
//	@Success		200			{object}	DocumentListResponse
//	@Failure		404			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug}/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intQuery(q, "page")
	if err != nil {
		writeError(w, r, "list documents", err)
		return
	}
	perPage, err := intQuery(q, "per_page")
	if err != nil {
		writeError(w, r, "list documents", err)
		return
	}
	res, err := h.svc.ListDocuments(r.Context(), urlParam(r, "slug"), index.ListQuery{
		Type:    q.Get("type"),
		Status:  q.Get("status"),
		Sort:    q.Get("sort"),
		Order:   q.Get("order"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		writeError(w, r, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetDocument handles GET /api/v1/projects/{slug}/documents/{type}/{id}.
//
//	@Summary		Get a document
//	@Tags			documents
//	@Produce		json
//	@Param			slug	path		string	true	"Project slug"
//	@Param			type	path		string	true	"Document type"
//	@Param			id		path		string	true	"Document id"
//	@Param			format	query		string	false	"Set to html to include rendered HTML"	Enums(html)
//	@Success		200		{object}	DocumentDetailResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug}/documents/{type}/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	html := r.URL.Query().Get("format") == "html"
	d, err := h.svc.GetDocument(r.Context(), urlParam(r, "slug"), urlParam(r, "type"), urlParam(r, "id"), html)
	if err != nil {
		writeError(w, r, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// RelatedDocuments handles GET /api/v1/projects/{slug}/documents/{type}/{id}/related.
//
//	@Summary		Parent chain and children of a document
//	@Tags			documents
//	@Produce		json
//	@Param			slug	path		string	true	"Project slug"
//	@Param			type	path		string	true	"Document type"
//	@Param			id		path		string	true	"Document id"
//	@Success		200		{object}	RelatedResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug}/documents/{type}/{id}/related [get]
func (h *Handler) RelatedDocuments(w http.ResponseWriter, r *http.Request) {
	rel, err := h.svc.RelatedDocuments(r.Context(), urlParam(r, "slug"), urlParam(r, "type"), urlParam(r, "id"))
	if err != nil {
		writeError(w, r, "related documents", err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// Tree handles GET /api/v1/projects/{slug}/tree.
//
//	@Summary		Document hierarchy of a project
//	@Tags			documents
//	@Produce		json
//	@Param			slug	path		string	true	"Project slug"
//	@Param			expand	query		string	false	"Initially expanded nodes"	Enums(default, all, none)
//	@Success		200		{object}	TreeResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug}/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.Tree(r.Context(), urlParam(r, "slug"), r.URL.Query().Get("expand"))
	if err != nil {
		writeError(w, r, "tree", err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// HealthCheck handles GET /api/v1/projects/{slug}/health-check.
//
//	@Summary		Documentation health report
//	@Tags			health
//	@Produce		json
//	@Param			slug	path		string	true	"Project slug"
//	@Success		200		{object}	HealthCheckResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{slug}/health-check [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.HealthCheck(r.Context(), urlParam(r, "slug"))
	if err != nil {
		writeError(w, r, "health check", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /api/v1/search.
//
//	@Summary		Full-text search across documents
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Search query"
//	@Param			project		query		string	false	"Project slug"
//	@Param			type		query		string	false	"Document type"
//	@Param			page		query		int		false	"Page number"
//	@Param			per_page	query		int		false	"Page size (max 100)"
//	@Success		200			{object}	SearchResponse
//	@Failure		422			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intQuery(q, "page")
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	perPage, err := intQuery(q, "per_page")
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	res, err := h.svc.Search(r.Context(), index.SearchQuery{
		Query:   q.Get("q"),
		Project: q.Get("project"),
		Type:    q.Get("type"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AggregateStats handles GET /api/v1/stats.
//
//	@Summary		Statistics across all projects
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	AggregateStatsResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) AggregateStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.AggregateStats(r.Context())
	if err != nil {
		writeError(w, r, "aggregate stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SystemHealth handles GET /api/v1/system/health.
//
//	@Summary		Service and database liveness
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	SystemHealthResponse
//	@Router			/system/health [get]
func (h *Handler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.SystemHealth(r.Context()))
}
