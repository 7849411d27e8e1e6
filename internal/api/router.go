package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lens/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// System health stays reachable without a token.
	r.Get("/system/health", h.SystemHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", h.GetProject)
				r.Put("/", h.UpdateProject)
				r.Delete("/", h.DeleteProject)
				r.Post("/sync", h.TriggerSync)
				r.Get("/stats", h.ProjectStats)
				r.Get("/tree", h.Tree)
				r.Get("/health-check", h.HealthCheck)
				r.Get("/documents", h.ListDocuments)
				r.Get("/documents/{type}/{id}", h.GetDocument)
				r.Get("/documents/{type}/{id}/related", h.RelatedDocuments)
			})
		})

		r.Get("/search", h.Search)
		r.Get("/stats", h.AggregateStats)

		// SSE endpoint (protected by same auth middleware).
		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
