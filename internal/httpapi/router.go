package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Live-to-Role/grimoire/internal/library"
)

// API exposes the duplicate-resolution engine over HTTP.
type API struct {
	service *library.Service
	logger  library.Logger
}

// NewAPI creates the API with its dependencies.
func NewAPI(service *library.Service, logger library.Logger) *API {
	return &API{service: service, logger: logger}
}

// Router builds the HTTP routing table.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/duplicates", func(r chi.Router) {
			r.Get("/", a.handleListDuplicates)
			r.Get("/stats", a.handleStats)
			r.Post("/scan", a.handleScan)
			r.Post("/bulk-delete", a.handleBulkDelete)
			r.Post("/group/{hash}/delete-duplicates", a.handleResolveGroup)
			r.Get("/resolve/preview", a.handlePreview)
			r.Post("/resolve/execute", a.handleExecute)
		})

		r.Route("/folders", func(r chi.Router) {
			r.Get("/", a.handleListFolders)
			r.Post("/", a.handleCreateFolder)
			r.Patch("/{id}", a.handlePatchFolder)
			r.Delete("/{id}", a.handleDeleteFolder)
		})

		r.Route("/exclusions", func(r chi.Router) {
			r.Get("/", a.handleListRules)
			r.Post("/", a.handleCreateRule)
			r.Put("/{id}", a.handleUpdateRule)
			r.Delete("/{id}", a.handleDeleteRule)
		})
	})

	return r
}

// logRequests logs one line per completed request.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// handleHealth reports liveness.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
