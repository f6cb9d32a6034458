// Package httphandler is the driving adapter that serves the JSON read API.
package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/codexnumeris/codexnumeris/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	store  driven.ProjectStore
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(store driven.ProjectStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterAPIRoutes registers the JSON API routes on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/projects", h.ListProjects)
	mux.HandleFunc("GET /api/projects/{id}", h.GetProject)
	mux.HandleFunc("GET /api/health", h.Health)
}

// ApplyMiddleware wraps handler with recovery and request logging.
func ApplyMiddleware(handler http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, handler)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListProjects returns every stored project ordered by stars, highest first.
// A storage failure yields a 500 and no partial result.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListByStarsDesc(r.Context())
	if err != nil {
		h.logger.Error("failed to list projects", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetProject returns a single project by its GitHub repository id.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	project, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, driven.ErrProjectNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		h.logger.Error("failed to get project", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(*project))
}

// Health reports liveness and the number of stored projects.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Projects: count})
}
