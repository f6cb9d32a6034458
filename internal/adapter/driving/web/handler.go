// Package web implements the HTML landing page driving adapter using templ components.
package web

import (
	"log/slog"
	"net/http"

	"github.com/codexnumeris/codexnumeris/internal/adapter/driving/web/templates"
	"github.com/codexnumeris/codexnumeris/internal/domain/port/driven"
)

const siteTitle = "Codex Numeris"

// Handler is the web driving adapter that serves HTML via templ components.
type Handler struct {
	store     driven.ProjectStore
	aboutHTML string
	logger    *slog.Logger
}

// NewHandler creates a Handler. The about blurb is rendered once here.
func NewHandler(store driven.ProjectStore, logger *slog.Logger) (*Handler, error) {
	about, err := renderContent("about.md")
	if err != nil {
		return nil, err
	}

	return &Handler{store: store, aboutHTML: about, logger: logger}, nil
}

// Landing renders the landing page. A failed count is logged and shown as zero;
// the project list itself is loaded by the page script.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Warn("failed to count projects", "error", err)
		count = 0
	}

	page := templates.Landing(templates.LandingData{
		Title:     siteTitle,
		AboutHTML: h.aboutHTML,
		Projects:  count,
	})
	layout := templates.Layout(siteTitle, page)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layout.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render landing page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
