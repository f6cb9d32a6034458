package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ProjectResponse is the JSON representation of a stored project.
type ProjectResponse struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Description  *string  `json:"description"`
	URL          string   `json:"url"`
	Stars        int      `json:"stars"`
	Language     *string  `json:"language"`
	Organization *string  `json:"organization"`
	CreatedAt    *string  `json:"created_at"`
	UpdatedAt    *string  `json:"updated_at"`
	Topics       []string `json:"topics"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Projects int    `json:"projects"`
}

func toProjectResponse(p model.Project) ProjectResponse {
	topics := p.Topics
	if topics == nil {
		topics = []string{}
	}

	return ProjectResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		URL:          p.URL,
		Stars:        p.Stars,
		Language:     p.Language,
		Organization: p.Organization,
		CreatedAt:    formatTime(p.CreatedAt),
		UpdatedAt:    formatTime(p.UpdatedAt),
		Topics:       topics,
	}
}

// formatTime renders t as RFC 3339 in UTC, or nil when absent.
func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
