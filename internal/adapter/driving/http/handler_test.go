package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/codexnumeris/codexnumeris/internal/adapter/driving/http"
	"github.com/codexnumeris/codexnumeris/internal/domain/model"
	"github.com/codexnumeris/codexnumeris/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockProjectStore struct {
	projects []model.Project
	count    int
	err      error
}

func (m *mockProjectStore) Exists(_ context.Context, _ int64) (bool, error) { return false, nil }
func (m *mockProjectStore) InsertBatch(_ context.Context, p []model.Project) (int, error) {
	return len(p), nil
}
func (m *mockProjectStore) GetByID(_ context.Context, id int64) (*model.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.projects {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, driven.ErrProjectNotFound
}
func (m *mockProjectStore) ListByStarsDesc(_ context.Context) ([]model.Project, error) {
	return m.projects, m.err
}
func (m *mockProjectStore) Count(_ context.Context) (int, error) { return m.count, m.err }

func strPtr(s string) *string { return &s }

func newTestServer(t *testing.T, store driven.ProjectStore) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(store, logger))
	return httphandler.ApplyMiddleware(mux, logger)
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListProjects(t *testing.T) {
	created := time.Date(2019, 3, 4, 5, 6, 7, 0, time.UTC)
	updated := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store := &mockProjectStore{projects: []model.Project{
		{
			ID:           2,
			Name:         "perma",
			Description:  strPtr("Web archiving for citations"),
			URL:          "https://github.com/harvard-lil/perma",
			Stars:        400,
			Language:     strPtr("Python"),
			Organization: strPtr("harvard-lil"),
			CreatedAt:    &created,
			UpdatedAt:    &updated,
			Topics:       []string{"archiving"},
		},
		{ID: 1, Name: "bare", URL: "https://github.com/huit/bare", Stars: 12},
	}}

	rec := doGet(t, newTestServer(t, store), "/api/projects")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)

	first := body[0]
	assert.Equal(t, float64(2), first["id"])
	assert.Equal(t, "perma", first["name"])
	assert.Equal(t, "Web archiving for citations", first["description"])
	assert.Equal(t, "https://github.com/harvard-lil/perma", first["url"])
	assert.Equal(t, float64(400), first["stars"])
	assert.Equal(t, "Python", first["language"])
	assert.Equal(t, "harvard-lil", first["organization"])
	assert.Equal(t, "2019-03-04T05:06:07Z", first["created_at"])
	assert.Equal(t, "2026-09-01T12:00:00Z", first["updated_at"])
	assert.Equal(t, []any{"archiving"}, first["topics"])

	second := body[1]
	assert.Nil(t, second["description"])
	assert.Nil(t, second["language"])
	assert.Nil(t, second["organization"])
	assert.Nil(t, second["created_at"])
	assert.Nil(t, second["updated_at"])
	assert.Equal(t, []any{}, second["topics"])
}

func TestListProjects_Empty(t *testing.T) {
	rec := doGet(t, newTestServer(t, &mockProjectStore{}), "/api/projects")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListProjects_StorageError(t *testing.T) {
	store := &mockProjectStore{
		projects: []model.Project{{ID: 1, Name: "partial"}},
		err:      errors.New("no such table: projects"),
	}

	rec := doGet(t, newTestServer(t, store), "/api/projects")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	assert.NotContains(t, rec.Body.String(), "partial")
}

func TestListProjects_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/projects", nil)
	rec := httptest.NewRecorder()
	newTestServer(t, &mockProjectStore{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetProject(t *testing.T) {
	store := &mockProjectStore{projects: []model.Project{{ID: 77, Name: "atlas", Stars: 15}}}
	h := newTestServer(t, store)

	rec := doGet(t, h, "/api/projects/77")
	require.Equal(t, http.StatusOK, rec.Code)
	var body httphandler.ProjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(77), body.ID)
	assert.Equal(t, "atlas", body.Name)
	assert.Equal(t, []string{}, body.Topics)

	assert.Equal(t, http.StatusNotFound, doGet(t, h, "/api/projects/78").Code)
	assert.Equal(t, http.StatusBadRequest, doGet(t, h, "/api/projects/abc").Code)
	assert.Equal(t, http.StatusBadRequest, doGet(t, h, "/api/projects/-4").Code)
}

func TestGetProject_StorageError(t *testing.T) {
	store := &mockProjectStore{err: errors.New("database is locked")}

	rec := doGet(t, newTestServer(t, store), "/api/projects/1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := doGet(t, newTestServer(t, &mockProjectStore{count: 42}), "/api/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","projects":42}`, rec.Body.String())
}

func TestHealth_StorageError(t *testing.T) {
	rec := doGet(t, newTestServer(t, &mockProjectStore{err: errors.New("closed")}), "/api/health")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	h := httphandler.ApplyMiddleware(mux, slog.New(slog.DiscardHandler))

	rec := doGet(t, h, "/boom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
