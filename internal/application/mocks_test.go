package application_test

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
	"github.com/codexnumeris/codexnumeris/internal/domain/port/driven"
)

// fixedNow is the reference clock for all application tests.
var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

// goodRecord returns a record that passes every quality rule.
func goodRecord(id int64, name string) model.RepositoryRecord {
	return model.RepositoryRecord{
		ID:          id,
		Name:        name,
		Description: strPtr("A genuinely useful research toolkit"),
		HTMLURL:     "https://github.com/harvard/" + name,
		Stars:       intPtr(50),
		Language:    strPtr("Python"),
		OwnerLogin:  "harvard",
		CreatedAt:   "2020-05-01T10:00:00Z",
		UpdatedAt:   fixedNow.Add(-24 * time.Hour).Format(time.RFC3339),
		Topics:      []string{"research"},
	}
}

// --- Mock implementations ---

// memoryStore is an in-memory ProjectStore.
type memoryStore struct {
	projects  map[int64]model.Project
	batches   [][]model.Project
	existsErr error
	insertErr error
	reads     int // Calls other than Exists and InsertBatch.
}

var _ driven.ProjectStore = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{projects: make(map[int64]model.Project)}
}

func (m *memoryStore) Exists(_ context.Context, id int64) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.projects[id]
	return ok, nil
}

func (m *memoryStore) InsertBatch(_ context.Context, projects []model.Project) (int, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.batches = append(m.batches, projects)
	var inserted int
	for _, p := range projects {
		if _, ok := m.projects[p.ID]; ok {
			continue
		}
		m.projects[p.ID] = p
		inserted++
	}
	return inserted, nil
}

func (m *memoryStore) GetByID(_ context.Context, id int64) (*model.Project, error) {
	m.reads++
	p, ok := m.projects[id]
	if !ok {
		return nil, driven.ErrProjectNotFound
	}
	return &p, nil
}

func (m *memoryStore) ListByStarsDesc(_ context.Context) ([]model.Project, error) {
	m.reads++
	out := make([]model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stars != out[j].Stars {
			return out[i].Stars > out[j].Stars
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryStore) Count(_ context.Context) (int, error) {
	m.reads++
	return len(m.projects), nil
}

// pagedSource serves canned pages per target. A missing page is an empty page.
type pagedSource struct {
	pages map[int][]model.RepositoryRecord
	errAt map[int]error
	calls []int
}

func (p *pagedSource) fetch(_ context.Context, page int) ([]model.RepositoryRecord, error) {
	p.calls = append(p.calls, page)
	if err, ok := p.errAt[page]; ok {
		return nil, err
	}
	return p.pages[page], nil
}

// mockGitHubClient routes calls to per-org and per-query sources.
type mockGitHubClient struct {
	orgs    map[string]*pagedSource
	queries map[string]*pagedSource
	// fullPages makes every search page return a full page.
	fullPages bool
	calls     map[string]int
}

var _ driven.GitHubClient = (*mockGitHubClient)(nil)

var errUnknownTarget = errors.New("unknown target")

func (m *mockGitHubClient) count(key string) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[key]++
}

func (m *mockGitHubClient) ListOrgRepos(ctx context.Context, org string, page int) ([]model.RepositoryRecord, error) {
	m.count("org:" + org)
	src, ok := m.orgs[org]
	if !ok {
		return nil, errUnknownTarget
	}
	return src.fetch(ctx, page)
}

func (m *mockGitHubClient) SearchRepositories(ctx context.Context, query string, page int) ([]model.RepositoryRecord, error) {
	m.count("search:" + query)
	if m.fullPages {
		recs := make([]model.RepositoryRecord, 0, 50)
		for i := range 50 {
			recs = append(recs, goodRecord(int64(page*1000+i), "full"))
		}
		return recs, nil
	}
	src, ok := m.queries[query]
	if !ok {
		return nil, errUnknownTarget
	}
	return src.fetch(ctx, page)
}
