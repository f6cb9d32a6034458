package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexnumeris/codexnumeris/internal/application"
	"github.com/codexnumeris/codexnumeris/internal/domain/model"
)

func newCollectFixture() (*mockGitHubClient, *memoryStore) {
	gh := &mockGitHubClient{
		orgs: map[string]*pagedSource{
			"harvard": {pages: map[int][]model.RepositoryRecord{
				1: {goodRecord(1, "catalog"), goodRecord(2, "atlas")},
				2: {goodRecord(3, "lexicon")},
			}},
			"harvard-lil": {pages: map[int][]model.RepositoryRecord{
				1: {goodRecord(10, "perma")},
			}},
		},
		queries: map[string]*pagedSource{
			"harvard university": {pages: map[int][]model.RepositoryRecord{
				1: {goodRecord(2, "atlas"), goodRecord(20, "survey")},
			}},
		},
	}
	return gh, newMemoryStore()
}

func TestCollectService_Run(t *testing.T) {
	gh, store := newCollectFixture()
	svc := application.NewCollectService(gh, store,
		[]string{"harvard", "harvard-lil"},
		[]string{"harvard university"},
	).WithClock(clock)

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.projects, 5)
	assert.Equal(t, 5, summary.Inserted)
	assert.Equal(t, 1, summary.Existing, "atlas found by search is already stored")
	assert.Equal(t, 6, summary.Records)
	assert.Zero(t, summary.FetchErrors)
	require.Len(t, summary.Targets, 3)
	assert.Equal(t, model.SourceOrg, summary.Targets[0].Source)
	assert.Equal(t, "harvard", summary.Targets[0].Target)
	assert.Equal(t, model.SourceSearch, summary.Targets[2].Source)
	assert.Zero(t, store.reads, "a run reads storage only through Exists")
}

func TestCollectService_Idempotent(t *testing.T) {
	gh, store := newCollectFixture()
	orgs := []string{"harvard", "harvard-lil"}
	queries := []string{"harvard university"}

	_, err := application.NewCollectService(gh, store, orgs, queries).WithClock(clock).Run(context.Background())
	require.NoError(t, err)
	first := make(map[int64]model.Project, len(store.projects))
	for id, p := range store.projects {
		first[id] = p
	}

	for _, src := range gh.orgs {
		src.calls = nil
	}
	summary, err := application.NewCollectService(gh, store, orgs, queries).WithClock(clock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, store.projects)
	assert.Zero(t, summary.Inserted)
	assert.Equal(t, 6, summary.Existing)
}

func TestCollectService_NeverOverwrites(t *testing.T) {
	gh, store := newCollectFixture()
	store.projects[1] = model.Project{ID: 1, Name: "legacy", Stars: 11}

	_, err := application.NewCollectService(gh, store, []string{"harvard"}, nil).WithClock(clock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "legacy", store.projects[1].Name)
	assert.Equal(t, 11, store.projects[1].Stars)
}

func TestCollectService_SearchPageCap(t *testing.T) {
	gh := &mockGitHubClient{fullPages: true}
	store := newMemoryStore()

	summary, err := application.NewCollectService(gh, store, nil, []string{"cs50", "harvard-data"}).
		WithClock(clock).
		Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, gh.calls["search:cs50"])
	assert.Equal(t, 5, gh.calls["search:harvard-data"])
	require.Len(t, summary.Targets, 2)
	assert.Equal(t, model.StopPageLimit, summary.Targets[0].Stop)
	assert.Equal(t, 250, summary.Inserted, "second query repeats the same ids")
}

func TestCollectService_OrgSweepUnbounded(t *testing.T) {
	pages := make(map[int][]model.RepositoryRecord)
	for p := 1; p <= 8; p++ {
		pages[p] = []model.RepositoryRecord{goodRecord(int64(p), "repo")}
	}
	gh := &mockGitHubClient{orgs: map[string]*pagedSource{"harvard": {pages: pages}}}
	store := newMemoryStore()

	summary, err := application.NewCollectService(gh, store, []string{"harvard"}, nil).WithClock(clock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9, gh.calls["org:harvard"])
	assert.Equal(t, 8, summary.Pages)
	assert.Equal(t, model.StopEndOfData, summary.Targets[0].Stop)
}

func TestCollectService_FetchErrorMovesOn(t *testing.T) {
	gh, store := newCollectFixture()

	summary, err := application.NewCollectService(gh, store,
		[]string{"missing-org", "harvard"},
		[]string{"unknown query", "harvard university"},
	).WithClock(clock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FetchErrors)
	assert.Equal(t, model.StopFetchError, summary.Targets[0].Stop)
	assert.ErrorIs(t, summary.Targets[0].Err, errUnknownTarget)
	assert.Contains(t, store.projects, int64(3))
	assert.Contains(t, store.projects, int64(20))
}

func TestCollectService_StorageErrorMovesOn(t *testing.T) {
	gh, store := newCollectFixture()
	store.insertErr = errors.New("disk full")

	summary, err := application.NewCollectService(gh, store,
		[]string{"harvard", "harvard-lil"},
		nil,
	).WithClock(clock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.StoreErrors)
	assert.Len(t, summary.Targets, 2)
}

func TestCollectService_Canceled(t *testing.T) {
	gh, store := newCollectFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := application.NewCollectService(gh, store, []string{"harvard", "harvard-lil"}, nil).
		WithClock(clock).
		Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, summary.Targets, 1)
	assert.Empty(t, store.projects)
}

func TestCollectService_StaleRecordsFiltered(t *testing.T) {
	stale := goodRecord(5, "ancient")
	stale.UpdatedAt = "2019-01-01T00:00:00Z"
	gh := &mockGitHubClient{orgs: map[string]*pagedSource{
		"harvard": {pages: map[int][]model.RepositoryRecord{1: {stale, goodRecord(6, "fresh")}}},
	}}
	store := newMemoryStore()

	summary, err := application.NewCollectService(gh, store, []string{"harvard"}, nil).WithClock(clock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Rejected[model.RejectStale])
	assert.NotContains(t, store.projects, int64(5))
	assert.Contains(t, store.projects, int64(6))
}
