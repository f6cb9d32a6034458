// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
	"github.com/codexnumeris/codexnumeris/internal/domain/port/driven"
)

// searchPageLimit caps search pagination; the search API stops serving
// results past its own result window.
const searchPageLimit = 5

// TargetResult is the outcome of walking one organization or query.
type TargetResult struct {
	Source model.Source
	Target string
	WalkResult
}

// RunSummary aggregates one collection run.
type RunSummary struct {
	Targets     []TargetResult
	Pages       int
	Records     int
	Accepted    int
	Inserted    int
	Existing    int
	Skipped     int
	Rejected    map[model.RejectReason]int
	FetchErrors int
	StoreErrors int
	Duration    time.Duration
}

func (s *RunSummary) add(tr TargetResult) {
	s.Targets = append(s.Targets, tr)
	s.Pages += tr.Pages
	s.Records += tr.Records
	s.Accepted += tr.Accepted
	s.Inserted += tr.Inserted
	s.Existing += tr.Existing
	s.Skipped += tr.Skipped
	for reason, n := range tr.Rejected {
		s.Rejected[reason] += n
	}
	switch tr.Stop {
	case model.StopFetchError:
		s.FetchErrors++
	case model.StopStorageError:
		s.StoreErrors++
	}
}

// CollectService runs the organization sweep followed by the search sweep.
// It is single-threaded; concurrent runs against the same store are not
// supported.
type CollectService struct {
	ghClient driven.GitHubClient
	store    driven.ProjectStore
	orgs     []string
	queries  []string
	now      func() time.Time
}

// NewCollectService creates a CollectService with all required dependencies.
func NewCollectService(
	ghClient driven.GitHubClient,
	store driven.ProjectStore,
	orgs []string,
	queries []string,
) *CollectService {
	return &CollectService{
		ghClient: ghClient,
		store:    store,
		orgs:     orgs,
		queries:  queries,
		now:      time.Now,
	}
}

// WithClock overrides the reference clock used by the staleness rule.
func (s *CollectService) WithClock(now func() time.Time) *CollectService {
	s.now = now
	return s
}

// Run performs one full collection. A failed fetch or flush ends only the
// current organization or query; the run continues with the next one. The
// returned error is non-nil only when ctx is canceled.
func (s *CollectService) Run(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{Rejected: make(map[model.RejectReason]int)}

	walker := NewWalker(NewUpserter(s.store), s.now)

	for _, org := range s.orgs {
		slog.Info("collecting organization", "org", org)
		fetch := func(ctx context.Context, page int) ([]model.RepositoryRecord, error) {
			return s.ghClient.ListOrgRepos(ctx, org, page)
		}
		res := walker.Walk(ctx, fetch, WalkOptions{Source: model.SourceOrg, Target: org})
		if err := s.record(&summary, model.SourceOrg, org, res); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
	}

	for _, query := range s.queries {
		slog.Info("collecting search", "query", query)
		fetch := func(ctx context.Context, page int) ([]model.RepositoryRecord, error) {
			return s.ghClient.SearchRepositories(ctx, query, page)
		}
		res := walker.Walk(ctx, fetch, WalkOptions{Source: model.SourceSearch, Target: query, MaxPages: searchPageLimit})
		if err := s.record(&summary, model.SourceSearch, query, res); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
	}

	summary.Duration = time.Since(start)

	slog.Info("collection complete",
		"pages", summary.Pages,
		"records", summary.Records,
		"accepted", summary.Accepted,
		"inserted", summary.Inserted,
		"existing", summary.Existing,
		"skipped", summary.Skipped,
		"fetch_errors", summary.FetchErrors,
		"store_errors", summary.StoreErrors,
		"duration", summary.Duration.Round(time.Millisecond),
	)

	return summary, nil
}

// record folds one walk into the summary and applies the stop policy: fetch
// and storage failures are logged and the run moves on; cancellation aborts.
func (s *CollectService) record(summary *RunSummary, source model.Source, target string, res WalkResult) error {
	summary.add(TargetResult{Source: source, Target: target, WalkResult: res})

	attrs := []any{
		"source", string(source),
		"target", target,
		"pages", res.Pages,
		"accepted", res.Accepted,
		"inserted", res.Inserted,
		"stop", string(res.Stop),
	}

	switch res.Stop {
	case model.StopCanceled:
		slog.Warn("collection canceled", append(attrs, "error", res.Err)...)
		return res.Err
	case model.StopFetchError:
		slog.Warn("fetch failed, moving on", append(attrs, "error", res.Err)...)
	case model.StopStorageError:
		slog.Error("storage failed, moving on", append(attrs, "error", res.Err)...)
	default:
		slog.Info("target collected", attrs...)
	}

	return nil
}
