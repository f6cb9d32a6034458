package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
)

// PageFetcher fetches one page of raw records. An empty page with a nil error
// is the end of data; a non-nil error is a failed fetch.
type PageFetcher func(ctx context.Context, page int) ([]model.RepositoryRecord, error)

// WalkOptions configures a single pagination walk.
type WalkOptions struct {
	Source    model.Source
	Target    string // Org name or query, for logging.
	StartPage int    // Defaults to 1.
	MaxPages  int    // 0 means unbounded.
}

// WalkResult summarizes one pagination walk.
type WalkResult struct {
	Pages    int
	Records  int
	Accepted int
	Buffered int
	Existing int
	Skipped  int
	Inserted int
	Rejected map[model.RejectReason]int
	Stop     model.StopReason
	Err      error // Cause for StopFetchError, StopStorageError and StopCanceled.
}

// Walker drives a PageFetcher through the quality filter into an Upserter,
// flushing once per page.
type Walker struct {
	upserter *Upserter
	now      func() time.Time
}

// NewWalker creates a Walker. now supplies the reference instant for the
// staleness rule; nil means time.Now.
func NewWalker(upserter *Upserter, now func() time.Time) *Walker {
	if now == nil {
		now = time.Now
	}
	return &Walker{upserter: upserter, now: now}
}

// Walk fetches pages starting at opts.StartPage until the fetcher returns an
// empty page or an error, the page ceiling is reached, a flush fails, or ctx
// is canceled. Records processed before the stop are kept.
func (w *Walker) Walk(ctx context.Context, fetch PageFetcher, opts WalkOptions) WalkResult {
	res := WalkResult{Rejected: make(map[model.RejectReason]int)}

	page := opts.StartPage
	if page < 1 {
		page = 1
	}

	for {
		if opts.MaxPages > 0 && res.Pages >= opts.MaxPages {
			res.Stop = model.StopPageLimit
			return res
		}

		if err := ctx.Err(); err != nil {
			res.Stop = model.StopCanceled
			res.Err = err
			return res
		}

		records, err := fetch(ctx, page)
		if err != nil {
			res.Stop = model.StopFetchError
			if ctx.Err() != nil {
				res.Stop = model.StopCanceled
			}
			res.Err = err
			return res
		}
		if len(records) == 0 {
			res.Stop = model.StopEndOfData
			return res
		}

		res.Pages++
		res.Records += len(records)

		if stop, err := w.processPage(ctx, records, opts.Source, &res); err != nil {
			res.Stop = stop
			res.Err = err
			return res
		}

		inserted, err := w.upserter.Flush(ctx)
		if err != nil {
			res.Stop = model.StopStorageError
			res.Err = err
			return res
		}
		res.Inserted += inserted

		slog.Debug("page processed",
			"source", string(opts.Source),
			"target", opts.Target,
			"page", page,
			"records", len(records),
			"inserted", inserted,
		)

		page++
	}
}

// processPage filters and stores every record of one page.
func (w *Walker) processPage(ctx context.Context, records []model.RepositoryRecord, source model.Source, res *WalkResult) (model.StopReason, error) {
	now := w.now()

	for _, rec := range records {
		ok, reason := EvaluateQuality(rec, now)
		if !ok {
			res.Rejected[reason]++
			continue
		}
		res.Accepted++

		outcome, err := w.upserter.Store(ctx, rec, source)
		if err != nil {
			return model.StopStorageError, err
		}

		switch outcome {
		case model.OutcomeBuffered:
			res.Buffered++
		case model.OutcomeExisting:
			res.Existing++
		case model.OutcomeSkipped:
			res.Skipped++
		}
	}

	return "", nil
}
