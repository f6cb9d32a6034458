package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Collector is the unit of work the Scheduler repeats.
type Collector interface {
	Run(ctx context.Context) (RunSummary, error)
}

// ParseSchedule parses a standard five-field cron expression or a descriptor
// such as "@daily" or "@every 6h".
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return schedule, nil
}

// Scheduler re-runs collection on a cron schedule while the server is up.
// Runs never overlap: the next activation is computed only after the current
// run has finished.
type Scheduler struct {
	collector Collector
	schedule  cron.Schedule
	runNowCh  chan chan runOutcome
}

type runOutcome struct {
	summary RunSummary
	err     error
}

// NewScheduler creates a Scheduler firing on schedule.
func NewScheduler(collector Collector, schedule cron.Schedule) *Scheduler {
	return &Scheduler{
		collector: collector,
		schedule:  schedule,
		runNowCh:  make(chan chan runOutcome),
	}
}

// Start runs an immediate collection, then one per schedule activation. It
// also serves RunNow requests. A schedule with no future activation disables
// scheduled runs but RunNow keeps working. Start blocks until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.runOnce(ctx, "initial")

	var (
		timer *time.Timer
		tick  <-chan time.Time
	)
	arm := func() {
		wait, ok := s.untilNext()
		if !ok {
			slog.Warn("collection schedule has no future activation, scheduled runs disabled")
			tick = nil
			return
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		tick = timer.C
	}
	arm()
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("collection scheduler stopped")
			return
		case <-tick:
			s.runOnce(ctx, "scheduled")
			arm()
		case done := <-s.runNowCh:
			summary, err := s.collector.Run(ctx)
			done <- runOutcome{summary: summary, err: err}
		}
	}
}

// RunNow asks the scheduler loop to collect immediately and waits for the
// result. It blocks until the run completes or ctx is canceled.
func (s *Scheduler) RunNow(ctx context.Context) (RunSummary, error) {
	done := make(chan runOutcome, 1)

	select {
	case s.runNowCh <- done:
	case <-ctx.Done():
		return RunSummary{}, ctx.Err()
	}

	select {
	case out := <-done:
		return out.summary, out.err
	case <-ctx.Done():
		return RunSummary{}, ctx.Err()
	}
}

// untilNext returns the wait until the next activation, or false when the
// schedule never fires again (for example "0 0 30 2 *").
func (s *Scheduler) untilNext() (time.Duration, bool) {
	now := time.Now()
	next := s.schedule.Next(now)
	if next.IsZero() {
		return 0, false
	}
	slog.Debug("next collection scheduled", "at", next)
	return next.Sub(now), true
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) {
	summary, err := s.collector.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		slog.Error("collection run failed", "trigger", trigger, "error", err)
	default:
		slog.Info("collection run finished",
			"trigger", trigger,
			"inserted", summary.Inserted,
			"fetch_errors", summary.FetchErrors,
		)
	}
}
