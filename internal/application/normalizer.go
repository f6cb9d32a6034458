package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
	"github.com/codexnumeris/codexnumeris/internal/domain/port/driven"
)

// ErrMalformedTimestamp is returned by Normalize when a timestamp field is not
// valid ISO-8601.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// ErrMissingName is returned by Normalize for a record without a name.
var ErrMissingName = errors.New("missing repository name")

// timestampLayouts lists accepted GitHub timestamp shapes. Values without a
// zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseTimestamp parses an ISO-8601 timestamp into a UTC instant.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

// optionalTimestamp parses s, returning nil for an empty string.
func optionalTimestamp(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTimestamp(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &t, nil
}

// Normalize maps a raw record onto the stored Project shape. Topics default to
// an empty slice. A blank name or malformed timestamp is an error.
func Normalize(rec model.RepositoryRecord) (model.Project, error) {
	if strings.TrimSpace(rec.Name) == "" {
		return model.Project{}, ErrMissingName
	}

	createdAt, err := optionalTimestamp("created_at", rec.CreatedAt)
	if err != nil {
		return model.Project{}, err
	}
	updatedAt, err := optionalTimestamp("updated_at", rec.UpdatedAt)
	if err != nil {
		return model.Project{}, err
	}

	topics := make([]string, len(rec.Topics))
	copy(topics, rec.Topics)

	var org *string
	if rec.OwnerLogin != "" {
		login := rec.OwnerLogin
		org = &login
	}

	return model.Project{
		ID:           rec.ID,
		Name:         rec.Name,
		Description:  rec.Description,
		URL:          rec.HTMLURL,
		Stars:        rec.StarCount(),
		Language:     rec.Language,
		Organization: org,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		Topics:       topics,
	}, nil
}

// Upserter performs insert-if-absent for accepted records. New projects are
// buffered until Flush, which is the durability point.
type Upserter struct {
	store   driven.ProjectStore
	pending []model.Project
	queued  map[int64]struct{}
}

// NewUpserter creates an Upserter writing to store.
func NewUpserter(store driven.ProjectStore) *Upserter {
	return &Upserter{
		store:  store,
		queued: make(map[int64]struct{}),
	}
}

// Store queues rec for insertion unless a project with the same ID is already
// stored or pending. A record that cannot be normalized is logged and skipped;
// only storage failures are returned as errors.
func (u *Upserter) Store(ctx context.Context, rec model.RepositoryRecord, source model.Source) (model.StoreOutcome, error) {
	if _, ok := u.queued[rec.ID]; ok {
		return model.OutcomeExisting, nil
	}

	exists, err := u.store.Exists(ctx, rec.ID)
	if err != nil {
		return "", fmt.Errorf("check project %d: %w", rec.ID, err)
	}
	if exists {
		return model.OutcomeExisting, nil
	}

	project, err := Normalize(rec)
	if err != nil {
		slog.Warn("skipping record",
			"source", string(source),
			"id", rec.ID,
			"name", rec.Name,
			"error", err,
		)
		return model.OutcomeSkipped, nil
	}

	u.pending = append(u.pending, project)
	u.queued[project.ID] = struct{}{}

	slog.Info("project queued", "source", string(source), "id", project.ID, "name", project.Name)

	return model.OutcomeBuffered, nil
}

// Pending returns the number of buffered projects awaiting Flush.
func (u *Upserter) Pending() int {
	return len(u.pending)
}

// Flush writes all buffered projects in one batch and clears the buffer.
// On failure the buffer is dropped as well, so a failed page is not retried
// implicitly by the next flush.
func (u *Upserter) Flush(ctx context.Context) (int, error) {
	if len(u.pending) == 0 {
		return 0, nil
	}

	batch := u.pending
	u.pending = nil
	clear(u.queued)

	inserted, err := u.store.InsertBatch(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("flush %d projects: %w", len(batch), err)
	}

	return inserted, nil
}
