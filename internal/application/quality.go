package application

import (
	"strings"
	"time"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
)

// Quality thresholds.
const (
	minDescriptionLength = 10
	minStars             = 10
	maxStaleness         = 30 * 24 * 24 * time.Hour // 720 days.
)

// courseworkMarkers are lower-case name fragments typical of homework repos.
var courseworkMarkers = []string{
	"pset1", "pset2", "pset3", "pset4", "pset5",
	"week1", "week2",
	"homework", "assignment", "final-project",
}

// IsQuality reports whether rec passes every quality rule as of now.
func IsQuality(rec model.RepositoryRecord, now time.Time) bool {
	ok, _ := EvaluateQuality(rec, now)
	return ok
}

// EvaluateQuality applies the quality rules in order and returns the first
// failed rule. It never mutates rec. Missing or malformed fields count as
// failing values.
func EvaluateQuality(rec model.RepositoryRecord, now time.Time) (bool, model.RejectReason) {
	desc := ""
	if rec.Description != nil {
		desc = *rec.Description
	}
	if len([]rune(strings.TrimSpace(desc))) < minDescriptionLength {
		return false, model.RejectDescription
	}

	if rec.StarCount() < minStars {
		return false, model.RejectStars
	}

	if rec.Fork {
		return false, model.RejectFork
	}

	if rec.UpdatedAt == "" {
		return false, model.RejectStale
	}
	updatedAt, err := parseTimestamp(rec.UpdatedAt)
	if err != nil {
		return false, model.RejectStale
	}
	if !updatedAt.After(now.UTC().Add(-maxStaleness)) {
		return false, model.RejectStale
	}

	name := strings.ToLower(rec.Name)
	for _, marker := range courseworkMarkers {
		if strings.Contains(name, marker) {
			return false, model.RejectCoursework
		}
	}

	return true, model.RejectNone
}
