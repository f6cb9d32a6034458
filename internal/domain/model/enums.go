package model

// Source tags where a record was discovered. It is used for logging only and
// is never persisted.
type Source string

const (
	SourceOrg    Source = "org"
	SourceSearch Source = "search"
)

// RejectReason names the quality rule a record failed.
type RejectReason string

const (
	RejectNone        RejectReason = ""
	RejectDescription RejectReason = "description"
	RejectStars       RejectReason = "stars"
	RejectFork        RejectReason = "fork"
	RejectStale       RejectReason = "stale"
	RejectCoursework  RejectReason = "coursework"
)

// StopReason explains why a pagination walk ended.
type StopReason string

const (
	StopEndOfData    StopReason = "end_of_data"
	StopPageLimit    StopReason = "page_limit"
	StopFetchError   StopReason = "fetch_error"
	StopStorageError StopReason = "storage_error"
	StopCanceled     StopReason = "canceled"
)

// StoreOutcome describes what the upserter did with an accepted record.
type StoreOutcome string

const (
	OutcomeBuffered StoreOutcome = "buffered" // Queued for the next flush.
	OutcomeExisting StoreOutcome = "existing" // Already stored or pending; nothing written.
	OutcomeSkipped  StoreOutcome = "skipped"  // Could not be normalized.
)
