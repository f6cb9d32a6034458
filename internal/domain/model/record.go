package model

// RepositoryRecord is one repository entry exactly as returned by the GitHub
// API, before filtering and normalization. Timestamps are kept as the raw
// ISO-8601 strings so a single malformed value affects only its own record.
type RepositoryRecord struct {
	ID          int64
	Name        string
	Description *string
	HTMLURL     string
	Stars       *int // nil when the API omitted stargazers_count.
	Language    *string
	OwnerLogin  string
	CreatedAt   string
	UpdatedAt   string
	Fork        bool
	Topics      []string
}

// StarCount returns the star count, treating an absent value as zero.
func (r RepositoryRecord) StarCount() int {
	if r.Stars == nil {
		return 0
	}
	return *r.Stars
}
