package github

import "github.com/codexnumeris/codexnumeris/internal/domain/model"

// repoJSON is the subset of a GitHub repository object the collector reads.
// Timestamps are decoded as plain strings and validated later, per record.
type repoJSON struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description"`
	HTMLURL         string    `json:"html_url"`
	StargazersCount *int      `json:"stargazers_count"`
	Language        *string   `json:"language"`
	Owner           ownerJSON `json:"owner"`
	CreatedAt       string    `json:"created_at"`
	UpdatedAt       string    `json:"updated_at"`
	Fork            bool      `json:"fork"`
	Topics          []string  `json:"topics"`
}

type ownerJSON struct {
	Login string `json:"login"`
}

// searchJSON is the envelope returned by GET /search/repositories.
type searchJSON struct {
	TotalCount        int        `json:"total_count"`
	IncompleteResults bool       `json:"incomplete_results"`
	Items             []repoJSON `json:"items"`
}

// mapRepos converts decoded repositories to domain records. It always returns
// a non-nil slice.
func mapRepos(repos []repoJSON) []model.RepositoryRecord {
	records := make([]model.RepositoryRecord, 0, len(repos))
	for _, r := range repos {
		records = append(records, mapRepo(r))
	}
	return records
}

func mapRepo(r repoJSON) model.RepositoryRecord {
	return model.RepositoryRecord{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		HTMLURL:     r.HTMLURL,
		Stars:       r.StargazersCount,
		Language:    r.Language,
		OwnerLogin:  r.Owner.Login,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Fork:        r.Fork,
		Topics:      r.Topics,
	}
}
