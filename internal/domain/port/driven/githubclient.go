package driven

import (
	"context"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
)

// GitHubClient defines the driven port for reading repository listings from
// the GitHub API. Each call fetches exactly one page. An empty slice with a nil
// error means there is no more data; a non-nil error means the page could not
// be fetched and must not be read as end of data.
type GitHubClient interface {
	// ListOrgRepos returns one page of GET /orgs/{org}/repos (100 per page).
	ListOrgRepos(ctx context.Context, org string, page int) ([]model.RepositoryRecord, error)
	// SearchRepositories returns one page of GET /search/repositories (50 per page).
	SearchRepositories(ctx context.Context, query string, page int) ([]model.RepositoryRecord, error)
}
