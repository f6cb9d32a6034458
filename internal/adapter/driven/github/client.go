// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/time/rate"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
	"github.com/codexnumeris/codexnumeris/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Page sizes used by the collector.
const (
	orgPerPage    = 100
	searchPerPage = 50
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	userAgent         = "CodexNumeris/1.0"
	apiVersion        = "2022-11-28"
	acceptHeader      = "application/vnd.github+json"
)

// FetchError reports a page that could not be fetched. StatusCode is zero when
// no HTTP response was received.
type FetchError struct {
	Endpoint   string
	Page       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s page %d: status %d: %v", e.Endpoint, e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s page %d: %v", e.Endpoint, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// clientOptions configures the Client.
type clientOptions struct {
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
}

// ClientOption applies a configuration to the Client.
type ClientOption func(*clientOptions)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.timeout = d }
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) ClientOption {
	return func(o *clientOptions) { o.maxRetries = n }
}

// WithLimiter sets the limiter every page request waits on.
func WithLimiter(l *rate.Limiter) ClientOption {
	return func(o *clientOptions) { o.limiter = l }
}

// WithBackOff overrides the retry schedule. Used by tests to avoid sleeping.
func WithBackOff(newBackOff func() backoff.BackOff) ClientOption {
	return func(o *clientOptions) { o.newBackOff = newBackOff }
}

func buildOptions(opts []ClientOption) clientOptions {
	o := clientOptions{
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewLimiter returns a limiter allowing perSecond requests per second with a
// burst of one. A non-positive rate disables limiting.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh         *gh.Client
	limiter    *rate.Limiter
	maxRetries int
	newBackOff func() backoff.BackOff
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth when token is set)
func NewClient(token string, opts ...ClientOption) *Client {
	o := buildOptions(opts)

	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	rateLimitClient.Timeout = o.timeout

	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	} else {
		slog.Warn("no github token configured, using unauthenticated client")
	}
	client.UserAgent = userAgent

	return newClient(client, o)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string, opts ...ClientOption) (*Client, error) {
	o := buildOptions(opts)

	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	client.UserAgent = userAgent

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return newClient(client, o), nil
}

func newClient(client *gh.Client, o clientOptions) *Client {
	return &Client{
		gh:         client,
		limiter:    o.limiter,
		maxRetries: o.maxRetries,
		newBackOff: o.newBackOff,
	}
}

// ListOrgRepos fetches one page of an organization's repositories.
func (c *Client) ListOrgRepos(ctx context.Context, org string, page int) ([]model.RepositoryRecord, error) {
	params := url.Values{}
	params.Set("per_page", fmt.Sprint(orgPerPage))
	params.Set("page", fmt.Sprint(page))
	endpoint := fmt.Sprintf("orgs/%s/repos", url.PathEscape(org))

	var repos []repoJSON
	if err := c.getPage(ctx, endpoint, params, page, &repos); err != nil {
		return nil, err
	}

	return mapRepos(repos), nil
}

// SearchRepositories fetches one page of repository search results.
func (c *Client) SearchRepositories(ctx context.Context, query string, page int) ([]model.RepositoryRecord, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("per_page", fmt.Sprint(searchPerPage))
	params.Set("page", fmt.Sprint(page))

	var result searchJSON
	if err := c.getPage(ctx, "search/repositories", params, page, &result); err != nil {
		return nil, err
	}

	return mapRepos(result.Items), nil
}

// getPage is the single choke point for page requests: it waits on the rate
// limiter, then performs the request with bounded exponential retry.
// Non-transient failures are returned immediately as *FetchError.
func (c *Client) getPage(ctx context.Context, endpoint string, params url.Values, page int, v any) error {
	path := endpoint + "?" + params.Encode()

	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(&FetchError{Endpoint: endpoint, Page: page, Err: err})
		}

		req, err := c.gh.NewRequest(http.MethodGet, path, nil)
		if err != nil {
			return backoff.Permanent(&FetchError{Endpoint: endpoint, Page: page, Err: err})
		}
		req.Header.Set("Accept", acceptHeader)
		req.Header.Set("X-GitHub-Api-Version", apiVersion)

		resp, err := c.gh.Do(ctx, req, v)
		if err != nil {
			fetchErr := &FetchError{Endpoint: endpoint, Page: page, Err: err}
			if resp != nil {
				fetchErr.StatusCode = resp.StatusCode
			}
			if !isTransient(ctx, resp, err) {
				return backoff.Permanent(fetchErr)
			}
			return fetchErr
		}

		logRateLimit(resp, endpoint, page)
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	notify := func(err error, wait time.Duration) {
		slog.Warn("github request failed, retrying",
			"endpoint", endpoint,
			"page", page,
			"wait", wait.Round(time.Millisecond),
			"error", err,
		)
	}

	return backoff.RetryNotify(op, b, notify)
}

// isTransient reports whether a failed request is worth retrying: network
// failures, server errors and secondary rate limits. Primary rate limits and
// other client errors are final.
func isTransient(ctx context.Context, resp *gh.Response, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	if resp == nil || resp.Response == nil {
		return true
	}

	return resp.StatusCode >= http.StatusInternalServerError
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
