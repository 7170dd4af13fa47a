// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/appbridge/internal/domain/model"
	"github.com/ericfisherdev/appbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// maxListPages bounds installation repository pagination so a misbehaving or
// adversarial API cannot spin the sync loop forever. 50 pages at 100 items
// each covers 5000 repositories per installation.
const maxListPages = 50

// Client implements the driven.GitHubClient port for one app connection using
// the go-github library.
type Client struct {
	gh   *gh.Client
	slug string // Connection slug, used only for log attribution.
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with installation token auth)
func NewClient(token, slug string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:   client,
		slug: slug,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, slug string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:   client,
		slug: slug,
	}, nil
}

// ListAccessibleRepos retrieves every repository the connection's installation
// can access, following pagination links until exhausted or until maxListPages
// is exceeded. The result is a flat ordered sequence mapped to domain records.
func (c *Client) ListAccessibleRepos(ctx context.Context) ([]model.Repository, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var all []model.Repository
	pages := 0

	for {
		result, resp, err := c.gh.Apps.ListRepos(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing installation repos for %s (page %d): %w", c.slug, opts.Page, err)
		}
		pages++

		logRateLimit(resp, c.slug+"/installation-repos", opts.Page, len(result.Repositories))

		for _, repo := range result.Repositories {
			all = append(all, mapRepository(repo))
		}

		if resp.NextPage == 0 {
			break
		}
		if pages >= maxListPages {
			return nil, fmt.Errorf("listing installation repos for %s: page budget of %d exhausted", c.slug, maxListPages)
		}
		opts.Page = resp.NextPage
	}

	if all == nil {
		all = []model.Repository{}
	}

	return all, nil
}

// Probe performs one minimal authenticated request to verify the connection's
// credentials still work.
func (c *Client) Probe(ctx context.Context) error {
	opts := &gh.ListOptions{PerPage: 1}

	_, resp, err := c.gh.Apps.ListRepos(ctx, opts)
	if err != nil {
		return fmt.Errorf("probing connection %s: %w", c.slug, err)
	}

	logRateLimit(resp, c.slug+"/probe", 0, 0)
	return nil
}

// ProbeRepository performs one minimal authenticated request against a single
// repository.
func (c *Client) ProbeRepository(ctx context.Context, fullName string) error {
	owner, repo, err := splitRepo(fullName)
	if err != nil {
		return err
	}

	_, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("probing repository %s: %w", fullName, err)
	}

	logRateLimit(resp, fullName+"/probe", 0, 1)
	return nil
}

// mapRepository converts a go-github Repository to a domain model Repository.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
// ManagingAppID and LastSyncedAt are assigned by the sync engine, not here.
func mapRepository(repo *gh.Repository) model.Repository {
	return model.Repository{
		FullName:  repo.GetFullName(),
		GitHubID:  repo.GetID(),
		IsPrivate: repo.GetPrivate(),
		HTMLURL:   repo.GetHTMLURL(),
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
