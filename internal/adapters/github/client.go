// Package github provides the hosting API adapter: repository resolution,
// organization listing and repository handles backed by the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v79/github"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

const listPageSize = 100

// Logger defines the logging interface for the GitHub adapter.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// Client implements domain.RepositoryResolver using go-github.
// It is created once and shared read-only by every repository handle.
type Client struct {
	gh     *github.Client
	logger Logger
}

// NewClient creates an authenticated client with a retrying transport.
func NewClient(cfg ClientConfig, log Logger) (*Client, error) {
	base := newRetryTransport(cfg)
	tr, itr, err := newAuthTransport(cfg, base)
	if err != nil {
		return nil, err
	}

	gh := github.NewClient(&http.Client{Transport: tr})
	if cfg.BaseURL != "" {
		gh, err = gh.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url %q: %w", cfg.BaseURL, err)
		}
		if itr != nil {
			itr.BaseURL = strings.TrimSuffix(gh.BaseURL.String(), "/")
		}
	}

	return &Client{gh: gh, logger: log}, nil
}

// Resolve fetches repository metadata for ref.
// Returns domain.ErrRepositoryNotFound if the repository does not exist.
func (c *Client) Resolve(ctx context.Context, ref domain.RepositoryRef) (domain.Repository, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, ref.Owner, ref.Name)
	if err != nil {
		return nil, mapError(err, domain.ErrRepositoryNotFound, ref.String())
	}

	c.logger.Debug(ctx, "resolved repository", map[string]interface{}{
		"repository":     repo.GetFullName(),
		"default_branch": repo.GetDefaultBranch(),
	})

	return c.handle(repo, ref), nil
}

// ListOrganization returns every repository of org, following pagination.
// Returns domain.ErrOrganizationNotFound if the organization does not exist.
func (c *Client) ListOrganization(ctx context.Context, org string) ([]domain.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}

	var repos []domain.Repository
	for {
		page, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return nil, mapError(err, domain.ErrOrganizationNotFound, org)
		}
		for _, r := range page {
			repos = append(repos, c.handle(r, domain.RepositoryRef{Owner: org, Name: r.GetName()}))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.logger.Debug(ctx, "listed organization repositories", map[string]interface{}{
		"organization": org,
		"count":        len(repos),
	})

	return repos, nil
}

// handle builds a repository handle, preferring the API's canonical name over fallback.
func (c *Client) handle(r *github.Repository, fallback domain.RepositoryRef) *Repository {
	ref := fallback
	if full, err := domain.ParseRepositoryRef(r.GetFullName()); err == nil {
		ref = full
	}
	return &Repository{
		client:        c,
		ref:           ref,
		defaultBranch: r.GetDefaultBranch(),
	}
}

// mapError translates go-github errors into domain errors.
// notFound is returned for 404 responses.
func mapError(err error, notFound error, subject string) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%w: %s: %w", domain.ErrRateLimited, subject, err)
	case notFound != nil && hasStatus(err, http.StatusNotFound):
		return fmt.Errorf("%w: %s", notFound, subject)
	default:
		return fmt.Errorf("github request for %s failed: %w", subject, err)
	}
}

// hasStatus reports whether err is a GitHub API error with the given HTTP status.
func hasStatus(err error, status int) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == status
}
