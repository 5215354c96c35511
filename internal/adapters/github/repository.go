package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v79/github"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

const contentTypeSubmodule = "submodule"

// Repository implements domain.Repository for a repository hosted on GitHub.
// Reads go against the default branch.
type Repository struct {
	client        *Client
	ref           domain.RepositoryRef
	defaultBranch string
}

// Ref returns the canonical owner/name of the repository.
func (r *Repository) Ref() domain.RepositoryRef {
	return r.ref
}

// DefaultBranch returns the branch reads are resolved against.
func (r *Repository) DefaultBranch() string {
	return r.defaultBranch
}

// ReadFile fetches and decodes the file at path.
func (r *Repository) ReadFile(ctx context.Context, path string) ([]byte, error) {
	fc, err := r.contents(ctx, path)
	if err != nil {
		return nil, err
	}

	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s in %s: %w", path, r.ref, err)
	}

	return []byte(content), nil
}

// PinnedCommit returns the commit the default branch records for the submodule at path.
func (r *Repository) PinnedCommit(ctx context.Context, path string) (string, error) {
	fc, err := r.contents(ctx, path)
	if err != nil {
		return "", err
	}

	if fc.GetType() != contentTypeSubmodule {
		return "", fmt.Errorf("%w: %s in %s has type %q", domain.ErrNotSubmodule, path, r.ref, fc.GetType())
	}

	return fc.GetSHA(), nil
}

// HeadCommit returns the most recent commit of the default branch.
func (r *Repository) HeadCommit(ctx context.Context) (string, error) {
	commits, _, err := r.client.gh.Repositories.ListCommits(ctx, r.ref.Owner, r.ref.Name, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		// GitHub answers 409 Conflict for repositories without commits.
		if hasStatus(err, http.StatusConflict) {
			return "", fmt.Errorf("%w: %s", domain.ErrEmptyHistory, r.ref)
		}
		return "", mapError(err, nil, r.ref.String())
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrEmptyHistory, r.ref)
	}

	return commits[0].GetSHA(), nil
}

// Compare compares base against head using the compare API.
// Returns domain.ErrCommitNotFound if GitHub cannot compare the two commits.
func (r *Repository) Compare(ctx context.Context, base, head string) (*domain.CommitComparison, error) {
	cmp, _, err := r.client.gh.Repositories.CompareCommits(ctx, r.ref.Owner, r.ref.Name, base, head,
		&github.ListOptions{PerPage: 1})
	if err != nil {
		return nil, mapError(err, domain.ErrCommitNotFound, fmt.Sprintf("%s %s...%s", r.ref, base, head))
	}

	r.client.logger.Debug(ctx, "compared commits", map[string]interface{}{
		"repository": r.ref.String(),
		"base":       base,
		"head":       head,
		"status":     cmp.GetStatus(),
		"ahead_by":   cmp.GetAheadBy(),
		"behind_by":  cmp.GetBehindBy(),
	})

	return &domain.CommitComparison{
		Status:       domain.ComparisonStatus(cmp.GetStatus()),
		AheadBy:      cmp.GetAheadBy(),
		BehindBy:     cmp.GetBehindBy(),
		TotalCommits: cmp.GetTotalCommits(),
		PermalinkURL: cmp.GetPermalinkURL(),
	}, nil
}

// contents fetches a single path via the contents API.
func (r *Repository) contents(ctx context.Context, path string) (*github.RepositoryContent, error) {
	fc, _, _, err := r.client.gh.Repositories.GetContents(ctx, r.ref.Owner, r.ref.Name, path, nil)
	if err != nil {
		return nil, mapError(err, domain.ErrFileNotFound, fmt.Sprintf("%s:%s", r.ref, path))
	}
	if fc == nil {
		return nil, fmt.Errorf("%w: %s in %s is a directory", domain.ErrFileNotFound, path, r.ref)
	}
	return fc, nil
}
