// Package git provides adapters for interacting with Git data: parsing .gitmodules
// files, normalizing remote URLs and reading root repositories from local checkouts.
// This package uses go-git/v5.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// Logger defines the logging interface for the git adapter.
// This interface enables dependency injection and testability.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// LocalRepository implements domain.Repository for a local checkout using go-git/v5.
// Files and submodule pins are read from the HEAD commit, not the working tree.
type LocalRepository struct {
	repo   *git.Repository
	path   string
	ref    domain.RepositoryRef
	logger Logger
}

// NewLocalRepository opens the repository at path and derives its identity from
// the 'origin' remote URL, which must be on github.com or one of hosts.
// Returns domain.ErrLocalRepositoryNotFound if the path is not a valid Git repository.
func NewLocalRepository(path string, log Logger, hosts ...string) (*LocalRepository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLocalRepositoryNotFound, path)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get origin remote: %w", domain.ErrNoRemoteOrigin, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: origin remote has no URLs configured", domain.ErrNoRemoteOrigin)
	}

	ref, err := extractRepoName(urls[0], hosts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRemoteURL, err)
	}

	return &LocalRepository{
		repo:   repo,
		path:   path,
		ref:    ref,
		logger: log,
	}, nil
}

// Ref returns the identifier derived from the origin remote.
func (r *LocalRepository) Ref() domain.RepositoryRef {
	return r.ref
}

// ReadFile returns the contents of path in the HEAD commit.
func (r *LocalRepository) ReadFile(ctx context.Context, path string) ([]byte, error) {
	commit, err := r.headCommit()
	if err != nil {
		return nil, err
	}

	f, err := commit.File(cleanPath(path))
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	contents, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	r.logger.Debug(ctx, "read file from local repository", map[string]interface{}{
		"path":       r.path,
		"file":       path,
		"repository": r.ref.String(),
	})

	return []byte(contents), nil
}

// PinnedCommit returns the commit recorded by the gitlink at path in the HEAD commit.
func (r *LocalRepository) PinnedCommit(_ context.Context, path string) (string, error) {
	commit, err := r.headCommit()
	if err != nil {
		return "", err
	}

	tree, err := commit.Tree()
	if err != nil {
		return "", fmt.Errorf("failed to get tree for HEAD: %w", err)
	}

	entry, err := tree.FindEntry(cleanPath(path))
	if err != nil {
		if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("failed to look up %s: %w", path, err)
	}

	if entry.Mode != filemode.Submodule {
		return "", fmt.Errorf("%w: %s", domain.ErrNotSubmodule, path)
	}

	return entry.Hash.String(), nil
}

// HeadCommit returns the SHA of HEAD.
func (r *LocalRepository) HeadCommit(_ context.Context) (string, error) {
	commit, err := r.headCommit()
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

// Compare computes the relationship between base and head from local commit ancestry.
func (r *LocalRepository) Compare(ctx context.Context, base, head string) (*domain.CommitComparison, error) {
	if base == head {
		return &domain.CommitComparison{Status: domain.StatusIdentical}, nil
	}

	baseCommit, err := r.commit(base)
	if err != nil {
		return nil, err
	}
	headCommit, err := r.commit(head)
	if err != nil {
		return nil, err
	}

	aheadBy, err := countExclusive(ctx, headCommit, baseCommit)
	if err != nil {
		return nil, err
	}
	behindBy, err := countExclusive(ctx, baseCommit, headCommit)
	if err != nil {
		return nil, err
	}

	cmp := &domain.CommitComparison{
		AheadBy:      aheadBy,
		BehindBy:     behindBy,
		TotalCommits: aheadBy,
	}
	switch {
	case aheadBy == 0 && behindBy == 0:
		cmp.Status = domain.StatusIdentical
	case behindBy == 0:
		cmp.Status = domain.StatusAhead
	case aheadBy == 0:
		cmp.Status = domain.StatusBehind
	default:
		cmp.Status = domain.StatusDiverged
	}

	r.logger.Debug(ctx, "compared commits locally", map[string]interface{}{
		"base":      base,
		"head":      head,
		"status":    string(cmp.Status),
		"ahead_by":  aheadBy,
		"behind_by": behindBy,
	})

	return cmp, nil
}

func (r *LocalRepository) headCommit() (*object.Commit, error) {
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrEmptyHistory, r.path)
		}
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object for HEAD: %w", err)
	}
	return commit, nil
}

func (r *LocalRepository) commit(sha string) (*object.Commit, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrCommitNotFound, sha, err)
	}
	return c, nil
}

// countExclusive counts commits reachable from `from` but not from `exclude`.
func countExclusive(ctx context.Context, from, exclude *object.Commit) (int, error) {
	excluded := make(map[plumbing.Hash]bool)
	err := object.NewCommitPreorderIter(exclude, nil, nil).ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		excluded[c.Hash] = true
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk commit history: %w", err)
	}

	count := 0
	err = object.NewCommitPreorderIter(from, excluded, nil).ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !excluded[c.Hash] {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk commit history: %w", err)
	}

	return count, nil
}

func cleanPath(path string) string {
	return strings.Trim(path, "/")
}
