// Package domain defines the core business entities and interfaces for repograph.
// This package contains no external dependencies and represents the innermost layer
// of the CLEAN architecture.
package domain

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// Domain errors for repository resolution, traversal and rendering.
var (
	// ErrRepositoryNotFound indicates the hosting service has no such repository.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrOrganizationNotFound indicates the hosting service has no such organization.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrFileNotFound indicates the requested path does not exist in the repository.
	ErrFileNotFound = errors.New("file not found in repository")

	// ErrNotSubmodule indicates a declared submodule path is not a gitlink.
	ErrNotSubmodule = errors.New("path is not a submodule")

	// ErrCommitNotFound indicates a commit could not be found or compared.
	ErrCommitNotFound = errors.New("commit not found")

	// ErrEmptyHistory indicates the repository has no commits.
	ErrEmptyHistory = errors.New("repository has no commits")

	// ErrUnextractableName indicates a submodule URL does not point at a supported host.
	ErrUnextractableName = errors.New("could not extract repository name from URL")

	// ErrInvalidRepositoryRef indicates an identifier is not in owner/name form.
	ErrInvalidRepositoryRef = errors.New("invalid repository identifier, expected owner/name")

	// ErrInvalidExpandPolicy indicates an unknown expand policy name.
	ErrInvalidExpandPolicy = errors.New("invalid expand policy")

	// ErrNoRoots indicates neither a repository nor an organization was selected.
	ErrNoRoots = errors.New("must supply an org with --org or a repo with --repo")

	// ErrNoRemoteOrigin indicates no 'origin' remote is configured in a local repository.
	ErrNoRemoteOrigin = errors.New("no 'origin' remote configured; cannot determine repository name")

	// ErrInvalidRemoteURL indicates the remote URL could not be parsed to extract owner/repo.
	ErrInvalidRemoteURL = errors.New("could not parse repository name from remote URL")

	// ErrLocalRepositoryNotFound indicates the specified path is not a valid Git repository.
	ErrLocalRepositoryNotFound = errors.New("git repository not found at specified path")

	// ErrRateLimited indicates the hosting API refused the request due to rate limiting.
	ErrRateLimited = errors.New("hosting API rate limit exceeded")
)

// ParseError reports a malformed .gitmodules file.
type ParseError struct {
	// Module is the submodule subsection that failed, empty for syntax errors.
	Module string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("malformed %s: %v", GitmodulesPath, e.Err)
	}
	return fmt.Sprintf("malformed %s: submodule %q: %v", GitmodulesPath, e.Module, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Repository is a handle on a resolved repository.
type Repository interface {
	// Ref returns the canonical identifier of the repository.
	Ref() RepositoryRef

	// ReadFile returns the contents of path at the latest commit.
	// Returns ErrFileNotFound if the path does not exist.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// PinnedCommit returns the commit the latest commit records for the submodule at path.
	// Returns ErrFileNotFound if the path does not exist and ErrNotSubmodule if it is
	// not a gitlink.
	PinnedCommit(ctx context.Context, path string) (string, error)

	// HeadCommit returns the most recent commit of the default branch.
	HeadCommit(ctx context.Context) (string, error)

	// Compare compares base against head.
	// Returns ErrCommitNotFound if either commit cannot be compared.
	Compare(ctx context.Context, base, head string) (*CommitComparison, error)
}

// RepositoryResolver turns identifiers into repository handles on the hosting service.
type RepositoryResolver interface {
	// Resolve returns a handle for ref, or ErrRepositoryNotFound.
	Resolve(ctx context.Context, ref RepositoryRef) (Repository, error)

	// ListOrganization returns handles for every repository owned by org,
	// or ErrOrganizationNotFound.
	ListOrganization(ctx context.Context, org string) ([]Repository, error)
}

// SubmoduleParser reads submodule declarations and normalizes their URLs.
type SubmoduleParser interface {
	// ParseSubmodules parses a .gitmodules file, preserving group order.
	// Returns a *ParseError if any group is malformed.
	ParseSubmodules(data []byte) ([]SubmoduleDeclaration, error)

	// ExtractRef normalizes a submodule URL into an owner/name identifier.
	// Returns ErrUnextractableName for unsupported hosts or schemes.
	ExtractRef(url string) (RepositoryRef, error)
}

// SyncClassifier computes the sync status of a pinned commit against a repository head.
type SyncClassifier interface {
	Classify(ctx context.Context, pinnedCommit string, repo Repository) (*Classification, error)
}

// GraphBuilder expands root repositories into a lazy sequence of edges.
// A fatal error is yielded once with a zero Edge and ends the sequence.
type GraphBuilder interface {
	Walk(ctx context.Context, roots ...Repository) iter.Seq2[Edge, error]
}

// Renderer writes a graph to an output destination.
type Renderer interface {
	Render(ctx context.Context, graph *Graph, outputPath string) error
}

// SummaryWriter reports the outcome of a run to the user.
type SummaryWriter interface {
	WriteSummary(graph *Graph, outputPath string) error
}
