// Package domain defines the core business entities and interfaces for repograph.
package domain

import (
	"fmt"
	"strings"
)

// GitmodulesPath is the path of the submodule configuration file inside a repository.
const GitmodulesPath = ".gitmodules"

// RepositoryRef identifies a hosted repository by owner and name.
// Two refs with the same Key() are the same node in the graph.
type RepositoryRef struct {
	Owner string
	Name  string
}

// ParseRepositoryRef parses an "owner/name" identifier.
// Both segments are limited to the characters GitHub allows in owner and
// repository names, so URLs such as git@github.com:owner/name.git are rejected.
func ParseRepositoryRef(s string) (RepositoryRef, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || !validSegment(owner) || !validSegment(name) {
		return RepositoryRef{}, fmt.Errorf("%w: %q", ErrInvalidRepositoryRef, s)
	}
	return RepositoryRef{Owner: owner, Name: name}, nil
}

// validSegment reports whether s is a non-empty run of [A-Za-z0-9._-] other
// than "." or "..".
func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// String returns the owner/name form.
func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// Key returns the node identity. GitHub treats owner and name case-insensitively.
func (r RepositoryRef) Key() string {
	return strings.ToLower(r.String())
}

// Display returns the label used when rendering the node.
func (r RepositoryRef) Display(stripOwner bool) string {
	if stripOwner {
		return r.Name
	}
	return r.String()
}

// SubmoduleDeclaration is one [submodule] group from a .gitmodules file.
type SubmoduleDeclaration struct {
	// Name is the subsection name, e.g. "libs/foo" for [submodule "libs/foo"].
	Name string

	// Path is where the submodule is checked out inside the parent.
	Path string

	// URL is the raw, unnormalized remote URL.
	URL string
}

// ComparisonStatus is the relationship between two commits as reported by a
// commit-range comparison.
type ComparisonStatus string

// Comparison statuses, named after the GitHub compare API.
const (
	StatusIdentical ComparisonStatus = "identical"
	StatusAhead     ComparisonStatus = "ahead"
	StatusBehind    ComparisonStatus = "behind"
	StatusDiverged  ComparisonStatus = "diverged"
)

// CommitComparison is the result of comparing a pinned commit (base) with a
// repository head. StatusAhead means head has commits the pin does not.
type CommitComparison struct {
	Status       ComparisonStatus
	AheadBy      int
	BehindBy     int
	TotalCommits int

	// PermalinkURL links to the comparison on the hosting service. Empty for
	// comparisons computed from a local checkout.
	PermalinkURL string
}

// SyncState is the classified sync status of a pinned submodule.
type SyncState string

// Sync states.
const (
	SyncInSync    SyncState = "in_sync"
	SyncStale     SyncState = "stale"
	SyncOffBranch SyncState = "off_branch"
	SyncUnknown   SyncState = "unknown"
)

// EdgeAttributes are the renderer-facing decorations of an edge.
// The zero value renders a plain edge.
type EdgeAttributes struct {
	Label   string
	URL     string
	Tooltip string
	Color   string
	Style   string
}

// IsZero reports whether no attribute is set.
func (a EdgeAttributes) IsZero() bool {
	return a == EdgeAttributes{}
}

// Classification is the output of the sync status classifier.
type Classification struct {
	HeadCommit string
	Comparison CommitComparison
	Sync       SyncState
	Attributes EdgeAttributes
}

// Edge is a "depends-on" relation from a parent repository to one of its submodules.
type Edge struct {
	Source RepositoryRef
	Dest   RepositoryRef

	// Path is the submodule path inside Source.
	Path string

	// PinnedCommit is the commit Source currently records for Path.
	PinnedCommit string

	// HeadCommit is Dest's most recent commit at traversal time.
	HeadCommit string

	Comparison CommitComparison
	Sync       SyncState
	Attributes EdgeAttributes
}

// ExpandPolicy controls how the graph builder treats repositories reached more than once.
type ExpandPolicy string

const (
	// ExpandOnce expands every repository at most once per run. Edges into an
	// already expanded repository are still emitted.
	ExpandOnce ExpandPolicy = "once"

	// ExpandAlways re-expands a repository on every encounter, except when it is
	// already on the current path (a cycle).
	ExpandAlways ExpandPolicy = "always"
)

// ParseExpandPolicy validates a policy name.
func ParseExpandPolicy(s string) (ExpandPolicy, error) {
	switch p := ExpandPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ExpandOnce, ExpandAlways:
		return p, nil
	case "":
		return ExpandOnce, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidExpandPolicy, s, ExpandOnce, ExpandAlways)
	}
}

// BuildOptions tunes a graph traversal.
type BuildOptions struct {
	Policy ExpandPolicy

	// MaxDepth bounds recursion below each root. Zero means unlimited.
	MaxDepth int
}

// RootSelection lists where traversal starts.
type RootSelection struct {
	Organizations []string
	Repositories  []string
	LocalPaths    []string
}

// IsEmpty reports whether no root source was given.
func (s RootSelection) IsEmpty() bool {
	return len(s.Organizations) == 0 && len(s.Repositories) == 0 && len(s.LocalPaths) == 0
}
