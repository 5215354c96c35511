package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// LocalOpener opens a local checkout as a repository handle.
type LocalOpener func(path string) (domain.Repository, error)

// RootResolver turns a RootSelection into the ordered list of traversal roots.
type RootResolver struct {
	resolver  domain.RepositoryResolver
	parser    domain.SubmoduleParser
	openLocal LocalOpener
	logger    Logger
}

// NewRootResolver creates a new RootResolver. openLocal may be nil when local
// roots are not supported.
func NewRootResolver(
	resolver domain.RepositoryResolver,
	parser domain.SubmoduleParser,
	openLocal LocalOpener,
	log Logger,
) *RootResolver {
	return &RootResolver{
		resolver:  resolver,
		parser:    parser,
		openLocal: openLocal,
		logger:    log,
	}
}

// Resolve returns organization repositories first, then named repositories,
// then local checkouts. Order is preserved and nothing is deduplicated.
// Any root that cannot be resolved is fatal.
func (r *RootResolver) Resolve(ctx context.Context, sel domain.RootSelection) ([]domain.Repository, error) {
	if sel.IsEmpty() {
		return nil, domain.ErrNoRoots
	}

	var roots []domain.Repository

	for _, org := range sel.Organizations {
		repos, err := r.resolver.ListOrganization(ctx, org)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories of %s: %w", org, err)
		}
		r.logger.Info(ctx, "resolved organization", map[string]interface{}{
			"organization": org,
			"repositories": len(repos),
		})
		roots = append(roots, repos...)
	}

	for _, name := range sel.Repositories {
		ref, err := r.parseRef(name)
		if err != nil {
			return nil, err
		}
		repo, err := r.resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve repository %s: %w", ref, err)
		}
		roots = append(roots, repo)
	}

	for _, path := range sel.LocalPaths {
		if r.openLocal == nil {
			return nil, fmt.Errorf("%w: local repositories are not supported", domain.ErrLocalRepositoryNotFound)
		}
		repo, err := r.openLocal(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open local repository %s: %w", path, err)
		}
		r.logger.Info(ctx, "opened local repository", map[string]interface{}{
			"path":       path,
			"repository": repo.Ref().String(),
		})
		roots = append(roots, repo)
	}

	return roots, nil
}

// parseRef accepts owner/name or any URL form the submodule parser understands.
// Anything carrying a scheme or user part is treated as a URL.
func (r *RootResolver) parseRef(name string) (domain.RepositoryRef, error) {
	if r.parser != nil && strings.ContainsAny(name, ":@") {
		return r.parser.ExtractRef(name)
	}
	return domain.ParseRepositoryRef(name)
}
