// Package usecases contains the application business logic.
// This package orchestrates domain entities and interfaces to fulfill use cases.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// Logger defines the logging interface required by the use cases.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// SubmoduleGraphBuilder expands repositories into submodule edges, depth-first
// and in declaration order.
type SubmoduleGraphBuilder struct {
	resolver   domain.RepositoryResolver
	parser     domain.SubmoduleParser
	classifier domain.SyncClassifier
	opts       domain.BuildOptions
	logger     Logger
}

// NewSubmoduleGraphBuilder creates a new SubmoduleGraphBuilder with the given dependencies.
func NewSubmoduleGraphBuilder(
	resolver domain.RepositoryResolver,
	parser domain.SubmoduleParser,
	classifier domain.SyncClassifier,
	opts domain.BuildOptions,
	log Logger,
) *SubmoduleGraphBuilder {
	if opts.Policy == "" {
		opts.Policy = domain.ExpandOnce
	}
	return &SubmoduleGraphBuilder{
		resolver:   resolver,
		parser:     parser,
		classifier: classifier,
		opts:       opts,
		logger:     log,
	}
}

// Walk returns the edges reachable from roots. Traversal happens while the
// sequence is consumed. A fatal error is yielded once as (Edge{}, err) and ends
// the sequence; recoverable problems are logged and skipped.
func (b *SubmoduleGraphBuilder) Walk(ctx context.Context, roots ...domain.Repository) iter.Seq2[domain.Edge, error] {
	return func(yield func(domain.Edge, error) bool) {
		w := &walk{
			builder:  b,
			yield:    yield,
			expanded: make(map[string]struct{}),
			onPath:   make(map[string]struct{}),
		}
		for _, root := range roots {
			if !w.visit(ctx, root, 0) {
				return
			}
		}
	}
}

// walk holds the state of one Walk call.
type walk struct {
	builder  *SubmoduleGraphBuilder
	yield    func(domain.Edge, error) bool
	expanded map[string]struct{}
	onPath   map[string]struct{}
}

// visit expands repo. It returns false when traversal must stop, either because
// the consumer stopped or a fatal error was yielded.
func (w *walk) visit(ctx context.Context, repo domain.Repository, depth int) bool {
	b := w.builder
	ref := repo.Ref()
	key := ref.Key()

	if _, ok := w.onPath[key]; ok {
		b.logger.Warn(ctx, "submodule cycle detected; not expanding again", map[string]interface{}{
			"repository": ref.String(),
			"depth":      depth,
		})
		return true
	}
	if b.opts.Policy == domain.ExpandOnce {
		if _, ok := w.expanded[key]; ok {
			b.logger.Debug(ctx, "repository already expanded", map[string]interface{}{
				"repository": ref.String(),
			})
			return true
		}
	}
	if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
		b.logger.Debug(ctx, "max depth reached", map[string]interface{}{
			"repository": ref.String(),
			"max_depth":  b.opts.MaxDepth,
		})
		return true
	}

	w.expanded[key] = struct{}{}
	w.onPath[key] = struct{}{}
	defer delete(w.onPath, key)

	decls, err := b.declarations(ctx, repo)
	if err != nil {
		w.yield(domain.Edge{}, err)
		return false
	}

	for _, decl := range decls {
		edge, sub, err := b.edge(ctx, repo, decl)
		if err != nil {
			w.yield(domain.Edge{}, err)
			return false
		}
		if sub == nil {
			continue
		}
		if !w.yield(*edge, nil) {
			return false
		}
		if !w.visit(ctx, sub, depth+1) {
			return false
		}
	}

	return true
}

// declarations reads and parses repo's .gitmodules. A missing file or a
// malformed one yields no declarations.
func (b *SubmoduleGraphBuilder) declarations(
	ctx context.Context,
	repo domain.Repository,
) ([]domain.SubmoduleDeclaration, error) {
	data, err := repo.ReadFile(ctx, domain.GitmodulesPath)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			b.logger.Debug(ctx, "no submodules", map[string]interface{}{
				"repository": repo.Ref().String(),
			})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s from %s: %w", domain.GitmodulesPath, repo.Ref(), err)
	}

	decls, err := b.parser.ParseSubmodules(data)
	if err != nil {
		var parseErr *domain.ParseError
		if !errors.As(err, &parseErr) {
			return nil, err
		}
		b.logger.Warn(ctx, "skipping malformed submodule file", map[string]interface{}{
			"repository": repo.Ref().String(),
			"module":     parseErr.Module,
			"error":      parseErr.Error(),
		})
		return nil, nil
	}

	b.logger.Debug(ctx, "parsed submodule declarations", map[string]interface{}{
		"repository": repo.Ref().String(),
		"count":      len(decls),
	})

	return decls, nil
}

// edge resolves one declaration. A nil repository with a nil error means the
// declaration was skipped.
func (b *SubmoduleGraphBuilder) edge(
	ctx context.Context,
	parent domain.Repository,
	decl domain.SubmoduleDeclaration,
) (*domain.Edge, domain.Repository, error) {
	fields := map[string]interface{}{
		"repository": parent.Ref().String(),
		"path":       decl.Path,
		"url":        decl.URL,
	}

	ref, err := b.parser.ExtractRef(decl.URL)
	if err != nil {
		b.logger.Warn(ctx, "couldn't parse submodule url", fields)
		return nil, nil, nil
	}
	fields["submodule"] = ref.String()

	sub, err := b.resolver.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrRepositoryNotFound) {
			b.logger.Warn(ctx, "can't find submodule repository", fields)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}

	pinned, err := parent.PinnedCommit(ctx, decl.Path)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) || errors.Is(err, domain.ErrNotSubmodule) {
			fields["error"] = err.Error()
			b.logger.Warn(ctx, "declared submodule has no pinned commit", fields)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get pinned commit for %s in %s: %w", decl.Path, parent.Ref(), err)
	}

	cls, err := b.classifier.Classify(ctx, pinned, sub)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyHistory) {
			b.logger.Warn(ctx, "submodule repository has no commits", fields)
			return nil, nil, nil
		}
		return nil, nil, err
	}

	b.logger.Debug(ctx, "discovered submodule edge", map[string]interface{}{
		"source": parent.Ref().String(),
		"dest":   sub.Ref().String(),
		"pinned": pinned,
		"head":   cls.HeadCommit,
		"sync":   string(cls.Sync),
	})

	return &domain.Edge{
		Source:       parent.Ref(),
		Dest:         sub.Ref(),
		Path:         decl.Path,
		PinnedCommit: pinned,
		HeadCommit:   cls.HeadCommit,
		Comparison:   cls.Comparison,
		Sync:         cls.Sync,
		Attributes:   cls.Attributes,
	}, sub, nil
}

// CollectGraph drains seq into a deduplicated graph, stopping at the first error.
func CollectGraph(seq iter.Seq2[domain.Edge, error]) (*domain.Graph, error) {
	g := domain.NewGraph()
	for edge, err := range seq {
		if err != nil {
			return g, err
		}
		g.Add(edge)
	}
	return g, nil
}
