package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/MyCarrier-DevOps/repograph/internal/domain"
)

// Edge decorations for out-of-sync submodules.
const (
	staleColor     = "red"
	offBranchColor = "red"
	offBranchStyle = "dotted"
	offBranchLabel = "Not on default branch."
)

// Classifier computes how a pinned commit relates to a repository's head.
type Classifier struct {
	logger Logger
}

// NewClassifier creates a new Classifier.
func NewClassifier(log Logger) *Classifier {
	return &Classifier{logger: log}
}

// Classify compares pinnedCommit against repo's head and decorates the result.
// A pin the hosting service cannot compare at all is reported as off-branch.
func (c *Classifier) Classify(
	ctx context.Context,
	pinnedCommit string,
	repo domain.Repository,
) (*domain.Classification, error) {
	head, err := repo.HeadCommit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get head of %s: %w", repo.Ref(), err)
	}

	cmp, err := repo.Compare(ctx, pinnedCommit, head)
	if err != nil {
		if !errors.Is(err, domain.ErrCommitNotFound) {
			return nil, fmt.Errorf("failed to compare %s...%s in %s: %w", pinnedCommit, head, repo.Ref(), err)
		}
		c.logger.Warn(ctx, "pinned commit cannot be compared with head", map[string]interface{}{
			"repository": repo.Ref().String(),
			"pinned":     pinnedCommit,
			"head":       head,
			"error":      err.Error(),
		})
		cmp = &domain.CommitComparison{Status: domain.StatusDiverged}
	}

	result := classify(*cmp)
	result.HeadCommit = head
	if result.Sync == domain.SyncUnknown {
		c.logger.Warn(ctx, "unrecognized comparison status", map[string]interface{}{
			"repository": repo.Ref().String(),
			"status":     string(cmp.Status),
		})
	}

	return result, nil
}

// classify maps a comparison onto a sync state and its edge attributes.
func classify(cmp domain.CommitComparison) *domain.Classification {
	result := &domain.Classification{Comparison: cmp}

	switch cmp.Status {
	case domain.StatusIdentical:
		result.Sync = domain.SyncInSync
	case domain.StatusAhead:
		result.Sync = domain.SyncStale
		result.Attributes = domain.EdgeAttributes{
			Label:   staleLabel(cmp.AheadBy),
			URL:     cmp.PermalinkURL,
			Tooltip: cmp.PermalinkURL,
			Color:   staleColor,
		}
	case domain.StatusBehind, domain.StatusDiverged:
		result.Sync = domain.SyncOffBranch
		result.Attributes = domain.EdgeAttributes{
			Label:   offBranchLabel,
			URL:     cmp.PermalinkURL,
			Tooltip: cmp.PermalinkURL,
			Color:   offBranchColor,
			Style:   offBranchStyle,
		}
	default:
		result.Sync = domain.SyncUnknown
	}

	return result
}

func staleLabel(n int) string {
	if n == 1 {
		return "1 commit behind default branch."
	}
	return fmt.Sprintf("%d commits behind default branch.", n)
}
