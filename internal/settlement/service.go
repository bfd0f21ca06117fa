// Package settlement turns a confirmed engagement into its karma transfer.
// It is deliberately decoupled from the completion state machine: a
// confirmed engagement stands even if settlement fails, and settlement is
// retried independently until the idempotent transfer lands.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
	"github.com/realtobyfu/karma-farm-sub001/internal/ledger"
	"github.com/realtobyfu/karma-farm-sub001/internal/repository"
)

// Service settles confirmed engagements through the karma ledger.
type Service struct {
	engagements *repository.EngagementRepository
	posts       *repository.PostRepository
	ledger      *ledger.Service
}

// NewService creates a settlement Service.
func NewService(
	engagements *repository.EngagementRepository,
	posts *repository.PostRepository,
	ledger *ledger.Service,
) *Service {
	return &Service{engagements: engagements, posts: posts, ledger: ledger}
}

// TransferParties returns who pays whom for a post. Requests pay the
// fulfiller for help given; for offers the fulfiller is the one receiving
// help, so karma flows back to the owner.
func TransferParties(post *domain.Post, e *domain.TaskEngagement) (from, to uuid.UUID) {
	if post.IsRequest {
		return e.OwnerID, e.FulfillerID
	}
	return e.FulfillerID, e.OwnerID
}

// SettleEngagement executes the transfer for a confirmed karma engagement.
// Safe to call any number of times: cash and unconfirmed engagements are
// skipped, and the ledger collapses duplicates on the engagement id.
// Returns nil without error when there was nothing to settle.
func (s *Service) SettleEngagement(ctx context.Context, engagementID uuid.UUID) (*domain.KarmaTransaction, error) {
	engagement, err := s.engagements.GetByID(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if engagement.Status != domain.EngagementStatusConfirmed {
		return nil, nil
	}

	post, err := s.posts.GetByID(ctx, engagement.PostID)
	if err != nil {
		return nil, err
	}
	if post.RewardType != domain.RewardTypeKarma {
		return nil, nil
	}

	from, to := TransferParties(post, engagement)
	return s.ledger.Transfer(ctx, engagement.ID, from, to, post.KarmaValue)
}

// ReconcileAll sweeps confirmed karma engagements that still have no
// transaction and retries each. This is the manual-reconciliation path for
// confirmed-but-unsettled state.
func (s *Service) ReconcileAll(ctx context.Context, olderThan time.Duration) (int, error) {
	unsettled, err := s.engagements.FindUnsettled(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("find unsettled engagements: %w", err)
	}

	if len(unsettled) == 0 {
		slog.Info("no unsettled engagements found")
		return 0, nil
	}

	count := 0
	var errs []error
	for _, engagement := range unsettled {
		if _, err := s.SettleEngagement(ctx, engagement.ID); err != nil {
			slog.Error("failed to settle engagement",
				"engagement_id", engagement.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("engagement %s: %w", engagement.ID, err))
			continue
		}
		count++
	}

	slog.Info("reconciled settlements",
		"total", len(unsettled),
		"successful", count,
		"failed", len(errs),
	)

	if len(errs) > 0 {
		return count, fmt.Errorf("settled %d/%d engagements: %w", count, len(unsettled), errors.Join(errs...))
	}
	return count, nil
}
