// Package rating records post-completion reviews and keeps a rolling
// average per user.
package rating

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
	"github.com/realtobyfu/karma-farm-sub001/internal/repository"
)

// Service is the rating aggregator.
type Service struct {
	pool        *pgxpool.Pool
	repo        *Repository
	engagements *repository.EngagementRepository
}

// NewService creates a rating Service.
func NewService(pool *pgxpool.Pool, repo *Repository, engagements *repository.EngagementRepository) *Service {
	return &Service{pool: pool, repo: repo, engagements: engagements}
}

// SubmitRating records a rating of the engagement's other party by the
// rater. One rating per (engagement, rater); scores are 1..5.
func (s *Service) SubmitRating(
	ctx context.Context,
	engagementID, raterID uuid.UUID,
	score int,
	review *string,
	tags []string,
) (*domain.Rating, error) {
	if score < 1 || score > 5 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidScore, score)
	}

	engagement, err := s.engagements.GetByID(ctx, engagementID)
	if err != nil {
		return nil, err
	}
	if !engagement.IsParty(raterID) {
		return nil, fmt.Errorf("%w: user %s is not part of engagement %s",
			domain.ErrNotParticipant, raterID, engagementID)
	}
	if engagement.Status != domain.EngagementStatusConfirmed {
		return nil, fmt.Errorf("%w: engagement %s is %s, ratings open after CONFIRMED",
			domain.ErrIllegalTransition, engagementID, engagement.Status)
	}

	rateeID := engagement.OwnerID
	if engagement.IsOwner(raterID) {
		rateeID = engagement.FulfillerID
	}

	if tags == nil {
		tags = []string{}
	}
	rating := &domain.Rating{
		EngagementID: engagementID,
		RaterID:      raterID,
		RateeID:      rateeID,
		Score:        score,
		Review:       review,
		Tags:         tags,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := s.repo.Create(ctx, tx, rating); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("rating submitted",
		"engagement_id", engagementID,
		"rater_id", raterID,
		"ratee_id", rateeID,
		"score", score,
	)
	return rating, nil
}

// SummaryFor returns the running rating aggregate for a user.
func (s *Service) SummaryFor(ctx context.Context, userID uuid.UUID) (domain.RatingSummary, error) {
	return s.repo.SummaryFor(ctx, userID)
}

// ListForUser returns the ratings a user has received, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Rating, error) {
	return s.repo.ListForUser(ctx, userID)
}
