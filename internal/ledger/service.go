// Package ledger executes the exactly-once karma transfer associated with a
// confirmed engagement and maintains the append-only transaction history.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
)

// Policy holds the explicit balance rules of the karma model. Karma is a
// social currency, so transfers are not blocked on balance by default; a
// deployment that wants hard floors flips AllowNegative off and the check
// runs inside the transfer transaction against the derived balance.
type Policy struct {
	AllowNegative bool
}

// DefaultPolicy allows negative balances.
var DefaultPolicy = Policy{AllowNegative: true}

// Service is the karma ledger.
type Service struct {
	pool   *pgxpool.Pool
	repo   *Repository
	policy Policy
}

// NewService creates a ledger Service.
func NewService(pool *pgxpool.Pool, repo *Repository, policy Policy) *Service {
	return &Service{pool: pool, repo: repo, policy: policy}
}

// Transfer moves karma for an engagement exactly once. If a transaction
// already exists for the engagement the existing record is returned, so
// retried confirmations and duplicate realtime events collapse to one
// transfer.
func (s *Service) Transfer(
	ctx context.Context,
	engagementID, fromUserID, toUserID uuid.UUID,
	amount int,
) (*domain.KarmaTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidAmount, amount)
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

	if !s.policy.AllowNegative {
		// Serialize per payer so concurrent transfers cannot both read the
		// pre-debit balance.
		if err := s.repo.LockPayer(ctx, tx, fromUserID); err != nil {
			return nil, err
		}
		balance, err := s.repo.BalanceFor(ctx, tx, fromUserID)
		if err != nil {
			return nil, err
		}
		if balance < int64(amount) {
			return nil, fmt.Errorf("%w: user %s has %d, needs %d",
				domain.ErrInsufficientFunds, fromUserID, balance, amount)
		}
	}

	record := &domain.KarmaTransaction{
		EngagementID: engagementID,
		FromUserID:   fromUserID,
		ToUserID:     toUserID,
		Amount:       amount,
	}
	created, err := s.repo.CreateTransaction(ctx, tx, record)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if created == nil {
		// Idempotency key hit: the engagement was already settled.
		existing, err := s.repo.GetByEngagementID(ctx, engagementID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("transaction for engagement %s vanished after conflict", engagementID)
		}
		return existing, nil
	}

	slog.Info("karma transferred",
		"engagement_id", engagementID,
		"from_user_id", fromUserID,
		"to_user_id", toUserID,
		"amount", amount,
	)
	return created, nil
}

// Balance returns a user's derived karma balance.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.BalanceFor(ctx, s.pool, userID)
}

// History returns a user's transaction history, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]*domain.KarmaTransaction, error) {
	return s.repo.ListByUser(ctx, userID)
}
