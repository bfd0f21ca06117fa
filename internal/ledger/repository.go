package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var transactionColumns = []string{
	"id", "engagement_id", "from_user_id", "to_user_id", "amount", "created_at",
}

// Repository handles database operations for the karma ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new ledger Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTransaction(row pgx.Row) (*domain.KarmaTransaction, error) {
	var t domain.KarmaTransaction
	err := row.Scan(
		&t.ID,
		&t.EngagementID,
		&t.FromUserID,
		&t.ToUserID,
		&t.Amount,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTransaction appends a transaction within the caller's transaction.
// The unique key on engagement_id makes the insert idempotent: a conflict
// affects zero rows, and the caller falls back to the existing record.
// Returns (nil, nil) on conflict.
func (r *Repository) CreateTransaction(
	ctx context.Context,
	tx pgx.Tx,
	t *domain.KarmaTransaction,
) (*domain.KarmaTransaction, error) {
	query, args, err := psql.
		Insert("karma_transactions").
		Columns("engagement_id", "from_user_id", "to_user_id", "amount").
		Values(t.EngagementID, t.FromUserID, t.ToUserID, t.Amount).
		Suffix("ON CONFLICT (engagement_id) DO NOTHING RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build CreateTransaction query: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

// GetByEngagementID retrieves the transaction for an engagement, if any.
func (r *Repository) GetByEngagementID(ctx context.Context, engagementID uuid.UUID) (*domain.KarmaTransaction, error) {
	query, args, err := psql.
		Select(transactionColumns...).
		From("karma_transactions").
		Where(sq.Eq{"engagement_id": engagementID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByEngagementID query: %w", err)
	}

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return t, nil
}

// LockPayer takes a transaction-scoped advisory lock on the payer so
// balance-guarded transfers for one user serialize. Without it two
// concurrent transfers both read the pre-debit balance and both commit,
// driving the balance past the floor. Released automatically on commit or
// rollback.
func (r *Repository) LockPayer(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	key := int64(binary.BigEndian.Uint64(userID[:8]))
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
		return fmt.Errorf("lock payer %s: %w", userID, err)
	}
	return nil
}

// BalanceFor derives a user's balance as the signed sum of their
// transactions. Run within the caller's transaction when the result guards
// a write.
func (r *Repository) BalanceFor(ctx context.Context, q querier, userID uuid.UUID) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(
			CASE WHEN to_user_id = $1 THEN amount
			     WHEN from_user_id = $1 THEN -amount
			END), 0)
		FROM karma_transactions
		WHERE to_user_id = $1 OR from_user_id = $1
	`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("derive balance: %w", err)
	}
	return balance, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ListByUser retrieves a user's transaction history, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.KarmaTransaction, error) {
	query, args, err := psql.
		Select(transactionColumns...).
		From("karma_transactions").
		Where(sq.Or{
			sq.Eq{"from_user_id": userID},
			sq.Eq{"to_user_id": userID},
		}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByUser query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.KarmaTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return transactions, nil
}
