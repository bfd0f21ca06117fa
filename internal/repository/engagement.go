package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
)

// engagementColumns is the shared list of columns for engagement queries.
var engagementColumns = []string{
	"id", "post_id", "owner_id", "fulfiller_id", "status",
	"proposed_completion_date", "completion_notes", "dispute_reason",
	"accepted_at", "completed_at", "confirmed_at", "created_at", "updated_at",
}

// EngagementRepository handles database operations for task engagements.
type EngagementRepository struct {
	pool *pgxpool.Pool
}

// NewEngagementRepository creates a new EngagementRepository.
func NewEngagementRepository(pool *pgxpool.Pool) *EngagementRepository {
	return &EngagementRepository{pool: pool}
}

// scanEngagement scans a single row into a TaskEngagement struct.
func scanEngagement(row pgx.Row) (*domain.TaskEngagement, error) {
	var e domain.TaskEngagement
	err := row.Scan(
		&e.ID,
		&e.PostID,
		&e.OwnerID,
		&e.FulfillerID,
		&e.Status,
		&e.ProposedCompletionDate,
		&e.CompletionNotes,
		&e.DisputeReason,
		&e.AcceptedAt,
		&e.CompletedAt,
		&e.ConfirmedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEngagementNotFound
		}
		return nil, fmt.Errorf("scan engagement: %w", err)
	}
	return &e, nil
}

// Create inserts a new engagement for a post. The insert is conditioned on
// the partial unique index over active statuses: under concurrent accepts
// exactly one insert lands and the rest return ErrAlreadyEngaged.
func (r *EngagementRepository) Create(
	ctx context.Context,
	tx pgx.Tx,
	e *domain.TaskEngagement,
) (*domain.TaskEngagement, error) {
	query, args, err := psql.
		Insert("task_engagements").
		Columns("post_id", "owner_id", "fulfiller_id", "status", "proposed_completion_date").
		Values(e.PostID, e.OwnerID, e.FulfillerID, e.Status, e.ProposedCompletionDate).
		Suffix(`ON CONFLICT (post_id)
			WHERE status IN ('PENDING', 'IN_PROGRESS', 'AWAITING_CONFIRMATION')
			DO NOTHING
			RETURNING id, accepted_at, created_at, updated_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for engagement: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&e.ID, &e.AcceptedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: post %s", domain.ErrAlreadyEngaged, e.PostID)
		}
		return nil, fmt.Errorf("create engagement: %w", err)
	}

	return e, nil
}

// GetByID retrieves an engagement by ID.
func (r *EngagementRepository) GetByID(ctx context.Context, engagementID uuid.UUID) (*domain.TaskEngagement, error) {
	query, args, err := psql.
		Select(engagementColumns...).
		From("task_engagements").
		Where(sq.Eq{"id": engagementID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for engagement: %w", err)
	}

	return scanEngagement(r.pool.QueryRow(ctx, query, args...))
}

// GetByIDForUpdate retrieves an engagement by ID with FOR UPDATE lock (within transaction).
func (r *EngagementRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) (*domain.TaskEngagement, error) {
	query, args, err := psql.
		Select(engagementColumns...).
		From("task_engagements").
		Where(sq.Eq{"id": engagementID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByIDForUpdate query for engagement %s: %w", engagementID, err)
	}

	return scanEngagement(tx.QueryRow(ctx, query, args...))
}

// GetActiveByPostID retrieves the active engagement for a post, if any.
func (r *EngagementRepository) GetActiveByPostID(ctx context.Context, postID uuid.UUID) (*domain.TaskEngagement, error) {
	query, args, err := psql.
		Select(engagementColumns...).
		From("task_engagements").
		Where(sq.Eq{
			"post_id": postID,
			"status": []domain.EngagementStatus{
				domain.EngagementStatusPending,
				domain.EngagementStatusInProgress,
				domain.EngagementStatusAwaitingConfirmation,
			},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetActiveByPostID query: %w", err)
	}

	return scanEngagement(r.pool.QueryRow(ctx, query, args...))
}

// updateStatus performs a compare-and-swap transition. The write is keyed on
// the expected current status; zero rows affected after the caller validated
// the transition means the state moved underneath us, which surfaces as
// ErrStateConflict and is never silently retried.
func (r *EngagementRepository) updateStatus(
	ctx context.Context,
	tx pgx.Tx,
	engagementID uuid.UUID,
	oldStatus domain.EngagementStatus,
	builder sq.UpdateBuilder,
) error {
	query, args, err := builder.
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{
			"id":     engagementID,
			"status": oldStatus,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build status update for engagement %s: %w", engagementID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update engagement status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: engagement %s no longer in %s", domain.ErrStateConflict, engagementID, oldStatus)
	}
	return nil
}

// MarkCompleted transitions IN_PROGRESS -> AWAITING_CONFIRMATION and records
// the completion time and optional notes.
func (r *EngagementRepository) MarkCompleted(
	ctx context.Context,
	tx pgx.Tx,
	engagementID uuid.UUID,
	notes *string,
) error {
	return r.updateStatus(ctx, tx, engagementID, domain.EngagementStatusInProgress,
		psql.Update("task_engagements").
			Set("status", domain.EngagementStatusAwaitingConfirmation).
			Set("completed_at", sq.Expr("NOW()")).
			Set("completion_notes", notes),
	)
}

// Confirm transitions AWAITING_CONFIRMATION -> CONFIRMED.
func (r *EngagementRepository) Confirm(
	ctx context.Context,
	tx pgx.Tx,
	engagementID uuid.UUID,
) error {
	return r.updateStatus(ctx, tx, engagementID, domain.EngagementStatusAwaitingConfirmation,
		psql.Update("task_engagements").
			Set("status", domain.EngagementStatusConfirmed).
			Set("confirmed_at", sq.Expr("NOW()")),
	)
}

// Dispute transitions the given source status -> DISPUTED.
func (r *EngagementRepository) Dispute(
	ctx context.Context,
	tx pgx.Tx,
	engagementID uuid.UUID,
	oldStatus domain.EngagementStatus,
	reason string,
) error {
	return r.updateStatus(ctx, tx, engagementID, oldStatus,
		psql.Update("task_engagements").
			Set("status", domain.EngagementStatusDisputed).
			Set("dispute_reason", reason),
	)
}

// FindUnsettled finds confirmed karma engagements that have no ledger
// transaction yet. These are the confirmed-but-unsettled states the
// reconcile sweep retries.
func (r *EngagementRepository) FindUnsettled(ctx context.Context, olderThan time.Duration) ([]*domain.TaskEngagement, error) {
	query, args, err := psql.
		Select(prefixColumns("e", engagementColumns)...).
		From("task_engagements e").
		Join("posts p ON p.id = e.post_id").
		LeftJoin("karma_transactions t ON t.engagement_id = e.id").
		Where(sq.Eq{"e.status": domain.EngagementStatusConfirmed}).
		Where(sq.Eq{"p.reward_type": domain.RewardTypeKarma}).
		Where("t.id IS NULL").
		Where(sq.Expr("e.confirmed_at < NOW() - make_interval(secs => ?)", olderThan.Seconds())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build FindUnsettled query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unsettled engagements: %w", err)
	}
	defer rows.Close()

	var engagements []*domain.TaskEngagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, err
		}
		engagements = append(engagements, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return engagements, nil
}

// prefixColumns qualifies column names with a table alias.
func prefixColumns(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}
