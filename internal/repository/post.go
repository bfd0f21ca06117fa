package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
)

// PostRepository is the read boundary to the post registry. The core only
// reads posts and writes status on completion; everything else belongs to
// the registry.
type PostRepository struct {
	pool *pgxpool.Pool
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

// GetByID retrieves a post and validates its required fields once, at the
// boundary.
func (r *PostRepository) GetByID(ctx context.Context, postID uuid.UUID) (*domain.Post, error) {
	query, args, err := psql.
		Select("id", "owner_id", "is_request", "reward_type", "karma_value",
			"payment_amount_cents", "status", "created_at").
		From("posts").
		Where(sq.Eq{"id": postID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for post: %w", err)
	}

	var post domain.Post
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&post.ID,
		&post.OwnerID,
		&post.IsRequest,
		&post.RewardType,
		&post.KarmaValue,
		&post.PaymentAmountCents,
		&post.Status,
		&post.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("query post: %w", err)
	}

	if err := post.Validate(); err != nil {
		return nil, err
	}
	return &post, nil
}

// SetStatus writes the post status within the caller's transaction.
func (r *PostRepository) SetStatus(ctx context.Context, tx pgx.Tx, postID uuid.UUID, status domain.PostStatus) error {
	query, args, err := psql.
		Update("posts").
		Set("status", status).
		Where(sq.Eq{"id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build SetStatus query for post %s: %w", postID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update post status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}
