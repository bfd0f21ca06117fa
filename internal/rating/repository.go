package rating

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

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository handles database operations for ratings and the per-user
// running aggregate.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new rating Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a rating and folds it into the ratee's running (sum,
// count) within the caller's transaction. A conflict on
// (engagement_id, rater_id) means the rater already rated this engagement.
func (r *Repository) Create(ctx context.Context, tx pgx.Tx, rating *domain.Rating) error {
	query, args, err := psql.
		Insert("ratings").
		Columns("engagement_id", "rater_id", "ratee_id", "score", "review", "tags").
		Values(rating.EngagementID, rating.RaterID, rating.RateeID, rating.Score, rating.Review, rating.Tags).
		Suffix("ON CONFLICT (engagement_id, rater_id) DO NOTHING RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for rating: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&rating.ID, &rating.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: engagement %s, rater %s",
				domain.ErrDuplicateRating, rating.EngagementID, rating.RaterID)
		}
		return fmt.Errorf("create rating: %w", err)
	}

	// The aggregate row moves in the same transaction as the rating, so the
	// running sum can never drift from the rating history.
	_, err = tx.Exec(ctx, `
		INSERT INTO rating_stats (user_id, score_sum, score_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id) DO UPDATE
		SET score_sum = rating_stats.score_sum + EXCLUDED.score_sum,
		    score_count = rating_stats.score_count + 1
	`, rating.RateeID, rating.Score)
	if err != nil {
		return fmt.Errorf("update rating stats: %w", err)
	}
	return nil
}

// SummaryFor retrieves the running aggregate for a user. Users with no
// ratings get a zero summary.
func (r *Repository) SummaryFor(ctx context.Context, userID uuid.UUID) (domain.RatingSummary, error) {
	summary := domain.RatingSummary{UserID: userID}

	query, args, err := psql.
		Select("score_sum", "score_count").
		From("rating_stats").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return summary, fmt.Errorf("build SummaryFor query: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&summary.ScoreSum, &summary.Count)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return summary, fmt.Errorf("query rating stats: %w", err)
	}
	return summary, nil
}

// ListForUser retrieves the ratings received by a user, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Rating, error) {
	query, args, err := psql.
		Select("id", "engagement_id", "rater_id", "ratee_id", "score", "review", "tags", "created_at").
		From("ratings").
		Where(sq.Eq{"ratee_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListForUser query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []*domain.Rating
	for rows.Next() {
		var rating domain.Rating
		err := rows.Scan(
			&rating.ID,
			&rating.EngagementID,
			&rating.RaterID,
			&rating.RateeID,
			&rating.Score,
			&rating.Review,
			&rating.Tags,
			&rating.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, &rating)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return ratings, nil
}
