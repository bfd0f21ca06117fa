package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
)

var chatColumns = []string{
	"id", "post_id", "participant_a", "participant_b", "status", "last_message_at", "created_at",
}

// ChatRepository handles database operations for chats and messages.
type ChatRepository struct {
	pool *pgxpool.Pool
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func scanChat(row pgx.Row) (*domain.Chat, error) {
	var c domain.Chat
	err := row.Scan(
		&c.ID,
		&c.PostID,
		&c.ParticipantA,
		&c.ParticipantB,
		&c.Status,
		&c.LastMessageAt,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChatNotFound
		}
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	return &c, nil
}

// GetOrCreate returns the chat for a post and an unordered pair of users,
// creating it lazily on first contact. The pair is normalized before the
// unique key is touched, so (A,B) and (B,A) resolve to the same row.
func (r *ChatRepository) GetOrCreate(ctx context.Context, postID, userA, userB uuid.UUID) (*domain.Chat, error) {
	a, b := domain.NormalizePair(userA, userB)

	query, args, err := psql.
		Insert("chats").
		Columns("post_id", "participant_a", "participant_b").
		Values(postID, a, b).
		Suffix("ON CONFLICT (post_id, participant_a, participant_b) DO NOTHING RETURNING " + joinColumns(chatColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetOrCreate insert for chat: %w", err)
	}

	chat, err := scanChat(r.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, domain.ErrChatNotFound) {
		return nil, err
	}

	// Lost the insert race or the chat already existed; fetch it.
	query, args, err = psql.
		Select(chatColumns...).
		From("chats").
		Where(sq.Eq{"post_id": postID, "participant_a": a, "participant_b": b}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetOrCreate select for chat: %w", err)
	}
	return scanChat(r.pool.QueryRow(ctx, query, args...))
}

// GetByID retrieves a chat by ID.
func (r *ChatRepository) GetByID(ctx context.Context, chatID uuid.UUID) (*domain.Chat, error) {
	query, args, err := psql.
		Select(chatColumns...).
		From("chats").
		Where(sq.Eq{"id": chatID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for chat: %w", err)
	}
	return scanChat(r.pool.QueryRow(ctx, query, args...))
}

// ListByPost retrieves all chats of a post.
func (r *ChatRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]*domain.Chat, error) {
	query, args, err := psql.
		Select(chatColumns...).
		From("chats").
		Where(sq.Eq{"post_id": postID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByPost query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var chats []*domain.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return chats, nil
}

// CreateMessage appends a message and bumps the chat's last_message_at
// within the caller's transaction.
func (r *ChatRepository) CreateMessage(ctx context.Context, tx pgx.Tx, m *domain.Message) error {
	query, args, err := psql.
		Insert("messages").
		Columns("chat_id", "sender_id", "content").
		Values(m.ChatID, m.SenderID, m.Content).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build CreateMessage query: %w", err)
	}

	if err := tx.QueryRow(ctx, query, args...).Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	query, args, err = psql.
		Update("chats").
		Set("last_message_at", m.CreatedAt).
		Where(sq.Eq{"id": m.ChatID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build last_message_at update: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update last_message_at: %w", err)
	}
	return nil
}

// ListMessages retrieves all messages of a chat in (created_at, id) order.
// The id tie-break keeps the order deterministic when timestamps collide.
func (r *ChatRepository) ListMessages(ctx context.Context, chatID uuid.UUID) ([]*domain.Message, error) {
	query, args, err := psql.
		Select("id", "chat_id", "sender_id", "content", "created_at").
		From("messages").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListMessages query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return messages, nil
}

// ArchiveByPost archives all chats of a post within the caller's
// transaction. Archived chats reject new messages but keep their history.
func (r *ChatRepository) ArchiveByPost(ctx context.Context, tx pgx.Tx, postID uuid.UUID) error {
	query, args, err := psql.
		Update("chats").
		Set("status", domain.ChatStatusArchived).
		Where(sq.Eq{"post_id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build ArchiveByPost query: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("archive chats: %w", err)
	}
	return nil
}

// joinColumns renders a column list for a raw RETURNING clause.
func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}
