// Package chat coordinates messaging between the two parties of a post
// engagement: ordered message history plus the ephemeral typing and
// presence signals around it.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
	"github.com/realtobyfu/karma-farm-sub001/internal/realtime"
	"github.com/realtobyfu/karma-farm-sub001/internal/repository"
)

// emitTimeout bounds the fire-and-forget publication of typing and
// presence events.
const emitTimeout = 5 * time.Second

// Coordinator is the chat coordinator.
type Coordinator struct {
	pool      *pgxpool.Pool
	repo      *repository.ChatRepository
	posts     *repository.PostRepository
	publisher *realtime.Publisher
	typing    *TypingTracker
	presence  *PresenceTracker
}

// NewCoordinator creates a chat Coordinator.
func NewCoordinator(
	pool *pgxpool.Pool,
	repo *repository.ChatRepository,
	posts *repository.PostRepository,
	publisher *realtime.Publisher,
) *Coordinator {
	c := &Coordinator{
		pool:      pool,
		repo:      repo,
		posts:     posts,
		publisher: publisher,
		presence:  NewPresenceTracker(),
	}
	c.typing = NewTypingTracker(c.emitTyping)
	return c
}

// GetOrCreateChat returns the chat for a post and an unordered pair of
// users, creating it on first contact.
func (c *Coordinator) GetOrCreateChat(ctx context.Context, postID, userA, userB uuid.UUID) (*domain.Chat, error) {
	if _, err := c.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return c.repo.GetOrCreate(ctx, postID, userA, userB)
}

// GetChat retrieves a chat the user participates in.
func (c *Coordinator) GetChat(ctx context.Context, chatID, userID uuid.UUID) (*domain.Chat, error) {
	chat, err := c.repo.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, fmt.Errorf("%w: user %s, chat %s", domain.ErrNotParticipant, userID, chatID)
	}
	return chat, nil
}

// SendMessage appends a message to a chat. Sending also ends the sender's
// typing claim.
func (c *Coordinator) SendMessage(ctx context.Context, chatID, senderID uuid.UUID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyContent
	}

	chat, err := c.GetChat(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}
	if chat.Status == domain.ChatStatusArchived {
		return nil, fmt.Errorf("%w: chat %s", domain.ErrChatArchived, chatID)
	}

	message := &domain.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Content:  content,
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := c.repo.CreateMessage(ctx, tx, message); err != nil {
		return nil, err
	}

	event, err := realtime.NewEvent(realtime.EventMessage, &chatID, message)
	if err != nil {
		return nil, fmt.Errorf("build message event: %w", err)
	}
	if err := c.publisher.PublishTx(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	c.typing.Stop(chatID, senderID)
	return message, nil
}

// Messages returns a chat's history in its stable total order. Repeated
// calls without new sends yield identical order.
func (c *Coordinator) Messages(ctx context.Context, chatID, userID uuid.UUID) ([]*domain.Message, error) {
	if _, err := c.GetChat(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return c.repo.ListMessages(ctx, chatID)
}

// SetTyping records a typing signal from a participant. true refreshes the
// claim, false ends it immediately.
func (c *Coordinator) SetTyping(ctx context.Context, chatID, userID uuid.UUID, isTyping bool) error {
	if _, err := c.GetChat(ctx, chatID, userID); err != nil {
		return err
	}
	if isTyping {
		c.typing.Touch(chatID, userID)
	} else {
		c.typing.Stop(chatID, userID)
	}
	return nil
}

// SetOnline marks a user online as of now.
func (c *Coordinator) SetOnline(userID uuid.UUID) {
	c.observePresence(domain.PresenceState{
		UserID:     userID,
		IsOnline:   true,
		LastSeenAt: time.Now().UTC(),
	})
}

// SetOffline marks a user offline with the given last-seen time.
func (c *Coordinator) SetOffline(userID uuid.UUID, lastSeenAt time.Time) {
	c.observePresence(domain.PresenceState{
		UserID:     userID,
		IsOnline:   false,
		LastSeenAt: lastSeenAt,
	})
}

// Presence returns the known presence state for a user.
func (c *Coordinator) Presence(userID uuid.UUID) (domain.PresenceState, bool) {
	return c.presence.Get(userID)
}

func (c *Coordinator) observePresence(state domain.PresenceState) {
	if !c.presence.Observe(state) {
		return
	}
	event, err := realtime.NewEvent(realtime.EventPresence, nil, realtime.PresencePayload{
		UserID:     state.UserID,
		IsOnline:   state.IsOnline,
		LastSeenAt: state.LastSeenAt,
	})
	if err != nil {
		slog.Error("failed to build presence event", "error", err)
		return
	}
	c.emitAsync(event)
}

// emitTyping publishes typing state changes. Called by the tracker, which
// already debounced them.
func (c *Coordinator) emitTyping(chatID, userID uuid.UUID, isTyping bool) {
	event, err := realtime.NewEvent(realtime.EventTyping, &chatID, realtime.TypingPayload{
		UserID:   userID,
		IsTyping: isTyping,
	})
	if err != nil {
		slog.Error("failed to build typing event", "error", err)
		return
	}
	c.emitAsync(event)
}

// emitAsync publishes fire-and-forget: typing and presence are UI feedback
// only, so failures are logged and never surfaced to the caller.
func (c *Coordinator) emitAsync(event realtime.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := c.publisher.Publish(ctx, event); err != nil {
			slog.Warn("failed to publish ephemeral event", "type", event.Type, "error", err)
		}
	}()
}
