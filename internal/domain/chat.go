package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// ChatStatus represents the lifecycle of a chat. Chats are never deleted,
// only archived once the engagement behind them reaches a terminal state.
type ChatStatus string

const (
	ChatStatusActive   ChatStatus = "active"
	ChatStatusArchived ChatStatus = "archived"
)

// Chat is a conversation between the two parties of a post engagement.
// Participants are stored in normalized order so the (post, pair) key is
// order-independent.
type Chat struct {
	ID            uuid.UUID
	PostID        uuid.UUID
	ParticipantA  uuid.UUID
	ParticipantB  uuid.UUID
	Status        ChatStatus
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

// HasParticipant checks if the given user is one of the two participants.
func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// OtherParticipant returns the peer of the given participant.
func (c *Chat) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// NormalizePair orders two user ids byte-wise, matching Postgres uuid
// comparison, so (A,B) and (B,A) resolve to the same chat row.
func NormalizePair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

// Message is one chat message. Strictly append-only; total order within a
// chat is (CreatedAt, ID), tie-broken by id to stay deterministic under
// clock skew.
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	SenderID  uuid.UUID
	Content   string
	CreatedAt time.Time
}

// TypingState is the ephemeral typing claim for one user in one chat.
// It is a soft, time-boxed signal, never persisted.
type TypingState struct {
	ChatID    uuid.UUID
	UserID    uuid.UUID
	IsTyping  bool
	ExpiresAt time.Time
}

// PresenceState is the ephemeral online/last-seen state for a user,
// last-writer-wins by LastSeenAt. No business logic may depend on it.
type PresenceState struct {
	UserID     uuid.UUID
	IsOnline   bool
	LastSeenAt time.Time
}
