package dto

import (
	"time"

	"github.com/google/uuid"
)

// AcceptTaskRequest is the request body for accepting a post.
type AcceptTaskRequest struct {
	ProposedCompletionDate *time.Time `json:"proposed_completion_date,omitempty"`
}

// MarkCompletedRequest is the request body for marking a task completed.
type MarkCompletedRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// DisputeRequest is the request body for disputing an engagement.
type DisputeRequest struct {
	Reason string `json:"reason"`
}

// SubmitRatingRequest is the request body for rating the other party of a
// confirmed engagement.
type SubmitRatingRequest struct {
	Score  int      `json:"score"`
	Review *string  `json:"review,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// CreateChatRequest is the request body for opening a chat on a post with
// another user.
type CreateChatRequest struct {
	PeerID uuid.UUID `json:"peer_id"`
}

// SendMessageRequest is the request body for sending a chat message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// TypingRequest is the request body for a typing signal.
type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

// PresenceRequest is the request body for a presence update.
type PresenceRequest struct {
	IsOnline bool `json:"is_online"`
}
