package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
)

// EngagementResponse is the API representation of a task engagement.
type EngagementResponse struct {
	ID                     uuid.UUID  `json:"id"`
	PostID                 uuid.UUID  `json:"post_id"`
	OwnerID                uuid.UUID  `json:"owner_id"`
	FulfillerID            uuid.UUID  `json:"fulfiller_id"`
	Status                 string     `json:"status"`
	ProposedCompletionDate *time.Time `json:"proposed_completion_date,omitempty"`
	CompletionNotes        *string    `json:"completion_notes,omitempty"`
	DisputeReason          *string    `json:"dispute_reason,omitempty"`
	AcceptedAt             time.Time  `json:"accepted_at"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	ConfirmedAt            *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// ToEngagementResponse converts a domain engagement to its API form.
func ToEngagementResponse(e *domain.TaskEngagement) EngagementResponse {
	return EngagementResponse{
		ID:                     e.ID,
		PostID:                 e.PostID,
		OwnerID:                e.OwnerID,
		FulfillerID:            e.FulfillerID,
		Status:                 string(e.Status),
		ProposedCompletionDate: e.ProposedCompletionDate,
		CompletionNotes:        e.CompletionNotes,
		DisputeReason:          e.DisputeReason,
		AcceptedAt:             e.AcceptedAt,
		CompletedAt:            e.CompletedAt,
		ConfirmedAt:            e.ConfirmedAt,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
}

// ConfirmResponse carries the confirmed engagement plus the settlement
// outcome, which is reported separately from the transition itself.
type ConfirmResponse struct {
	Engagement EngagementResponse `json:"engagement"`
	Settlement string             `json:"settlement"`
}

// RatingResponse is the API representation of a rating.
type RatingResponse struct {
	ID           uuid.UUID `json:"id"`
	EngagementID uuid.UUID `json:"engagement_id"`
	RaterID      uuid.UUID `json:"rater_id"`
	RateeID      uuid.UUID `json:"ratee_id"`
	Score        int       `json:"score"`
	Review       *string   `json:"review,omitempty"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToRatingResponse converts a domain rating to its API form.
func ToRatingResponse(r *domain.Rating) RatingResponse {
	return RatingResponse{
		ID:           r.ID,
		EngagementID: r.EngagementID,
		RaterID:      r.RaterID,
		RateeID:      r.RateeID,
		Score:        r.Score,
		Review:       r.Review,
		Tags:         r.Tags,
		CreatedAt:    r.CreatedAt,
	}
}

// RatingSummaryResponse is a user's running rating aggregate.
type RatingSummaryResponse struct {
	UserID  uuid.UUID        `json:"user_id"`
	Average float64          `json:"average"`
	Count   int64            `json:"count"`
	Ratings []RatingResponse `json:"ratings"`
}

// ToRatingSummaryResponse builds the rating summary for a user.
func ToRatingSummaryResponse(userID uuid.UUID, summary domain.RatingSummary, ratings []*domain.Rating) RatingSummaryResponse {
	items := make([]RatingResponse, 0, len(ratings))
	for _, r := range ratings {
		items = append(items, ToRatingResponse(r))
	}
	return RatingSummaryResponse{
		UserID:  userID,
		Average: summary.Average(),
		Count:   summary.Count,
		Ratings: items,
	}
}

// TransactionResponse is the API representation of a karma transaction.
type TransactionResponse struct {
	ID           uuid.UUID `json:"id"`
	EngagementID uuid.UUID `json:"engagement_id"`
	FromUserID   uuid.UUID `json:"from_user_id"`
	ToUserID     uuid.UUID `json:"to_user_id"`
	Amount       int       `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

// BalanceResponse is a user's derived balance plus history.
type BalanceResponse struct {
	UserID       uuid.UUID             `json:"user_id"`
	Balance      int64                 `json:"balance"`
	Transactions []TransactionResponse `json:"transactions"`
}

// ToBalanceResponse builds the balance view for a user.
func ToBalanceResponse(userID uuid.UUID, balance int64, history []*domain.KarmaTransaction) BalanceResponse {
	items := make([]TransactionResponse, 0, len(history))
	for _, t := range history {
		items = append(items, TransactionResponse{
			ID:           t.ID,
			EngagementID: t.EngagementID,
			FromUserID:   t.FromUserID,
			ToUserID:     t.ToUserID,
			Amount:       t.Amount,
			CreatedAt:    t.CreatedAt,
		})
	}
	return BalanceResponse{
		UserID:       userID,
		Balance:      balance,
		Transactions: items,
	}
}

// ChatResponse is the API representation of a chat.
type ChatResponse struct {
	ID            uuid.UUID  `json:"id"`
	PostID        uuid.UUID  `json:"post_id"`
	ParticipantA  uuid.UUID  `json:"participant_a"`
	ParticipantB  uuid.UUID  `json:"participant_b"`
	Status        string     `json:"status"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ToChatResponse converts a domain chat to its API form.
func ToChatResponse(c *domain.Chat) ChatResponse {
	return ChatResponse{
		ID:            c.ID,
		PostID:        c.PostID,
		ParticipantA:  c.ParticipantA,
		ParticipantB:  c.ParticipantB,
		Status:        string(c.Status),
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

// MessageResponse is the API representation of a chat message.
type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ToMessageResponse converts a domain message to its API form.
func ToMessageResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// MessageListResponse is an ordered page of chat history.
type MessageListResponse struct {
	Messages []MessageResponse `json:"messages"`
}

// ToMessageListResponse converts a message list to its API form, preserving
// order.
func ToMessageListResponse(messages []*domain.Message) MessageListResponse {
	items := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		items = append(items, ToMessageResponse(m))
	}
	return MessageListResponse{Messages: items}
}

// PresenceResponse is the known presence state of a user.
type PresenceResponse struct {
	UserID     uuid.UUID  `json:"user_id"`
	IsOnline   bool       `json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}
