package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/realtobyfu/karma-farm-sub001/internal/handler/dto"
	"github.com/realtobyfu/karma-farm-sub001/internal/realtime"
)

// handleCreateChat opens (or returns) the chat between the caller and a
// peer on a post. The pair is unordered: either side may open it.
func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.CreateChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PeerID == userID {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot open a chat with yourself")
		return
	}

	created, err := h.chats.GetOrCreateChat(r.Context(), postID, userID, req.PeerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.ToChatResponse(created))
}

// handleGetChat retrieves a chat the caller participates in.
func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(w, r)
	if !ok {
		return
	}

	found, err := h.chats.GetChat(r.Context(), chatID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ToChatResponse(found))
}

// handleSendMessage appends a message to a chat.
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	message, err := h.chats.SendMessage(r.Context(), chatID, userID, req.Content)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.ToMessageResponse(message))
}

// handleListMessages returns a chat's history in its stable total order.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(w, r)
	if !ok {
		return
	}

	messages, err := h.chats.Messages(r.Context(), chatID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ToMessageListResponse(messages))
}

// handleChatEvents streams a chat's realtime events over SSE. The stream
// opens with a resync event so the client re-fetches state it may have
// missed; the same applies whenever the stream ends and the client
// reconnects.
func (h *Handler) handleChatEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.chats.GetChat(r.Context(), chatID, userID); err != nil {
		respondDomainError(w, err)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe(chatID)
	defer sub.Close()

	resync := realtime.Event{Type: realtime.EventResync, At: time.Now().UTC()}
	if err := writeSSE(w, resync); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub.Events():
			if !open {
				// Evicted as a slow consumer. End the stream; the
				// client reconnects and resyncs.
				slog.Warn("chat event stream closed by hub", "chat_id", chatID)
				return
			}
			if err := writeSSE(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE writes one event in server-sent-events framing.
func writeSSE(w http.ResponseWriter, event realtime.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, body)
	return err
}

// handleSetTyping records a typing signal from a chat participant.
func (h *Handler) handleSetTyping(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.TypingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.chats.SetTyping(r.Context(), chatID, userID, req.IsTyping); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetPresence updates the caller's own presence.
func (h *Handler) handleSetPresence(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req dto.PresenceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.IsOnline {
		h.chats.SetOnline(userID)
	} else {
		h.chats.SetOffline(userID, time.Now().UTC())
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetPresence returns the known presence state for a user. Unknown
// users read as offline with no last-seen time.
func (h *Handler) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	userID, ok := pathID(w, r)
	if !ok {
		return
	}

	resp := dto.PresenceResponse{UserID: userID}
	if state, known := h.chats.Presence(userID); known {
		lastSeen := state.LastSeenAt
		resp.IsOnline = state.IsOnline
		resp.LastSeenAt = &lastSeen
	}
	respondJSON(w, http.StatusOK, resp)
}
