package handler

import (
	"net/http"

	"github.com/realtobyfu/karma-farm-sub001/internal/handler/dto"
)

// handleAcceptTask accepts a post, creating an IN_PROGRESS engagement for
// the caller. Exactly one accept wins per post; losers get 409.
func (h *Handler) handleAcceptTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.AcceptTaskRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	engagement, err := h.engagements.AcceptTask(r.Context(), postID, userID, req.ProposedCompletionDate)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.ToEngagementResponse(engagement))
}

// handleGetEngagement retrieves an engagement. This is the refetch path
// after a state conflict or a resync event.
func (h *Handler) handleGetEngagement(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	engagementID, ok := pathID(w, r)
	if !ok {
		return
	}

	engagement, err := h.engagements.Get(r.Context(), engagementID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ToEngagementResponse(engagement))
}

// handleGetActiveEngagement retrieves the active engagement on a post.
func (h *Handler) handleGetActiveEngagement(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	postID, ok := pathID(w, r)
	if !ok {
		return
	}

	engagement, err := h.engagements.ActiveForPost(r.Context(), postID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ToEngagementResponse(engagement))
}

// handleMarkCompleted marks the caller's engagement as completed, moving it
// to AWAITING_CONFIRMATION.
func (h *Handler) handleMarkCompleted(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	engagementID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.MarkCompletedRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	engagement, err := h.engagements.MarkCompleted(r.Context(), engagementID, userID, req.Notes)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ToEngagementResponse(engagement))
}

// handleConfirmCompletion confirms a completed task as the post owner. The
// response reports the settlement outcome alongside the engagement; a
// pending settlement is retried in the background.
func (h *Handler) handleConfirmCompletion(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	engagementID, ok := pathID(w, r)
	if !ok {
		return
	}

	engagement, outcome, err := h.engagements.ConfirmCompletion(r.Context(), engagementID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ConfirmResponse{
		Engagement: dto.ToEngagementResponse(engagement),
		Settlement: string(outcome),
	})
}

// handleDispute moves an engagement to DISPUTED with the caller's reason.
func (h *Handler) handleDispute(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	engagementID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.DisputeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	engagement, err := h.engagements.Dispute(r.Context(), engagementID, userID, req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ToEngagementResponse(engagement))
}
