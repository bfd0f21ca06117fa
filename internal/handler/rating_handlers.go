package handler

import (
	"net/http"

	"github.com/realtobyfu/karma-farm-sub001/internal/handler/dto"
)

// handleSubmitRating rates the other party of a confirmed engagement.
func (h *Handler) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	engagementID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.SubmitRatingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	submitted, err := h.ratings.SubmitRating(r.Context(), engagementID, userID, req.Score, req.Review, req.Tags)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, dto.ToRatingResponse(submitted))
}

// handleGetRatingSummary returns a user's rolling average and the ratings
// behind it.
func (h *Handler) handleGetRatingSummary(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	userID, ok := pathID(w, r)
	if !ok {
		return
	}

	summary, err := h.ratings.SummaryFor(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	received, err := h.ratings.ListForUser(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ToRatingSummaryResponse(userID, summary, received))
}

// handleGetBalance returns a user's derived karma balance and transaction
// history.
func (h *Handler) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	userID, ok := pathID(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	history, err := h.ledger.History(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.ToBalanceResponse(userID, balance, history))
}
