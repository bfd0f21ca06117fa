package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/realtobyfu/karma-farm-sub001/internal/chat"
	"github.com/realtobyfu/karma-farm-sub001/internal/handler/dto"
	"github.com/realtobyfu/karma-farm-sub001/internal/ledger"
	"github.com/realtobyfu/karma-farm-sub001/internal/middleware"
	"github.com/realtobyfu/karma-farm-sub001/internal/rating"
	"github.com/realtobyfu/karma-farm-sub001/internal/realtime"
	"github.com/realtobyfu/karma-farm-sub001/internal/service"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool           *pgxpool.Pool
	engagements    *service.EngagementService
	ratings        *rating.Service
	ledger         *ledger.Service
	chats          *chat.Coordinator
	hub            *realtime.Hub
	authMiddleware *middleware.AuthMiddleware
}

// New creates a new Handler instance. Services are built by main because
// the engagement service depends on the background job client.
func New(
	pool *pgxpool.Pool,
	engagements *service.EngagementService,
	ratings *rating.Service,
	ledgerSvc *ledger.Service,
	chats *chat.Coordinator,
	hub *realtime.Hub,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		pool:           pool,
		engagements:    engagements,
		ratings:        ratings,
		ledger:         ledgerSvc,
		chats:          chats,
		hub:            hub,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Engagement lifecycle
	mux.Handle("POST /api/v1/posts/{id}/accept", h.authed(h.handleAcceptTask))
	mux.Handle("GET /api/v1/posts/{id}/engagement", h.authed(h.handleGetActiveEngagement))
	mux.Handle("GET /api/v1/engagements/{id}", h.authed(h.handleGetEngagement))
	mux.Handle("POST /api/v1/engagements/{id}/complete", h.authed(h.handleMarkCompleted))
	mux.Handle("POST /api/v1/engagements/{id}/confirm", h.authed(h.handleConfirmCompletion))
	mux.Handle("POST /api/v1/engagements/{id}/dispute", h.authed(h.handleDispute))

	// Ratings and balances
	mux.Handle("POST /api/v1/engagements/{id}/rating", h.authed(h.handleSubmitRating))
	mux.Handle("GET /api/v1/users/{id}/rating", h.authed(h.handleGetRatingSummary))
	mux.Handle("GET /api/v1/users/{id}/balance", h.authed(h.handleGetBalance))

	// Chat
	mux.Handle("POST /api/v1/posts/{id}/chat", h.authed(h.handleCreateChat))
	mux.Handle("GET /api/v1/chats/{id}", h.authed(h.handleGetChat))
	mux.Handle("POST /api/v1/chats/{id}/messages", h.authed(h.handleSendMessage))
	mux.Handle("GET /api/v1/chats/{id}/messages", h.authed(h.handleListMessages))
	mux.Handle("GET /api/v1/chats/{id}/events", h.authed(h.handleChatEvents))
	mux.Handle("POST /api/v1/chats/{id}/typing", h.authed(h.handleSetTyping))

	// Presence
	mux.Handle("POST /api/v1/presence", h.authed(h.handleSetPresence))
	mux.Handle("GET /api/v1/users/{id}/presence", h.authed(h.handleGetPresence))
}

func (h *Handler) authed(fn http.HandlerFunc) http.Handler {
	return h.authMiddleware.Authenticate(fn)
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Ping(r.Context()); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps a domain error and writes it.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// pathID extracts and parses the {id} path parameter. Returns uuid.Nil and
// false if invalid, with the error already sent to the client.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.PathValue("id")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "id is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// callerID extracts the authenticated user, writing a 401 on failure.
func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := middleware.GetUserID(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}
