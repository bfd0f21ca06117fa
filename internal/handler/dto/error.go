package dto

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// MapDomainError maps domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code string, message string) {
	message = err.Error()

	switch {
	// Not found
	case errors.Is(err, domain.ErrPostNotFound):
		return http.StatusNotFound, "POST_NOT_FOUND", message
	case errors.Is(err, domain.ErrEngagementNotFound):
		return http.StatusNotFound, "ENGAGEMENT_NOT_FOUND", message
	case errors.Is(err, domain.ErrChatNotFound):
		return http.StatusNotFound, "CHAT_NOT_FOUND", message

	// State conflicts
	case errors.Is(err, domain.ErrAlreadyEngaged):
		return http.StatusConflict, "ALREADY_ENGAGED", message
	case errors.Is(err, domain.ErrStateConflict):
		return http.StatusConflict, "STATE_CONFLICT", message
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, "ILLEGAL_TRANSITION", message
	case errors.Is(err, domain.ErrDuplicateRating):
		return http.StatusConflict, "DUPLICATE_RATING", message
	case errors.Is(err, domain.ErrChatArchived):
		return http.StatusConflict, "CHAT_ARCHIVED", message
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusConflict, "INSUFFICIENT_FUNDS", message

	// Permission errors
	case errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden, "NOT_PARTICIPANT", message
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN", message

	// Validation errors
	case errors.Is(err, domain.ErrSelfEngagement):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message
	case errors.Is(err, domain.ErrInvalidScore):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message
	case errors.Is(err, domain.ErrEmptyContent):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message
	case errors.Is(err, domain.ErrEmptyReason):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message

	// Default: internal server error
	default:
		slog.Error("unmapped domain error returned to client",
			"error", err,
			"error_type", fmt.Sprintf("%T", err),
		)
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}
