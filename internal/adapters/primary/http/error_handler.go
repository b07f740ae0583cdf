package http

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

// ErrorResponse is the standard JSON error response format
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse includes field-level validation errors
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// errorMapping turns a family of domain errors into one response. An
// empty message echoes the error text.
type errorMapping struct {
	match   func(error) bool
	status  int
	code    string
	message string
}

func is(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// errorMappings is evaluated top to bottom. Specific credential failures
// precede the generic auth family, which never falls through to 500.
var errorMappings = []errorMapping{
	{is(apperrors.ErrInvalidCredentials), http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials"},
	{is(apperrors.ErrExpiredToken), http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired"},
	{is(apperrors.ErrTokenReused), http.StatusUnauthorized, "TOKEN_REUSED", "Refresh token already used"},
	{apperrors.IsAuthError, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{is(apperrors.ErrForbidden), http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action"},

	{is(apperrors.ErrTicketNotFound), http.StatusNotFound, "TICKET_NOT_FOUND", "Ticket not found"},
	{is(apperrors.ErrUserNotFound), http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{is(apperrors.ErrNotFound), http.StatusNotFound, "NOT_FOUND", "Resource not found"},
	{is(apperrors.ErrUserExists), http.StatusConflict, "USER_EXISTS", "A user with this email already exists"},

	{is(
		apperrors.ErrTitleRequired, apperrors.ErrTitleTooLong, apperrors.ErrDescriptionTooLong,
		apperrors.ErrInvalidPriority, apperrors.ErrInvalidStatus, apperrors.ErrInvalidIssueType,
		apperrors.ErrInvalidRole, apperrors.ErrEmailRequired, apperrors.ErrPasswordRequired,
		apperrors.ErrPasswordTooWeak, apperrors.ErrBadRequest,
	), http.StatusBadRequest, "VALIDATION_ERROR", ""},
	{is(apperrors.ErrWriteIDRequired, apperrors.ErrUnknownWriteKind, apperrors.ErrMalformedWrite),
		http.StatusBadRequest, "INVALID_WRITE", ""},

	{is(apperrors.ErrInvalidStatusTransition), http.StatusConflict, "INVALID_STATUS_TRANSITION", "Invalid status transition"},
	{is(apperrors.ErrCannotAssignClosed), http.StatusConflict, "CANNOT_ASSIGN_CLOSED", "Cannot assign a closed ticket"},
	{is(apperrors.ErrInvalidAssignee), http.StatusUnprocessableEntity, "INVALID_ASSIGNEE", "Assignee must be an active agent or admin"},
	{is(apperrors.ErrRateLimited), http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later."},
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle writes the response for err: AppError as given, validation
// failures with their fields, domain errors through errorMappings and
// anything else as 500.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.logError(r, appErr.StatusCode, err)
		WriteJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr.Message, Code: appErr.Code, Details: appErr.Details})
		return
	}

	var verrs *apperrors.ValidationErrors
	if errors.As(err, &verrs) {
		h.logError(r, http.StatusUnprocessableEntity, err)
		WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: verrs.Errors,
		})
		return
	}

	status, resp := mapDomainError(err)
	h.logError(r, status, err)
	WriteJSON(w, status, resp)
}

func mapDomainError(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if !m.match(err) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		return m.status, ErrorResponse{Error: msg, Code: m.code}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "An unexpected error occurred", Code: "INTERNAL_ERROR"}
}

func (h *ErrorHandler) logError(r *http.Request, status int, err error) {
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"error", err.Error(),
	}

	ctx := r.Context()
	if status >= 500 {
		h.logger.ErrorContext(ctx, "server error", attrs...)
		return
	}
	h.logger.WarnContext(ctx, "client error", attrs...)
}
