package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Credentials
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongKind    = errors.New("token kind mismatch")
	ErrTokenReused  = errors.New("refresh token already used")

	// Session & authorization
	ErrAuthMissing        = errors.New("authorization credential missing")
	ErrSessionInvalid     = errors.New("session is no longer valid")
	ErrUnauthenticated    = errors.New("no authenticated identity")
	ErrForbidden          = errors.New("action forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTransportRejected  = errors.New("realtime handshake rejected")

	// User validation
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrEmailRequired    = errors.New("email is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooWeak  = errors.New("password does not meet security requirements")
	ErrInvalidRole      = errors.New("invalid role")

	// Ticket validation
	ErrTicketNotFound          = errors.New("ticket not found")
	ErrTitleRequired           = errors.New("title is required")
	ErrTitleTooLong            = errors.New("title exceeds maximum length of 255 characters")
	ErrDescriptionTooLong      = errors.New("description exceeds maximum length")
	ErrInvalidPriority         = errors.New("invalid ticket priority")
	ErrInvalidStatus           = errors.New("invalid ticket status")
	ErrInvalidIssueType        = errors.New("invalid issue type")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrCannotAssignClosed      = errors.New("cannot assign a closed ticket")
	ErrInvalidAssignee         = errors.New("assignee must be an active agent or admin")

	// Queued writes
	ErrWriteIDRequired   = errors.New("write id is required")
	ErrUnknownWriteKind  = errors.New("unknown write kind")
	ErrMalformedWrite    = errors.New("malformed write payload")
	ErrSyncWriteRejected = errors.New("queued write rejected")

	// Generic
	ErrNotFound    = errors.New("resource not found")
	ErrInternal    = errors.New("internal server error")
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// AppError carries the status and machine code an HTTP response should use.
// Message is what the caller sees; Err stays server side.
type AppError struct {
	Err        error
	Message    string
	Code       string
	StatusCode int
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(status int, code string, err error, message string) *AppError {
	return &AppError{Err: err, Message: message, Code: code, StatusCode: status}
}

func NewBadRequestError(err error, message string) *AppError {
	return newAppError(http.StatusBadRequest, "BAD_REQUEST", err, message)
}

func NewUnauthorizedError(err error, message string) *AppError {
	return newAppError(http.StatusUnauthorized, "UNAUTHORIZED", err, message)
}

func NewForbiddenError(message string) *AppError {
	return newAppError(http.StatusForbidden, "FORBIDDEN", ErrForbidden, message)
}

func NewNotFoundError(err error, message string) *AppError {
	return newAppError(http.StatusNotFound, "NOT_FOUND", err, message)
}

func NewRateLimitError() *AppError {
	return newAppError(http.StatusTooManyRequests, "RATE_LIMITED", ErrRateLimited, "Too many requests. Please try again later.")
}

// NewInternalError hides err behind a generic message.
func NewInternalError(err error) *AppError {
	return newAppError(http.StatusInternalServerError, "INTERNAL_ERROR", err, "An unexpected error occurred")
}

// ValidationErrors maps each field to its messages, in the order added.
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(v.Errors))
}

var authErrors = []error{
	ErrAuthMissing,
	ErrInvalidToken,
	ErrExpiredToken,
	ErrWrongKind,
	ErrTokenReused,
	ErrSessionInvalid,
	ErrUnauthenticated,
	ErrInvalidCredentials,
	ErrTransportRejected,
}

// IsAuthError reports whether err belongs to the credential and session
// family, all of which answer 401.
func IsAuthError(err error) bool {
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
