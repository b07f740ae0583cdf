package validation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

// MaxBodyBytes caps decoded request bodies.
const MaxBodyBytes = 1 << 20

// Validator collects field errors across chained checks. Every check
// except Required treats an empty value as valid.
type Validator struct {
	errors *apperrors.ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{errors: apperrors.NewValidationErrors()}
}

func (v *Validator) check(field string, ok bool, message string) *Validator {
	if !ok {
		v.errors.Add(field, message)
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return v.errors.HasErrors()
}

func (v *Validator) Errors() *apperrors.ValidationErrors {
	return v.errors
}

// Err returns the collected errors, or nil when every check passed.
func (v *Validator) Err() error {
	if v.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) Required(field, value string) *Validator {
	return v.check(field, strings.TrimSpace(value) != "", "This field is required")
}

func (v *Validator) MaxLength(field, value string, max int) *Validator {
	return v.check(field, len(value) <= max, "Must be at most "+strconv.Itoa(max)+" characters")
}

func (v *Validator) Email(field, value string) *Validator {
	if value == "" {
		return v
	}
	_, err := mail.ParseAddress(value)
	return v.check(field, err == nil, "Must be a valid email address")
}

func (v *Validator) UUID(field, value string) *Validator {
	if value == "" {
		return v
	}
	_, err := uuid.Parse(value)
	return v.check(field, err == nil, "Must be a valid UUID")
}

func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	return v.check(field, slices.Contains(allowed, value), "Must be one of: "+strings.Join(allowed, ", "))
}

// Custom records message against field unless valid holds.
func (v *Validator) Custom(field string, valid bool, message string) *Validator {
	return v.check(field, valid, message)
}

// Decode reads a JSON request body into T, rejecting unknown fields and
// bodies over MaxBodyBytes.
func Decode[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	var req T
	switch err := dec.Decode(&req); {
	case errors.Is(err, io.EOF):
		return nil, apperrors.NewBadRequestError(err, "Request body is required")
	case err != nil:
		return nil, apperrors.NewBadRequestError(err, "Invalid request body")
	}
	return &req, nil
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset, ignoring malformed or negative
// values and capping limit at maxLimit.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) PaginationParams {
	params := PaginationParams{
		Limit:  int(ParseInt64QueryParam(r, "limit", int64(defaultLimit))),
		Offset: int(ParseInt64QueryParam(r, "offset", 0)),
	}
	if params.Limit == 0 {
		params.Limit = defaultLimit
	}
	params.Limit = min(params.Limit, maxLimit)
	return params
}

// ParseInt64QueryParam returns the non-negative integer under key, or
// defaultValue when it is absent or malformed.
func ParseInt64QueryParam(r *http.Request, key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

// ParseStringQueryParam returns nil when key is absent or empty.
func ParseStringQueryParam(r *http.Request, key string) *string {
	if value := r.URL.Query().Get(key); value != "" {
		return &value
	}
	return nil
}
