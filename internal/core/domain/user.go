package domain

import (
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
	MaxFullNameLength = 255
	MaxEmailLength    = 255
)

// User is a registered account. It is the identity-store record behind
// every Identity.
type User struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
}

// Identity projects the user onto the fields carried by credentials.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role}
}

// CanSignIn reports whether the account may receive credentials.
func (u *User) CanSignIn() bool {
	return u.IsActive && u.Role.IsValid()
}

// CheckPassword compares password against the stored bcrypt hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// UserRegistrationParams holds parameters for user registration
type UserRegistrationParams struct {
	FullName string
	Email    string
	Password string
	Role     Role
}

// Validate collects every field error.
func (p *UserRegistrationParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	name := strings.TrimSpace(p.FullName)
	switch {
	case name == "":
		errs.Add("fullName", "Full name is required")
	case len(name) > MaxFullNameLength:
		errs.Add("fullName", "Full name must be 255 characters or less")
	}

	email := NormalizeEmail(p.Email)
	switch {
	case email == "":
		errs.Add("email", "Email is required")
	case len(email) > MaxEmailLength:
		errs.Add("email", "Email must be 255 characters or less")
	case !isValidEmail(email):
		errs.Add("email", "Invalid email format")
	}

	if p.Role != "" && !p.Role.IsValid() {
		errs.Add("role", "Unknown role")
	}

	for _, msg := range ValidatePassword(p.Password) {
		errs.Add("password", msg)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// passwordRules are checked in order; each failing rule adds its message.
var passwordRules = []struct {
	ok  func(string) bool
	msg string
}{
	{func(s string) bool { return len(s) >= MinPasswordLength }, "Password must be at least 8 characters long"},
	{func(s string) bool { return len(s) <= MaxPasswordLength }, "Password must be 72 bytes or less"},
	{func(s string) bool { return strings.IndexFunc(s, unicode.IsUpper) >= 0 }, "Password must contain at least one uppercase letter"},
	{func(s string) bool { return strings.IndexFunc(s, unicode.IsLower) >= 0 }, "Password must contain at least one lowercase letter"},
	{func(s string) bool { return strings.IndexFunc(s, unicode.IsNumber) >= 0 }, "Password must contain at least one number"},
}

// ValidatePassword returns one message per unmet rule, or nil.
func ValidatePassword(password string) []string {
	var msgs []string
	for _, rule := range passwordRules {
		if !rule.ok(password) {
			msgs = append(msgs, rule.msg)
		}
	}
	return msgs
}

// NormalizeEmail trims and lowercases an address. Lookups are
// case-insensitive, so stored addresses are kept in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// HashPassword hashes a password that satisfies the password rules.
func HashPassword(password string) (string, error) {
	if len(ValidatePassword(password)) > 0 {
		return "", apperrors.ErrPasswordTooWeak
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// NewUser validates params and returns an active account. The role
// defaults to customer.
func NewUser(params UserRegistrationParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	role := params.Role
	if role == "" {
		role = RoleCustomer
	}

	return &User{
		ID:           uuid.New(),
		FullName:     strings.TrimSpace(params.FullName),
		Email:        NormalizeEmail(params.Email),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
