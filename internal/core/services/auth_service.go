package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

// AuthService implements authentication business logic and doubles as the
// identity store consulted by the session guard.
type AuthService struct {
	userRepo ports.UserRepository
	tokens   ports.TokenIssuer
	ledger   ports.RefreshLedger
	logger   *slog.Logger
}

var (
	_ ports.AuthService   = (*AuthService)(nil)
	_ ports.IdentityStore = (*AuthService)(nil)
)

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo ports.UserRepository,
	tokens ports.TokenIssuer,
	ledger ports.RefreshLedger,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		ledger:   ledger,
		logger:   logger.With("component", "auth_service"),
	}
}

// Register creates a new customer account with validated credentials
func (s *AuthService) Register(ctx context.Context, fullName, email, password string) (*domain.User, error) {
	params := domain.UserRegistrationParams{
		FullName: fullName,
		Email:    email,
		Password: password,
		Role:     domain.RoleCustomer,
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	// Check if user already exists
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, apperrors.ErrUserExists
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	user, err := domain.NewUser(params)
	if err != nil {
		return nil, err
	}

	return s.userRepo.Create(ctx, user)
}

// Login authenticates a user with email and password and issues a fresh
// credential pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	if email == "" {
		return nil, apperrors.ErrEmailRequired
	}
	if password == "" {
		return nil, apperrors.ErrPasswordRequired
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			// Don't reveal whether email exists
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.CanSignIn() || !user.CheckPassword(password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return s.issue(user)
}

// Refresh exchanges a refresh credential for a new pair. Every refresh
// credential can be exchanged once; a replay is rejected with
// ErrTokenReused.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*ports.AuthResult, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrAuthMissing
	}

	claims, err := s.tokens.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, err
	}

	first, err := s.ledger.Consume(ctx, claims.ID, s.tokens.RemainingLifetime(claims))
	if err != nil {
		s.logger.ErrorContext(ctx, "refresh ledger unavailable", "error", err)
		return nil, apperrors.ErrSessionInvalid
	}
	if !first {
		s.logger.WarnContext(ctx, "refresh token replayed", "subject", claims.Subject, "jti", claims.ID)
		return nil, apperrors.ErrTokenReused
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrSessionInvalid
	}

	return s.issue(user)
}

// FindByID returns the current identity of an active user. The role comes
// from the store, not from the credential, so role changes apply on the
// next request.
func (s *AuthService) FindByID(ctx context.Context, id uuid.UUID) (domain.Identity, error) {
	user, err := s.activeUser(ctx, id)
	if err != nil {
		return domain.Identity{}, err
	}
	return user.Identity(), nil
}

func (s *AuthService) activeUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*ports.AuthResult, error) {
	pair, err := s.tokens.IssuePair(user.Identity())
	if err != nil {
		return nil, err
	}
	return &ports.AuthResult{User: user, Tokens: pair}, nil
}
