package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

// Kind distinguishes access credentials from refresh credentials.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims defines the structured data we store in the JWT
type Claims struct {
	Role domain.Role `json:"role"`
	Type Kind        `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Identity returns the principal the claims were issued to.
func (c *Claims) Identity() (domain.Identity, error) {
	id, err := c.UserID()
	if err != nil {
		return domain.Identity{}, apperrors.ErrInvalidToken
	}
	return domain.Identity{ID: id, Role: c.Role}, nil
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenAuthorityConfig configures independent secrets and lifetimes for the
// two credential kinds.
type TokenAuthorityConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenAuthority issues and verifies signed credentials.
type TokenAuthority struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenAuthority(cfg TokenAuthorityConfig) *TokenAuthority {
	return &TokenAuthority{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

func (ta *TokenAuthority) secret(kind Kind) ([]byte, time.Duration, error) {
	switch kind {
	case KindAccess:
		return ta.accessSecret, ta.accessTTL, nil
	case KindRefresh:
		return ta.refreshSecret, ta.refreshTTL, nil
	}
	return nil, 0, fmt.Errorf("unknown token kind %q", kind)
}

// Sign creates a credential of the given kind for subject.
func (ta *TokenAuthority) Sign(subject uuid.UUID, role domain.Role, kind Kind) (string, error) {
	secret, ttl, err := ta.secret(kind)
	if err != nil {
		return "", err
	}

	now := ta.now()
	claims := &Claims{
		Role: role,
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// IssuePair signs a fresh access and refresh credential for identity.
func (ta *TokenAuthority) IssuePair(identity domain.Identity) (TokenPair, error) {
	access, err := ta.Sign(identity.ID, identity.Role, KindAccess)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := ta.Sign(identity.ID, identity.Role, KindRefresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify parses and validates tokenString as a credential of the given
// kind. It returns ErrInvalidToken, ErrExpiredToken or ErrWrongKind.
//
// A credential signed with the other kind's secret is reported as
// ErrWrongKind rather than ErrInvalidToken.
func (ta *TokenAuthority) Verify(tokenString string, kind Kind) (*Claims, error) {
	claims, err := ta.parse(tokenString, kind)
	if err == nil {
		if claims.Type != kind {
			return nil, apperrors.ErrWrongKind
		}
		return claims, nil
	}
	if !errors.Is(err, apperrors.ErrInvalidToken) {
		return nil, err
	}

	other := KindRefresh
	if kind == KindRefresh {
		other = KindAccess
	}
	if foreign, ferr := ta.parse(tokenString, other); ferr == nil && foreign.Type == other {
		return nil, apperrors.ErrWrongKind
	}
	return nil, err
}

func (ta *TokenAuthority) parse(tokenString string, kind Kind) (*Claims, error) {
	secret, _, err := ta.secret(kind)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(ta.now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrExpiredToken
		}
		return nil, apperrors.ErrInvalidToken
	}

	if !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	if _, err := claims.UserID(); err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	return claims, nil
}

// RemainingLifetime reports how long the claims stay valid.
func (ta *TokenAuthority) RemainingLifetime(claims *Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	d := claims.ExpiresAt.Time.Sub(ta.now())
	if d < 0 {
		return 0
	}
	return d
}
