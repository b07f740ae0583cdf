package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/logging"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// IdentityKey is the key used to store the authenticated identity in the
// request context.
const IdentityKey contextKey = "identity"

// WithIdentity attaches identity to ctx.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// IdentityFromContext returns the identity attached by SessionGuard.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(domain.Identity)
	return identity, ok
}

// BearerToken extracts the credential from an "Authorization: Bearer"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// SessionGuard authenticates every request with an access credential and
// re-checks the identity store. Any failure, including a store outage, is
// a 401: a guard error must never look like a server fault.
func SessionGuard(verifier ports.TokenVerifier, store ports.IdentityStore, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "session_guard")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, apperrors.ErrAuthMissing, "Authorization header must be Bearer {token}")
				return
			}

			identity, err := Authenticate(r.Context(), verifier, store, token)
			if err != nil {
				logger.DebugContext(r.Context(), "session rejected", "error", err)
				writeAuthError(w, http.StatusUnauthorized, apperrors.ErrSessionInvalid, "Invalid or expired session")
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			ctx = logging.WithUserID(ctx, identity.ID.String())
			ctx = logging.WithRole(ctx, string(identity.Role))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate verifies an access credential and resolves its subject
// against the identity store. The realtime handshake shares it with the
// HTTP guard.
func Authenticate(ctx context.Context, verifier ports.TokenVerifier, store ports.IdentityStore, token string) (domain.Identity, error) {
	claims, err := verifier.Verify(token, auth.KindAccess)
	if err != nil {
		return domain.Identity{}, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return domain.Identity{}, apperrors.ErrInvalidToken
	}

	identity, err := store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return domain.Identity{}, apperrors.ErrSessionInvalid
		}
		return domain.Identity{}, errors.Join(apperrors.ErrSessionInvalid, err)
	}

	return identity, nil
}

// RequireRole allows the request through only when the authenticated
// identity holds one of the allowed roles.
func RequireRole(allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, apperrors.ErrUnauthenticated, "Authentication required")
				return
			}

			for _, role := range allowed {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeAuthError(w, http.StatusForbidden, apperrors.ErrForbidden, "You don't have permission to perform this action")
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, err error, message string) {
	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  message,
		"code":   code,
		"reason": err.Error(),
	})
}
