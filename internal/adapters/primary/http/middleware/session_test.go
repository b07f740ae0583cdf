package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/http/middleware"
	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/mocks"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/logging"
)

func newAuthority() *auth.TokenAuthority {
	return auth.NewTokenAuthority(auth.TokenAuthorityConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
}

// identityEcho responds with the identity found in the request context.
func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":   identity.ID.String(),
			"role": string(identity.Role),
		})
	})
}

func TestSessionGuard(t *testing.T) {
	ta := newAuthority()
	userID := uuid.New()

	access, err := ta.Sign(userID, domain.RoleCustomer, auth.KindAccess)
	require.NoError(t, err)
	refresh, err := ta.Sign(userID, domain.RoleCustomer, auth.KindRefresh)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		setupStore func(*mocks.MockIdentityStore)
		wantStatus int
		wantRole   string
	}{
		{
			name:       "missing header",
			header:     "",
			setupStore: func(*mocks.MockIdentityStore) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic " + access,
			setupStore: func(*mocks.MockIdentityStore) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "refresh credential presented as access",
			header:     "Bearer " + refresh,
			setupStore: func(*mocks.MockIdentityStore) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "identity vanished",
			header: "Bearer " + access,
			setupStore: func(s *mocks.MockIdentityStore) {
				s.On("FindByID", mock.Anything, userID).Return(domain.Identity{}, apperrors.ErrUserNotFound)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "store outage is still 401",
			header: "Bearer " + access,
			setupStore: func(s *mocks.MockIdentityStore) {
				s.On("FindByID", mock.Anything, userID).Return(domain.Identity{}, errors.New("connection refused"))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "valid session uses stored role",
			header: "bearer " + access,
			setupStore: func(s *mocks.MockIdentityStore) {
				s.On("FindByID", mock.Anything, userID).Return(domain.Identity{ID: userID, Role: domain.RoleAgent}, nil)
			},
			wantStatus: http.StatusOK,
			wantRole:   "agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockIdentityStore()
			tt.setupStore(store)
			handler := middleware.SessionGuard(ta, store, logging.Discard())(identityEcho())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantRole != "" {
				assert.Equal(t, tt.wantRole, body["role"])
				assert.Equal(t, userID.String(), body["id"])
			} else {
				assert.Equal(t, "UNAUTHORIZED", body["code"])
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := middleware.RequireRole(domain.RoleAdmin, domain.RoleAgent)(identityEcho())

	t.Run("no identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("role not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithIdentity(context.Background(), domain.Identity{ID: uuid.New(), Role: domain.RoleCustomer}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	})

	t.Run("role allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithIdentity(context.Background(), domain.Identity{ID: uuid.New(), Role: domain.RoleAgent}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBearerToken(t *testing.T) {
	token, ok := middleware.BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = middleware.BearerToken("Bearer ")
	assert.False(t, ok)

	_, ok = middleware.BearerToken("abc")
	assert.False(t, ok)
}
