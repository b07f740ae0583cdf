package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpAdapter "github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/http"
	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/websocket"
	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/config"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/mocks"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/services"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/logging"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/metrics"
)

type stubAuthorizer struct{ allowed int64 }

func (s stubAuthorizer) GetTicket(_ context.Context, id int64, _ domain.Identity) (*domain.Ticket, error) {
	if id != s.allowed {
		return nil, apperrors.ErrTicketNotFound
	}
	return &domain.Ticket{ID: id}, nil
}

func TestLateAuthorizer(t *testing.T) {
	a := &lateAuthorizer{}

	_, err := a.GetTicket(context.Background(), 1, domain.Identity{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	a.bind(stubAuthorizer{allowed: 1})
	ticket, err := a.GetTicket(context.Background(), 1, domain.Identity{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ticket.ID)
}

func newTestRouter(t *testing.T) (http.Handler, *auth.TokenAuthority, *mocks.MockIdentityStore) {
	t.Helper()
	logger := logging.Discard()
	cfg := config.FromEnv()
	cfg.App.Environment = "development"

	tokens := auth.NewTokenAuthority(auth.TokenAuthorityConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	store := mocks.NewMockIdentityStore()
	registry := prometheus.NewRegistry()
	rt := metrics.NewRealtime(registry)
	hub := websocket.NewHub(websocket.HubConfig{}, nil, rt, logger)
	eh := httpAdapter.NewErrorHandler(logger)
	tickets := mocks.NewMockTicketService()

	return newRouter(routerDeps{
		cfg:          cfg,
		logger:       logger,
		registry:     registry,
		httpMetrics:  metrics.NewHTTP(registry),
		tokens:       tokens,
		identities:   store,
		authHandler:  httpAdapter.NewAuthHandler(mocks.NewMockAuthService(), eh),
		ticket:       httpAdapter.NewTicketHandler(tickets, eh, logger),
		syncHandler:  httpAdapter.NewSyncHandler(mocks.NewMockWriteApplyService(), eh, logger),
		wsHandler:    httpAdapter.NewWebSocketHandler(hub, tokens, store, cfg, rt, logger),
		healthHandle: httpAdapter.NewHealthHandler("test", nil),
	}), tokens, store
}

func TestRouter_PublicAndGuardedRoutes(t *testing.T) {
	router, tokens, store := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  func() string
		want   int
	}{
		{"liveness", http.MethodGet, "/health/live", nil, http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", nil, http.StatusOK},
		{"tickets without credential", http.MethodGet, "/api/v1/tickets", nil, http.StatusUnauthorized},
		{"sync without credential", http.MethodPost, "/api/v1/sync/writes", nil, http.StatusUnauthorized},
		{
			name:   "refresh credential on guarded route",
			method: http.MethodGet,
			path:   "/api/v1/tickets",
			token: func() string {
				pair, err := tokens.IssuePair(domain.Identity{ID: uuid.New(), Role: domain.RoleAgent})
				require.NoError(t, err)
				return pair.RefreshToken
			},
			want: http.StatusUnauthorized,
		},
		{
			name:   "identity gone",
			method: http.MethodGet,
			path:   "/api/v1/tickets",
			token: func() string {
				id := uuid.New()
				store.On("FindByID", mock.Anything, id).Return(domain.Identity{}, apperrors.ErrUserNotFound)
				pair, err := tokens.IssuePair(domain.Identity{ID: id, Role: domain.RoleAgent})
				require.NoError(t, err)
				return pair.AccessToken
			},
			want: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != nil {
				req.Header.Set("Authorization", "Bearer "+tt.token())
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tickets", nil)
	req.Header.Set("Origin", "https://desk.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginCredentialPassesSessionGuard(t *testing.T) {
	logger := logging.Discard()
	cfg := config.FromEnv()
	registry := prometheus.NewRegistry()
	rt := metrics.NewRealtime(registry)
	tokenConfig := auth.TokenAuthorityConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}
	tokens := auth.NewTokenAuthority(tokenConfig)

	hash, err := domain.HashPassword("Password123")
	require.NoError(t, err)
	user := &domain.User{
		ID:           uuid.New(),
		FullName:     "Ada Agent",
		Email:        "ada@example.com",
		PasswordHash: hash,
		Role:         domain.RoleAgent,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}

	users := mocks.NewMockUserRepository()
	users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	authService := services.NewAuthService(users, tokens, mocks.NewMockRefreshLedger(), logger)
	tickets := mocks.NewMockTicketService()
	tickets.On("ListTickets", mock.Anything, mock.Anything).Return([]*domain.Ticket{}, nil)

	eh := httpAdapter.NewErrorHandler(logger)
	router := newRouter(routerDeps{
		cfg:          cfg,
		logger:       logger,
		registry:     registry,
		httpMetrics:  metrics.NewHTTP(registry),
		tokens:       tokens,
		identities:   authService,
		authHandler:  httpAdapter.NewAuthHandler(authService, eh),
		ticket:       httpAdapter.NewTicketHandler(tickets, eh, logger),
		syncHandler:  httpAdapter.NewSyncHandler(mocks.NewMockWriteApplyService(), eh, logger),
		wsHandler:    httpAdapter.NewWebSocketHandler(websocket.NewHub(websocket.HubConfig{}, nil, rt, logger), tokens, authService, cfg, rt, logger),
		healthHandle: httpAdapter.NewHealthHandler("test", nil),
	})

	login := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"Password123"}`))
	login.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body httpAdapter.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	claims, err := tokens.Verify(body.Tokens.AccessToken, auth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, domain.RoleAgent, claims.Role)
	assert.Equal(t, auth.KindAccess, claims.Type)

	list := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, list(body.Tokens.AccessToken))

	expiredConfig := tokenConfig
	expiredConfig.AccessTTL = -time.Minute
	expired, err := auth.NewTokenAuthority(expiredConfig).Sign(user.ID, user.Role, auth.KindAccess)
	require.NoError(t, err)

	_, err = tokens.Verify(expired, auth.KindAccess)
	assert.ErrorIs(t, err, apperrors.ErrExpiredToken)
	assert.Equal(t, http.StatusUnauthorized, list(expired))
}
