package http

import (
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ws "github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/websocket"
	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/config"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/mocks"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/logging"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/metrics"
)

type wsFixture struct {
	server    *httptest.Server
	hub       *ws.Hub
	authority *auth.TokenAuthority
	store     *mocks.MockIdentityStore
	metrics   *metrics.Realtime
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Environment: "test"},
		WebSocket: config.WebSocketConfig{
			AllowedOrigins:   []string{"desk.example.com"},
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			PingInterval:     time.Second,
			PongWait:         2 * time.Second,
			WriteWait:        time.Second,
			HandshakeTimeout: 500 * time.Millisecond,
			SendBuffer:       16,
			PublishBuffer:    16,
			MaxMessageSize:   4096,
		},
	}

	f := &wsFixture{
		authority: auth.NewTokenAuthority(auth.TokenAuthorityConfig{
			AccessSecret:  "access-secret-for-tests-0123456789",
			RefreshSecret: "refresh-secret-for-tests-0123456789",
			AccessTTL:     time.Minute,
			RefreshTTL:    time.Hour,
		}),
		store:   mocks.NewMockIdentityStore(),
		metrics: metrics.NewRealtime(nil),
	}
	f.hub = ws.NewHub(ws.HubConfig{PublishBuffer: 16}, nil, f.metrics, logging.Discard())

	handler := NewWebSocketHandler(f.hub, f.authority, f.store, cfg, f.metrics, logging.Discard())
	f.server = httptest.NewServer(handler)
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) url(query string) string {
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (f *wsFixture) signedIdentity(t *testing.T, role domain.Role) (domain.Identity, string) {
	t.Helper()
	identity := domain.Identity{ID: uuid.New(), Role: role}
	token, err := f.authority.Sign(identity.ID, identity.Role, auth.KindAccess)
	require.NoError(t, err)
	f.store.On("FindByID", mock.Anything, identity.ID).Return(identity, nil)
	return identity, token
}

func TestWebSocketHandler_HeaderCredential(t *testing.T) {
	f := newWSFixture(t)
	_, token := f.signedIdentity(t, domain.RoleAgent)

	header := stdhttp.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(f.url(""), header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.hub.Members(domain.StaffRoom()))
	assert.Equal(t, 1, f.hub.Members(domain.RoleRoom(domain.RoleAgent)))
}

func TestWebSocketHandler_QueryCredential(t *testing.T) {
	f := newWSFixture(t)
	identity, token := f.signedIdentity(t, domain.RoleCustomer)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(ws.TokenQueryParam+"="+url.QueryEscape(token)), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Members(domain.UserRoom(identity.ID)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.hub.Members(domain.StaffRoom()))
}

func TestWebSocketHandler_FirstFrameCredential(t *testing.T) {
	f := newWSFixture(t)
	identity, token := f.signedIdentity(t, domain.RoleAdmin)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(""), nil)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := json.Marshal(map[string]any{"auth": map[string]string{"token": "Bearer " + token}})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	require.Eventually(t, func() bool { return f.hub.Members(domain.UserRoom(identity.ID)) == 1 }, time.Second, 5*time.Millisecond)

	f.hub.Dispatch(domain.NewTicketUpdatedEvent(&domain.Ticket{ID: 4, CreatorID: uuid.New(), Status: domain.StatusResolved}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got ws.Frame
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, domain.EventTicketUpdated, got.Event)
}

func TestWebSocketHandler_RejectsBadCredentialBeforeUpgrade(t *testing.T) {
	f := newWSFixture(t)

	refresh, err := f.authority.Sign(uuid.New(), domain.RoleAgent, auth.KindRefresh)
	require.NoError(t, err)

	header := stdhttp.Header{"Authorization": []string{"Bearer " + refresh}}
	_, resp, err := websocket.DefaultDialer.Dial(f.url(""), header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, 0, f.hub.ConnectionCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rejected.WithLabelValues("invalid_credential")))
}

func TestWebSocketHandler_RejectsVanishedIdentity(t *testing.T) {
	f := newWSFixture(t)

	id := uuid.New()
	token, err := f.authority.Sign(id, domain.RoleCustomer, auth.KindAccess)
	require.NoError(t, err)
	f.store.On("FindByID", mock.Anything, id).Return(domain.Identity{}, apperrors.ErrUserNotFound)

	header := stdhttp.Header{"Authorization": []string{"Bearer " + token}}
	_, resp, err := websocket.DefaultDialer.Dial(f.url(""), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketHandler_RejectsBadFirstFrame(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(""), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"auth":{"token":"Bearer not-a-jwt"}}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ws.CloseUnauthorized, closeErr.Code)
	assert.Equal(t, 0, f.hub.ConnectionCount())
}

func TestWebSocketHandler_HandshakeTimeout(t *testing.T) {
	f := newWSFixture(t)

	conn, _, err := websocket.DefaultDialer.Dial(f.url(""), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rejected.WithLabelValues("missing_credential")))
}

func TestWebSocketHandler_OriginCheck(t *testing.T) {
	f := newWSFixture(t)
	_, token := f.signedIdentity(t, domain.RoleCustomer)

	header := stdhttp.Header{
		"Authorization": []string{"Bearer " + token},
		"Origin":        []string{"https://evil.example.net"},
	}
	_, resp, err := websocket.DefaultDialer.Dial(f.url(""), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, stdhttp.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://desk.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(f.url(""), header)
	require.NoError(t, err)
	conn.Close()
}
