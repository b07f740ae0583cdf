package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	mw "github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/http/middleware"
	ws "github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/websocket"
	"github.com/qaiserfcc/helpDesk-sub001/internal/config"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/logging"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/metrics"
)

// WebSocketHandler authenticates and upgrades realtime connections
type WebSocketHandler struct {
	hub              *ws.Hub
	verifier         ports.TokenVerifier
	store            ports.IdentityStore
	upgrader         websocket.Upgrader
	clientCfg        ws.ClientConfig
	handshakeTimeout time.Duration
	metrics          *metrics.Realtime
	logger           *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *ws.Hub,
	verifier ports.TokenVerifier,
	store ports.IdentityStore,
	cfg *config.Config,
	m *metrics.Realtime,
	logger *slog.Logger,
) *WebSocketHandler {
	if m == nil {
		m = metrics.NewRealtime(nil)
	}

	handler := &WebSocketHandler{
		hub:      hub,
		verifier: verifier,
		store:    store,
		clientCfg: ws.ClientConfig{
			SendBuffer:     cfg.WebSocket.SendBuffer,
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongWait,
			PingInterval:   cfg.WebSocket.PingInterval,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		},
		handshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		metrics:          m,
		logger:           logger.With("handler", "websocket"),
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:   cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		CheckOrigin:      handler.makeOriginChecker(cfg),
	}

	return handler
}

// makeOriginChecker creates an origin checking function based on configuration
func (h *WebSocketHandler) makeOriginChecker(cfg *config.Config) func(r *http.Request) bool {
	allowedOrigins := cfg.WebSocket.AllowedOrigins
	development := cfg.IsDevelopment()

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		if development {
			h.logger.Debug("allowing websocket origin in development mode", "origin", origin)
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin", "origin", origin, "error", err)
			return false
		}

		originHost := parsedOrigin.Host
		for _, allowed := range allowedOrigins {
			// Support wildcard subdomains like "*.example.com"
			if strings.HasPrefix(allowed, "*.") {
				suffix := allowed[1:]
				if strings.HasSuffix(originHost, suffix) || originHost == allowed[2:] {
					return true
				}
			} else if originHost == allowed || origin == allowed {
				return true
			}
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
		)
		return false
	}
}

// ServeHTTP handles WebSocket connection requests. A credential on the
// upgrade request is checked before upgrading; otherwise the first frame
// must carry it within the handshake timeout.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var identity domain.Identity
	token, onRequest := ws.RequestCredential(r)
	if onRequest {
		var err error
		identity, err = h.authenticate(ctx, token)
		if err != nil {
			h.reject("invalid_credential", err)
			WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: apperrors.ErrTransportRejected.Error(),
				Code:  "UNAUTHORIZED",
			})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	if !onRequest {
		token, err := ws.ReadCredentialFrame(conn, h.handshakeTimeout)
		if err == nil {
			identity, err = h.authenticate(ctx, token)
		}
		if err != nil {
			reason := "invalid_credential"
			if errors.Is(err, apperrors.ErrAuthMissing) {
				reason = "missing_credential"
			}
			h.reject(reason, err)
			ws.Reject(conn, h.clientCfg.WriteWait, apperrors.ErrTransportRejected.Error())
			return
		}
	}

	connCtx := logging.WithConnID(ctx, uuid.NewString())
	connLogger := logging.LoggerFromContext(connCtx, h.logger).With("remote_addr", r.RemoteAddr)

	client := ws.NewClient(h.hub, conn, h.clientCfg, connLogger)
	client.Authenticate(identity)
	h.hub.Register(client)
	client.Start()
}

func (h *WebSocketHandler) authenticate(ctx context.Context, token string) (domain.Identity, error) {
	identity, err := mw.Authenticate(ctx, h.verifier, h.store, token)
	if err != nil {
		return domain.Identity{}, errors.Join(apperrors.ErrTransportRejected, err)
	}
	return identity, nil
}

func (h *WebSocketHandler) reject(reason string, err error) {
	h.metrics.Rejected.WithLabelValues(reason).Inc()
	h.logger.Warn("websocket handshake rejected", "reason", reason, "error", err)
}
