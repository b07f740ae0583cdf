package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	mw "github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/http/middleware"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

// CloseUnauthorized is the close code sent when a handshake credential is
// refused.
const CloseUnauthorized = 4401

// TokenQueryParam carries the credential for clients that cannot set
// headers on the upgrade request.
const TokenQueryParam = "auth.token"

// RequestCredential extracts a credential from the upgrade request, first
// from the Authorization header and then from the auth.token query
// parameter.
func RequestCredential(r *http.Request) (string, bool) {
	if token, ok := mw.BearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	return normalizeToken(r.URL.Query().Get(TokenQueryParam))
}

type handshakeFrame struct {
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

// ReadCredentialFrame waits up to timeout for the first frame and extracts
// {"auth":{"token":"..."}} from it.
func ReadCredentialFrame(conn *websocket.Conn, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrAuthMissing, err)
	}

	var frame handshakeFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", apperrors.ErrAuthMissing
	}

	token, ok := normalizeToken(frame.Auth.Token)
	if !ok {
		return "", apperrors.ErrAuthMissing
	}

	// The read pump sets its own deadline once the client is active.
	return token, conn.SetReadDeadline(time.Time{})
}

// Reject closes conn with CloseUnauthorized.
func Reject(conn *websocket.Conn, writeWait time.Duration, reason string) {
	msg := websocket.FormatCloseMessage(CloseUnauthorized, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

// normalizeToken accepts "Bearer <token>" or a bare token.
func normalizeToken(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if token, ok := mw.BearerToken(raw); ok {
		return token, true
	}
	if strings.Contains(raw, " ") {
		return "", false
	}
	return raw, true
}
