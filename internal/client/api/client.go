// Package api is the HTTP client for the service desk API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/session"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

// Client-side failure classes.
var (
	// ErrAuthExpired means the server rejected the credential (401).
	ErrAuthExpired = errors.New("credential expired or rejected")
	// ErrUnavailable covers transport failures and 5xx answers.
	ErrUnavailable = errors.New("service unavailable")
)

const maxErrorBody = 4 << 10

// APIError is a non-2xx answer decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     map[string][]string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// User is the account returned by login and refresh.
type User struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// AuthResponse is the body of a successful login or refresh.
type AuthResponse struct {
	User   User           `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

// Session converts the response into a storable session.
func (r *AuthResponse) Session() (session.Session, error) {
	id, err := uuid.Parse(r.User.ID)
	if err != nil {
		return session.Session{}, fmt.Errorf("invalid user id in auth response: %w", err)
	}
	return session.Session{
		UserID:       id,
		Role:         domain.Role(r.User.Role),
		FullName:     r.User.FullName,
		Email:        r.User.Email,
		AccessToken:  r.Tokens.AccessToken,
		RefreshToken: r.Tokens.RefreshToken,
	}, nil
}

// Write is one queued mutation replayed through /sync/writes.
type Write struct {
	ID      uuid.UUID       `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// WriteResult is the server's acknowledgement of a write.
type WriteResult struct {
	ID        string                 `json:"id"`
	Duplicate bool                   `json:"duplicate"`
	Ticket    *domain.TicketSnapshot `json:"ticket,omitempty"`
}

type ticketPage struct {
	Data []domain.TicketSnapshot `json:"data"`
}

// Client talks to one API base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for baseURL (e.g. "http://localhost:8080").
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "api_client"),
	}
}

// Login exchanges email and password for a session. A mismatch yields
// ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if errors.Is(err, ErrAuthExpired) {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredentials, err)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh rotates the credential pair. A rejected refresh credential
// yields ErrAuthExpired.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{
		"refreshToken": refreshToken,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTicket fetches the authoritative state of one ticket.
func (c *Client) GetTicket(ctx context.Context, accessToken string, id int64) (*domain.TicketSnapshot, error) {
	var out domain.TicketSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/tickets/"+strconv.FormatInt(id, 10), accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTickets returns one page of tickets visible to the caller.
func (c *Client) ListTickets(ctx context.Context, accessToken string, limit, offset int) ([]domain.TicketSnapshot, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var out ticketPage
	if err := c.do(ctx, http.MethodGet, "/api/v1/tickets?"+q.Encode(), accessToken, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ApplyWrite submits a queued write. 4xx answers other than 401 wrap
// ErrSyncWriteRejected.
func (c *Client) ApplyWrite(ctx context.Context, accessToken string, w Write) (*WriteResult, error) {
	var out WriteResult
	err := c.do(ctx, http.MethodPost, "/api/v1/sync/writes", accessToken, w, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 &&
			apiErr.StatusCode != http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrSyncWriteRejected, err)
		}
		return nil, err
	}
	return &out, nil
}

// Live probes the liveness endpoint.
func (c *Client) Live(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health/live", "", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return nil
	}

	apiErr := decodeError(resp)
	c.logger.Debug("request failed",
		"method", method,
		"path", path,
		"status", apiErr.StatusCode,
		"code", apiErr.Code,
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrAuthExpired, apiErr)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w", ErrUnavailable, apiErr)
	}
	return apiErr
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var envelope struct {
		Error  string              `json:"error"`
		Code   string              `json:"code"`
		Fields map[string][]string `json:"fields"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		apiErr.Message = envelope.Error
		apiErr.Code = envelope.Code
		apiErr.Fields = envelope.Fields
	}
	return apiErr
}
