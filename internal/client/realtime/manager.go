// Package realtime keeps the client's websocket to the event hub.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

const (
	writeWait         = 5 * time.Second
	defaultSubBuffer  = 64
	handshakeTimeout  = 10 * time.Second
	closeUnauthorized = 4401
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("realtime manager closed")

// Event is one server-to-client message. Data is left raw; events are
// hints to re-fetch, not state.
type Event struct {
	Name     string
	Data     json.RawMessage
	TicketID int64
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type controlMessage struct {
	Type     string `json:"type"`
	TicketID int64  `json:"ticketId"`
}

// connection is one dialled socket and its reader.
type connection struct {
	ws    *websocket.Conn
	token string
	done  chan struct{}
}

// Manager owns at most one connection at a time and fans incoming events
// out to every subscriber.
type Manager struct {
	url    string
	dialer *websocket.Dialer
	buffer int
	logger *slog.Logger

	mu      sync.Mutex
	conn    *connection
	tickets map[int64]struct{}
	closed  bool

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int

	wg sync.WaitGroup
}

// NewManager creates a manager for the hub at wsURL
// (e.g. "ws://localhost:8080/api/v1/ws").
func NewManager(wsURL string, logger *slog.Logger) *Manager {
	return &Manager{
		url:     wsURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		buffer:  defaultSubBuffer,
		logger:  logger.With("component", "realtime_manager"),
		tickets: make(map[int64]struct{}),
		subs:    make(map[int]chan Event),
	}
}

// Connect opens a connection authenticated with token. Calling it again
// with the token of the live connection does nothing; a different token
// replaces the connection.
func (m *Manager) Connect(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.conn != nil && m.conn.token == token {
		return nil
	}
	m.teardownLocked()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := m.dialer.DialContext(ctx, m.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", apperrors.ErrTransportRejected, err)
		}
		return fmt.Errorf("dial %s: %w", m.url, err)
	}

	c := &connection{ws: ws, token: token, done: make(chan struct{})}
	m.conn = c

	m.wg.Add(1)
	go m.readLoop(c)

	for id := range m.tickets {
		if err := m.sendLocked(controlMessage{Type: "subscribe", TicketID: id}); err != nil {
			m.logger.Warn("resubscribe failed", "ticket_id", id, "error", err)
		}
	}

	m.logger.Info("realtime connected")
	return nil
}

// Connected reports whether a connection is live.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Disconnect closes the live connection, if any, and waits for its
// reader to stop.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

func (m *Manager) teardownLocked() {
	c := m.conn
	if c == nil {
		return
	}
	m.conn = nil

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.ws.Close()
	<-c.done
}

// SubscribeTicket joins the ticket's room now and after every reconnect.
func (m *Manager) SubscribeTicket(ticketID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tickets[ticketID] = struct{}{}
	if m.conn == nil {
		return nil
	}
	return m.sendLocked(controlMessage{Type: "subscribe", TicketID: ticketID})
}

// UnsubscribeTicket leaves the ticket's room.
func (m *Manager) UnsubscribeTicket(ticketID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tickets, ticketID)
	if m.conn == nil {
		return nil
	}
	return m.sendLocked(controlMessage{Type: "unsubscribe", TicketID: ticketID})
}

func (m *Manager) sendLocked(msg controlMessage) error {
	if err := m.conn.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return m.conn.ws.WriteJSON(msg)
}

// Subscribe returns a stream of every event received from now on and a
// func that ends the subscription. Events are dropped for a subscriber
// whose buffer is full.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	ch := make(chan Event, m.buffer)
	if m.subs == nil {
		close(ch)
		return ch, func() {}
	}

	id := m.nextID
	m.nextID++
	m.subs[id] = ch

	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

func (m *Manager) broadcast(ev Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Warn("subscriber buffer full, event dropped", "subscriber", id, "event", ev.Name)
		}
	}
}

func (m *Manager) readLoop(c *connection) {
	defer m.wg.Done()

	err := m.read(c)
	close(c.done)

	m.mu.Lock()
	dropped := m.conn == c
	if dropped {
		m.conn = nil
	}
	m.mu.Unlock()

	if !dropped {
		return
	}
	if websocket.IsCloseError(err, closeUnauthorized) {
		m.logger.Warn("realtime connection rejected", "error", err)
		return
	}
	m.logger.Warn("realtime connection lost", "error", err)
}

func (m *Manager) read(c *connection) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			m.logger.Debug("ignoring malformed frame")
			continue
		}
		m.broadcast(Event{Name: f.Event, Data: f.Data, TicketID: ticketIDOf(f.Data)})
	}
}

// ticketIDOf finds the ticket an event concerns: data.ticket.id for
// ticket events, data.ticketId for activity and subscription replies.
func ticketIDOf(data json.RawMessage) int64 {
	var probe struct {
		Ticket *struct {
			ID int64 `json:"id"`
		} `json:"ticket"`
		TicketID json.RawMessage `json:"ticketId"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0
	}
	if probe.Ticket != nil {
		return probe.Ticket.ID
	}
	if len(probe.TicketID) == 0 {
		return 0
	}

	var n int64
	if json.Unmarshal(probe.TicketID, &n) == nil {
		return n
	}
	var s string
	if json.Unmarshal(probe.TicketID, &s) == nil {
		n, _ = strconv.ParseInt(s, 10, 64)
	}
	return n
}

// Close disconnects, ends every subscription and waits for the reader.
// The manager cannot be reused.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.teardownLocked()
	m.mu.Unlock()

	m.wg.Wait()

	m.subMu.Lock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	m.subs = nil
	m.subMu.Unlock()
}
