package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
)

// ConnState is the lifecycle stage of a connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateActive
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Client-to-server message types.
const (
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessagePing        = "ping"
)

// Control events sent only to the requesting connection.
const (
	EventSubscribed   domain.EventName = "subscription:ok"
	EventSubscribeErr domain.EventName = "subscription:error"
	EventPong         domain.EventName = "pong"
)

const subscribeTimeout = 5 * time.Second

// ClientConfig holds per-connection limits and keepalive timings.
type ClientConfig struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// DefaultClientConfig returns the limits used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   54 * time.Second,
		MaxMessageSize: 4096,
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	cfg  ClientConfig

	identity domain.Identity
	state    atomic.Int32

	// send carries pre-encoded frames. It is never closed; done signals
	// the writer to stop instead.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	rooms map[domain.Room]struct{}

	logger *slog.Logger
}

// NewClient wraps an upgraded connection in the Connecting state.
func NewClient(hub *Hub, conn *websocket.Conn, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultClientConfig().SendBuffer
	}
	return &Client{
		hub:    hub,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
		rooms:  make(map[domain.Room]struct{}),
		logger: logger,
	}
}

// Authenticate binds the verified identity. It only succeeds once, from
// the Connecting state.
func (c *Client) Authenticate(identity domain.Identity) bool {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticated)) {
		return false
	}
	c.identity = identity
	c.logger = c.logger.With("user_id", identity.ID.String(), "role", string(identity.Role))
	return true
}

// State returns the connection's lifecycle stage.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Identity returns the authenticated identity.
func (c *Client) Identity() domain.Identity {
	return c.identity
}

// Rooms returns the rooms the connection belongs to in sorted order.
func (c *Client) Rooms() []domain.Room {
	c.mu.Lock()
	out := make([]domain.Room, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	c.mu.Unlock()

	sortRooms(out)
	return out
}

// Start runs the read and write pumps. The read pump unregisters the
// client when the peer goes away.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Close stops the writer and closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) activate() bool {
	return c.state.CompareAndSwap(int32(StateAuthenticated), int32(StateActive))
}

func (c *Client) deactivate() bool {
	prev := ConnState(c.state.Swap(int32(StateDisconnected)))
	c.Close()
	return prev == StateActive
}

func (c *Client) addRoom(r domain.Room) {
	c.mu.Lock()
	c.rooms[r] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) removeRoom(r domain.Room) {
	c.mu.Lock()
	delete(c.rooms, r)
	c.mu.Unlock()
}

func (c *Client) inRoom(r domain.Room) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[r]
	return ok
}

// enqueue queues a frame without blocking. It reports false when the
// buffer is full or the client has stopped.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) reply(name domain.EventName, data any) {
	frame, err := json.Marshal(Frame{Event: name, Data: data})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		c.handleIncomingMessage(message)
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type     string `json:"type"`
	TicketID int64  `json:"ticketId,omitempty"`
}

type subscriptionReply struct {
	TicketID int64  `json:"ticketId"`
	Error    string `json:"error,omitempty"`
}

func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case MessageSubscribe:
		c.handleSubscribe(msg.TicketID)
	case MessageUnsubscribe:
		c.hub.Leave(c, domain.TicketRoom(msg.TicketID))
	case MessagePing:
		c.reply(EventPong, struct{}{})
	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

// handleSubscribe joins a ticket room after checking the connection's
// identity may view the ticket.
func (c *Client) handleSubscribe(ticketID int64) {
	if ticketID <= 0 {
		c.reply(EventSubscribeErr, subscriptionReply{TicketID: ticketID, Error: "invalid ticket id"})
		return
	}
	if c.hub.tickets == nil {
		c.reply(EventSubscribeErr, subscriptionReply{TicketID: ticketID, Error: "subscriptions unavailable"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	if _, err := c.hub.tickets.GetTicket(ctx, ticketID, c.identity); err != nil {
		c.logger.Debug("ticket subscription refused", "ticket_id", ticketID, "error", err)
		c.reply(EventSubscribeErr, subscriptionReply{TicketID: ticketID, Error: "not permitted"})
		return
	}

	c.hub.Join(c, domain.TicketRoom(ticketID))
	c.reply(EventSubscribed, subscriptionReply{TicketID: ticketID})
}
