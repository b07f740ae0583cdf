package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/routing"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/metrics"
)

const defaultPublishBuffer = 1024

// Frame is the wire envelope of every server-to-client message.
type Frame struct {
	Event domain.EventName `json:"event"`
	Data  any              `json:"data"`
}

// TicketAuthorizer decides whether a viewer may watch a ticket room.
type TicketAuthorizer interface {
	GetTicket(ctx context.Context, ticketID int64, viewer domain.Identity) (*domain.Ticket, error)
}

// room is one multicast group. A room removed from the hub is marked dead
// so a concurrent Join retries against a fresh entry.
type room struct {
	mu      sync.RWMutex
	members map[*Client]struct{}
	dead    bool
}

// Hub tracks room membership and fans routed events out to connections.
// Each room carries its own lock so dispatch never serializes on a
// hub-wide mutex.
type Hub struct {
	rooms   sync.Map // domain.Room -> *room
	events  chan domain.Event
	tickets TicketAuthorizer

	connections atomic.Int64
	roomCount   atomic.Int64

	metrics *metrics.Realtime
	logger  *slog.Logger
}

var _ ports.EventPublisher = (*Hub)(nil)

// HubConfig sizes the hub's publish queue.
type HubConfig struct {
	PublishBuffer int
}

// NewHub creates a new hub. tickets may be nil, in which case ticket room
// subscriptions are refused.
func NewHub(cfg HubConfig, tickets TicketAuthorizer, m *metrics.Realtime, logger *slog.Logger) *Hub {
	if cfg.PublishBuffer <= 0 {
		cfg.PublishBuffer = defaultPublishBuffer
	}
	if m == nil {
		m = metrics.NewRealtime(nil)
	}
	return &Hub{
		events:  make(chan domain.Event, cfg.PublishBuffer),
		tickets: tickets,
		metrics: m,
		logger:  logger.With("component", "websocket_hub"),
	}
}

// Publish queues an event for dispatch. It never blocks: when the queue is
// full the event is dropped and logged.
func (h *Hub) Publish(event domain.Event) {
	select {
	case h.events <- event:
	default:
		h.metrics.Dropped.WithLabelValues(metrics.DropPublishBufferFull).Inc()
		h.logger.Warn("publish buffer full, dropping event",
			"event", event.Name,
			"ticket_id", event.TicketID(),
		)
	}
}

// Run dispatches queued events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-h.events:
			h.Dispatch(event)
		}
	}
}

// Dispatch routes event once and queues one frame per connection in the
// union of its rooms. It returns the number of connections reached.
func (h *Hub) Dispatch(event domain.Event) int {
	rooms := routing.Audience(event)
	if len(rooms) == 0 {
		return 0
	}

	frame, err := json.Marshal(Frame{Event: event.Name, Data: event.Payload()})
	if err != nil {
		h.metrics.Dropped.WithLabelValues(metrics.DropEncodeFailed).Inc()
		h.logger.Error("failed to encode event", "event", event.Name, "error", err)
		return 0
	}

	targets := make(map[*Client]struct{})
	for _, r := range rooms {
		v, ok := h.rooms.Load(r)
		if !ok {
			continue
		}
		rm := v.(*room)
		rm.mu.RLock()
		for c := range rm.members {
			targets[c] = struct{}{}
		}
		rm.mu.RUnlock()
	}

	h.metrics.Dispatched.Inc()

	delivered := 0
	for c := range targets {
		if c.enqueue(frame) {
			delivered++
			continue
		}
		h.metrics.Dropped.WithLabelValues(metrics.DropClientBufferFull).Inc()
		c.logger.Warn("send buffer full, dropping event", "event", event.Name)
	}
	h.metrics.Deliveries.Add(float64(delivered))

	h.logger.Debug("event dispatched",
		"event", event.Name,
		"ticket_id", event.TicketID(),
		"rooms", len(rooms),
		"connections", delivered,
	)
	return delivered
}

// Register activates an authenticated connection and joins its default
// rooms: the personal room always, the role and staff rooms for staff.
func (h *Hub) Register(c *Client) {
	if !c.activate() {
		return
	}

	identity := c.Identity()
	h.Join(c, domain.UserRoom(identity.ID))
	if identity.Role.IsPrivileged() {
		h.Join(c, domain.RoleRoom(identity.Role))
		h.Join(c, domain.StaffRoom())
	}

	h.metrics.Connections.Set(float64(h.connections.Add(1)))
	c.logger.Info("client registered", "rooms", len(c.Rooms()))
}

// Unregister removes a connection from every room and stops its writer.
// It is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	wasActive := c.deactivate()

	for _, r := range c.Rooms() {
		h.Leave(c, r)
	}

	if wasActive {
		h.metrics.Connections.Set(float64(h.connections.Add(-1)))
		c.logger.Info("client unregistered")
	}
}

// Join adds c to r.
func (h *Hub) Join(c *Client, r domain.Room) {
	for {
		v, loaded := h.rooms.LoadOrStore(r, &room{members: make(map[*Client]struct{})})
		rm := v.(*room)

		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}
		if !loaded {
			h.metrics.Rooms.Set(float64(h.roomCount.Add(1)))
		}
		rm.members[c] = struct{}{}
		rm.mu.Unlock()

		c.addRoom(r)
		return
	}
}

// Leave removes c from r, dropping the room once it is empty.
func (h *Hub) Leave(c *Client, r domain.Room) {
	c.removeRoom(r)

	v, ok := h.rooms.Load(r)
	if !ok {
		return
	}
	rm := v.(*room)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	delete(rm.members, c)
	if len(rm.members) == 0 && !rm.dead {
		rm.dead = true
		h.rooms.CompareAndDelete(r, rm)
		h.metrics.Rooms.Set(float64(h.roomCount.Add(-1)))
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	return int(h.connections.Load())
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	return int(h.roomCount.Load())
}

// Members returns how many connections are in r.
func (h *Hub) Members(r domain.Room) int {
	v, ok := h.rooms.Load(r)
	if !ok {
		return 0
	}
	rm := v.(*room)
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.members)
}

func sortRooms(rooms []domain.Room) {
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].String() < rooms[j].String() })
}
