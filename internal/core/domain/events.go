package domain

// EventName is the wire name of a server-to-client realtime event.
type EventName string

const (
	EventTicketCreated  EventName = "tickets:created"
	EventTicketUpdated  EventName = "tickets:updated"
	EventTicketActivity EventName = "tickets:activity"
)

// Event is a routed realtime notification. Exactly one of Ticket or
// Activity is set, matching Name. Events are invalidation hints: receivers
// re-fetch authoritative state instead of trusting the embedded fields.
type Event struct {
	Name     EventName
	Ticket   *Ticket        `json:",omitempty"`
	Activity *ActivityEntry `json:",omitempty"`
}

// NewTicketCreatedEvent announces a new ticket.
func NewTicketCreatedEvent(ticket *Ticket) Event {
	return Event{Name: EventTicketCreated, Ticket: ticket}
}

// NewTicketUpdatedEvent announces a change to an existing ticket.
func NewTicketUpdatedEvent(ticket *Ticket) Event {
	return Event{Name: EventTicketUpdated, Ticket: ticket}
}

// NewActivityEvent announces a new activity entry.
func NewActivityEvent(entry *ActivityEntry) Event {
	return Event{Name: EventTicketActivity, Activity: entry}
}

// TicketID returns the ticket the event concerns, or 0.
func (e Event) TicketID() int64 {
	switch {
	case e.Ticket != nil:
		return e.Ticket.ID
	case e.Activity != nil:
		return e.Activity.TicketID
	}
	return 0
}
