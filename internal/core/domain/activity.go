package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityVariant identifies which before/after fields an entry carries.
type ActivityVariant string

const (
	ActivityCreated       ActivityVariant = "created"
	ActivityStatusChanged ActivityVariant = "status_changed"
	ActivityAssigned      ActivityVariant = "assigned"
)

// ActivityEntry records one mutation of a ticket. Entries are immutable once
// emitted and exactly one is produced per mutation.
type ActivityEntry struct {
	ID       int64
	TicketID int64
	Variant  ActivityVariant
	ActorID  uuid.UUID

	// status_changed
	FromStatus *TicketStatus
	ToStatus   *TicketStatus

	// assigned
	FromAssignee *uuid.UUID
	ToAssignee   *uuid.UUID

	CreatedAt time.Time

	// Audience is an optional snapshot of the rooms that must see this
	// entry. When empty the router falls back to staff + ticket rooms.
	Audience []Room
}

// NewCreatedActivity builds the entry for a freshly created ticket.
func NewCreatedActivity(ticket *Ticket, actorID uuid.UUID) *ActivityEntry {
	status := ticket.Status
	return &ActivityEntry{
		TicketID:  ticket.ID,
		Variant:   ActivityCreated,
		ActorID:   actorID,
		ToStatus:  &status,
		CreatedAt: time.Now().UTC(),
	}
}

// NewStatusActivity builds the entry for a status transition.
func NewStatusActivity(ticketID int64, actorID uuid.UUID, from, to TicketStatus) *ActivityEntry {
	return &ActivityEntry{
		TicketID:   ticketID,
		Variant:    ActivityStatusChanged,
		ActorID:    actorID,
		FromStatus: &from,
		ToStatus:   &to,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewAssignedActivity builds the entry for an assignment change.
func NewAssignedActivity(ticketID int64, actorID uuid.UUID, from *uuid.UUID, to uuid.UUID) *ActivityEntry {
	var prev *uuid.UUID
	if from != nil {
		v := *from
		prev = &v
	}
	return &ActivityEntry{
		TicketID:     ticketID,
		Variant:      ActivityAssigned,
		ActorID:      actorID,
		FromAssignee: prev,
		ToAssignee:   &to,
		CreatedAt:    time.Now().UTC(),
	}
}
