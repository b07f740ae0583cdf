package domain

import (
	"strconv"
	"time"
)

// TicketSnapshot matches the API response shape for tickets.
type TicketSnapshot struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	IssueType   string  `json:"issueType"`
	CreatorID   string  `json:"creatorId"`
	AssigneeID  *string `json:"assigneeId"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   *string `json:"updatedAt"`
}

// ActivitySnapshot matches the API response shape for activity entries.
type ActivitySnapshot struct {
	ID           string  `json:"id"`
	TicketID     string  `json:"ticketId"`
	Variant      string  `json:"variant"`
	ActorID      string  `json:"actorId"`
	FromStatus   *string `json:"fromStatus,omitempty"`
	ToStatus     *string `json:"toStatus,omitempty"`
	FromAssignee *string `json:"fromAssigneeId,omitempty"`
	ToAssignee   *string `json:"toAssigneeId,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}

// TicketEventPayload is the data of tickets:created and tickets:updated.
type TicketEventPayload struct {
	Ticket TicketSnapshot `json:"ticket"`
}

// ActivityEventPayload is the data of tickets:activity.
type ActivityEventPayload struct {
	TicketID string           `json:"ticketId"`
	Activity ActivitySnapshot `json:"activity"`
}

// NewTicketSnapshot builds a ticket snapshot from a domain ticket.
func NewTicketSnapshot(ticket *Ticket) TicketSnapshot {
	var assigneeID *string
	if ticket.AssigneeID != nil {
		value := ticket.AssigneeID.String()
		assigneeID = &value
	}

	var updatedAt *string
	if ticket.UpdatedAt != nil {
		value := ticket.UpdatedAt.UTC().Format(time.RFC3339)
		updatedAt = &value
	}

	return TicketSnapshot{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      string(ticket.Status),
		Priority:    string(ticket.Priority),
		IssueType:   string(ticket.IssueType),
		CreatorID:   ticket.CreatorID.String(),
		AssigneeID:  assigneeID,
		CreatedAt:   ticket.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   updatedAt,
	}
}

// NewActivitySnapshot builds an activity snapshot from a domain entry.
func NewActivitySnapshot(entry *ActivityEntry) ActivitySnapshot {
	snap := ActivitySnapshot{
		ID:        strconv.FormatInt(entry.ID, 10),
		TicketID:  strconv.FormatInt(entry.TicketID, 10),
		Variant:   string(entry.Variant),
		ActorID:   entry.ActorID.String(),
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
	}
	if entry.FromStatus != nil {
		v := string(*entry.FromStatus)
		snap.FromStatus = &v
	}
	if entry.ToStatus != nil {
		v := string(*entry.ToStatus)
		snap.ToStatus = &v
	}
	if entry.FromAssignee != nil {
		v := entry.FromAssignee.String()
		snap.FromAssignee = &v
	}
	if entry.ToAssignee != nil {
		v := entry.ToAssignee.String()
		snap.ToAssignee = &v
	}
	return snap
}

// Payload renders the event data sent to clients.
func (e Event) Payload() any {
	switch {
	case e.Ticket != nil:
		return TicketEventPayload{Ticket: NewTicketSnapshot(e.Ticket)}
	case e.Activity != nil:
		return ActivityEventPayload{
			TicketID: strconv.FormatInt(e.Activity.TicketID, 10),
			Activity: NewActivitySnapshot(e.Activity),
		}
	}
	return nil
}
