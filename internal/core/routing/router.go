// Package routing computes which realtime rooms must observe a ticket event.
// Every function here is pure: the same inputs always produce the same
// sorted room set, and nothing is cached or persisted.
package routing

import (
	"sort"

	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
)

// TicketAudience returns the rooms that observe changes to ticket: the
// ticket room, the creator, the assignee when set, every privileged role
// and the staff room.
func TicketAudience(ticket *domain.Ticket) []domain.Room {
	if ticket == nil {
		return nil
	}

	rooms := []domain.Room{
		domain.TicketRoom(ticket.ID),
		domain.UserRoom(ticket.CreatorID),
		domain.StaffRoom(),
	}
	if ticket.AssigneeID != nil {
		rooms = append(rooms, domain.UserRoom(*ticket.AssigneeID))
	}
	for _, role := range domain.PrivilegedRoles() {
		rooms = append(rooms, domain.RoleRoom(role))
	}
	return normalize(rooms)
}

// ActivityAudience returns the rooms that observe an activity entry. An
// explicit snapshot on the entry wins; otherwise privileged roles and the
// ticket room are used.
func ActivityAudience(entry *domain.ActivityEntry) []domain.Room {
	if entry == nil {
		return nil
	}
	if len(entry.Audience) > 0 {
		return normalize(append([]domain.Room(nil), entry.Audience...))
	}

	rooms := []domain.Room{domain.TicketRoom(entry.TicketID)}
	for _, role := range domain.PrivilegedRoles() {
		rooms = append(rooms, domain.RoleRoom(role))
	}
	return normalize(rooms)
}

// Audience dispatches on the event payload.
func Audience(event domain.Event) []domain.Room {
	switch {
	case event.Ticket != nil:
		return TicketAudience(event.Ticket)
	case event.Activity != nil:
		return ActivityAudience(event.Activity)
	}
	return nil
}

// AssignmentSnapshot is the audience captured when a ticket changes hands:
// the current ticket audience plus the previous assignee, who would
// otherwise miss the entry that removed them.
func AssignmentSnapshot(ticket *domain.Ticket, previous *uuid.UUID) []domain.Room {
	rooms := TicketAudience(ticket)
	if previous != nil {
		rooms = normalize(append(rooms, domain.UserRoom(*previous)))
	}
	return rooms
}

func normalize(rooms []domain.Room) []domain.Room {
	out := rooms[:0]
	seen := make(map[domain.Room]struct{}, len(rooms))
	for _, r := range rooms {
		if r.IsZero() {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
