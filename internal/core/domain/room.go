package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// RoomKind tags the closed set of multicast room variants.
type RoomKind uint8

const (
	roomInvalid RoomKind = iota
	RoomTicket
	RoomUser
	RoomRole
	RoomStaff
)

func (k RoomKind) String() string {
	switch k {
	case RoomTicket:
		return "ticket"
	case RoomUser:
		return "user"
	case RoomRole:
		return "role"
	case RoomStaff:
		return "staff"
	default:
		return "invalid"
	}
}

// Room is an opaque multicast key. Rooms can only be built through the
// constructors below, so every value refers to a reachable audience.
// Room is comparable and safe to use as a map key.
type Room struct {
	kind RoomKind
	key  string
}

// TicketRoom is the room of everyone watching a single ticket.
func TicketRoom(ticketID int64) Room {
	return Room{kind: RoomTicket, key: strconv.FormatInt(ticketID, 10)}
}

// UserRoom is the personal room of one identity (all of its connections).
func UserRoom(userID uuid.UUID) Room {
	return Room{kind: RoomUser, key: userID.String()}
}

// RoleRoom is the room shared by every connection of the given role.
func RoleRoom(role Role) Room {
	return Room{kind: RoomRole, key: string(role)}
}

// StaffRoom reaches every privileged identity.
func StaffRoom() Room {
	return Room{kind: RoomStaff}
}

func (r Room) Kind() RoomKind { return r.kind }

// IsZero reports whether r was not built by a constructor.
func (r Room) IsZero() bool { return r.kind == roomInvalid }

func (r Room) String() string {
	if r.kind == RoomStaff {
		return "staff"
	}
	return r.kind.String() + ":" + r.key
}

// ParseRoom is the inverse of Room.String.
func ParseRoom(s string) (Room, error) {
	if s == "staff" {
		return StaffRoom(), nil
	}
	kind, key, ok := strings.Cut(s, ":")
	if !ok || key == "" {
		return Room{}, fmt.Errorf("parse room %q: missing key", s)
	}
	switch kind {
	case "ticket":
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			return Room{}, fmt.Errorf("parse room %q: invalid ticket id", s)
		}
		return TicketRoom(id), nil
	case "user":
		id, err := uuid.Parse(key)
		if err != nil {
			return Room{}, fmt.Errorf("parse room %q: %w", s, err)
		}
		return UserRoom(id), nil
	case "role":
		role, err := ParseRole(key)
		if err != nil {
			return Room{}, fmt.Errorf("parse room %q: %w", s, err)
		}
		return RoleRoom(role), nil
	}
	return Room{}, fmt.Errorf("parse room %q: unknown kind", s)
}

func (r Room) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return nil, fmt.Errorf("marshal room: zero value")
	}
	return []byte(r.String()), nil
}

func (r *Room) UnmarshalText(text []byte) error {
	parsed, err := ParseRoom(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
