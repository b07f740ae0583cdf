package domain

import (
	"github.com/google/uuid"

	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

// Role is the coarse authorization class of an identity.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// privilegedRoles lists the staff roles in a stable order.
var privilegedRoles = []Role{RoleAdmin, RoleAgent}

// PrivilegedRoles returns the staff roles that observe every ticket.
func PrivilegedRoles() []Role {
	out := make([]Role, len(privilegedRoles))
	copy(out, privilegedRoles)
	return out
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// IsPrivileged reports whether r is a staff role.
func (r Role) IsPrivileged() bool {
	for _, p := range privilegedRoles {
		if r == p {
			return true
		}
	}
	return false
}

// ParseRole converts a raw string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", apperrors.ErrInvalidRole
	}
	return r, nil
}

// Identity is the authenticated principal attached to a request or connection.
type Identity struct {
	ID   uuid.UUID
	Role Role
}
