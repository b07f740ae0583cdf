package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
)

// AuthResult is returned by a successful login or refresh.
type AuthResult struct {
	User   *domain.User
	Tokens auth.TokenPair
}

// AuthService defines the port for authentication business logic.
type AuthService interface {
	Register(ctx context.Context, fullName, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
}

// IdentityStore resolves the subject of a verified credential. It returns
// ErrUserNotFound when the identity no longer exists or is inactive.
type IdentityStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (domain.Identity, error)
}

// TokenVerifier checks a credential of the requested kind.
type TokenVerifier interface {
	Verify(token string, kind auth.Kind) (*auth.Claims, error)
}

// TokenIssuer signs credential pairs.
type TokenIssuer interface {
	TokenVerifier
	IssuePair(identity domain.Identity) (auth.TokenPair, error)
	RemainingLifetime(claims *auth.Claims) time.Duration
}

// RefreshLedger makes every refresh credential single use.
type RefreshLedger interface {
	// Consume marks jti used and reports whether this call was the first.
	Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error)
}

// CreateTicketParams defines the required input for creating a new ticket.
type CreateTicketParams struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	IssueType   domain.IssueType
	Actor       domain.Identity
}

// UpdateStatusParams defines the input for changing a ticket's status.
type UpdateStatusParams struct {
	TicketID int64
	Status   domain.TicketStatus
	Actor    domain.Identity
}

// AssignTicketParams defines the input for assigning a ticket.
type AssignTicketParams struct {
	TicketID   int64
	AssigneeID uuid.UUID
	Actor      domain.Identity
}

// ListTicketsParams defines the input for listing tickets.
type ListTicketsParams struct {
	Viewer domain.Identity
	Status *domain.TicketStatus
	Limit  int
	Offset int
}

// ListActivityParams defines the input for reading a ticket's activity.
type ListActivityParams struct {
	TicketID int64
	Viewer   domain.Identity
	AfterID  int64
	Limit    int
}

// NotificationParams defines the input for sending a notification.
type NotificationParams struct {
	RecipientUserID uuid.UUID
	Subject         string
	Message         string
	TicketID        int64
}

// TicketService defines the core business operations for managing tickets.
type TicketService interface {
	CreateTicket(ctx context.Context, params CreateTicketParams) (*domain.Ticket, error)
	GetTicket(ctx context.Context, ticketID int64, viewer domain.Identity) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*domain.Ticket, error)
	AssignTicket(ctx context.Context, params AssignTicketParams) (*domain.Ticket, error)
	ListTickets(ctx context.Context, params ListTicketsParams) ([]*domain.Ticket, error)
	ListActivity(ctx context.Context, params ListActivityParams) ([]*domain.ActivityEntry, error)
	Shutdown()
}

// Write kinds accepted by the write-apply endpoint.
const (
	WriteCreateTicket = "ticket.create"
	WriteUpdateStatus = "ticket.status"
	WriteAssignTicket = "ticket.assign"
)

// ApplyWriteParams is one offline write replayed by a client.
type ApplyWriteParams struct {
	ID      uuid.UUID
	Kind    string
	Payload json.RawMessage
	Actor   domain.Identity
}

// ApplyWriteResult reports what happened to a replayed write.
type ApplyWriteResult struct {
	ID        uuid.UUID
	Duplicate bool
	Ticket    *domain.Ticket
}

// WriteApplyService applies queued client writes exactly once.
type WriteApplyService interface {
	Apply(ctx context.Context, params ApplyWriteParams) (*ApplyWriteResult, error)
}

// EventPublisher hands an event to the realtime layer. Publish must not
// block the caller; events that cannot be accepted are dropped.
type EventPublisher interface {
	Publish(event domain.Event)
}

// Notifier defines the port for sending asynchronous notifications.
type Notifier interface {
	Notify(ctx context.Context, params NotificationParams)
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
