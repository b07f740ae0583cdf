package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
)

// UserRepository is the identity store.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// ListTicketsRepoParams filters a ticket listing. A nil CreatorID lists every
// ticket.
type ListTicketsRepoParams struct {
	CreatorID *uuid.UUID
	Status    *domain.TicketStatus
	Limit     int
	Offset    int
}

// TicketRepository persists tickets.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetForUpdate loads a ticket and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	List(ctx context.Context, params ListTicketsRepoParams) ([]*domain.Ticket, error)
}

// ActivityRepository persists the per-ticket activity log.
type ActivityRepository interface {
	Create(ctx context.Context, entry *domain.ActivityEntry) (*domain.ActivityEntry, error)
	ListByTicketID(ctx context.Context, ticketID int64, afterID int64, limit int) ([]*domain.ActivityEntry, error)
}

// AppliedWriteRepository remembers which client write ids were applied.
type AppliedWriteRepository interface {
	// Record stores id and reports whether it was new. It must run inside
	// the transaction that applies the write.
	Record(ctx context.Context, id uuid.UUID, kind string, actorID uuid.UUID) (bool, error)
}
