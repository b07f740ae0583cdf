package main

import (
	"context"
	"sync/atomic"

	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/websocket"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

// lateAuthorizer breaks the construction cycle between the hub and the
// ticket service. Until bound it refuses every subscription.
type lateAuthorizer struct {
	target atomic.Pointer[websocket.TicketAuthorizer]
}

func (a *lateAuthorizer) bind(t websocket.TicketAuthorizer) {
	a.target.Store(&t)
}

func (a *lateAuthorizer) GetTicket(ctx context.Context, ticketID int64, viewer domain.Identity) (*domain.Ticket, error) {
	t := a.target.Load()
	if t == nil {
		return nil, apperrors.ErrForbidden
	}
	return (*t).GetTicket(ctx, ticketID, viewer)
}
