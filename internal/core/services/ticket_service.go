package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/routing"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// TicketService implements business logic for ticket management. Every
// mutation writes the ticket and exactly one activity entry in a single
// transaction and publishes realtime events only after commit.
type TicketService struct {
	ticketRepo   ports.TicketRepository
	activityRepo ports.ActivityRepository
	userRepo     ports.UserRepository
	txManager    ports.TransactionManager
	notifier     ports.Notifier
	publisher    ports.EventPublisher
	logger       *slog.Logger
	wg           sync.WaitGroup
}

var _ ports.TicketService = (*TicketService)(nil)

// NewTicketService creates a new ticket service
func NewTicketService(
	ticketRepo ports.TicketRepository,
	activityRepo ports.ActivityRepository,
	userRepo ports.UserRepository,
	txManager ports.TransactionManager,
	notifier ports.Notifier,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) *TicketService {
	return &TicketService{
		ticketRepo:   ticketRepo,
		activityRepo: activityRepo,
		userRepo:     userRepo,
		txManager:    txManager,
		notifier:     notifier,
		publisher:    publisher,
		logger:       logger.With("component", "ticket_service"),
	}
}

// mutation is the committed result of a ticket change plus the events that
// describe it.
type mutation struct {
	ticket *domain.Ticket
	events []domain.Event
	notify *ports.NotificationParams
}

// CreateTicket handles the use case for submitting a new ticket
func (s *TicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	return s.run(ctx, func(ctx context.Context) (*mutation, error) {
		return s.createTicket(ctx, params)
	})
}

// UpdateStatus changes a ticket's status with business rule enforcement
func (s *TicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	return s.run(ctx, func(ctx context.Context) (*mutation, error) {
		return s.updateStatus(ctx, params)
	})
}

// AssignTicket assigns a ticket to an agent or admin
func (s *TicketService) AssignTicket(ctx context.Context, params ports.AssignTicketParams) (*domain.Ticket, error) {
	return s.run(ctx, func(ctx context.Context) (*mutation, error) {
		return s.assignTicket(ctx, params)
	})
}

// GetTicket retrieves a ticket visible to viewer
func (s *TicketService) GetTicket(ctx context.Context, ticketID int64, viewer domain.Identity) (*domain.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if !canView(ticket, viewer) {
		return nil, apperrors.ErrForbidden
	}

	return ticket, nil
}

// ListTickets returns every ticket to staff and only their own to customers
func (s *TicketService) ListTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, apperrors.ErrInvalidStatus
	}

	repoParams := ports.ListTicketsRepoParams{
		Status: params.Status,
		Limit:  clampLimit(params.Limit),
		Offset: max(params.Offset, 0),
	}

	if !params.Viewer.Role.IsPrivileged() {
		viewerID := params.Viewer.ID
		repoParams.CreatorID = &viewerID
	}

	return s.ticketRepo.List(ctx, repoParams)
}

// ListActivity returns the activity log of a ticket the viewer can see
func (s *TicketService) ListActivity(ctx context.Context, params ports.ListActivityParams) ([]*domain.ActivityEntry, error) {
	if _, err := s.GetTicket(ctx, params.TicketID, params.Viewer); err != nil {
		return nil, err
	}

	return s.activityRepo.ListByTicketID(ctx, params.TicketID, params.AfterID, clampLimit(params.Limit))
}

// run executes op in a transaction and, once committed, publishes the
// resulting events and notification.
func (s *TicketService) run(ctx context.Context, op func(ctx context.Context) (*mutation, error)) (*domain.Ticket, error) {
	var m *mutation
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		m, err = op(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.commit(m)
	return m.ticket, nil
}

// commit fans out the side effects of a mutation. It never blocks on the
// realtime layer.
func (s *TicketService) commit(m *mutation) {
	for _, event := range m.events {
		s.publisher.Publish(event)
	}
	if m.notify != nil {
		s.notifyAsync(*m.notify)
	}
}

func (s *TicketService) createTicket(ctx context.Context, params ports.CreateTicketParams) (*mutation, error) {
	ticket, err := domain.NewTicket(domain.TicketParams{
		Title:       params.Title,
		Description: params.Description,
		Priority:    params.Priority,
		IssueType:   params.IssueType,
		CreatorID:   params.Actor.ID,
	})
	if err != nil {
		return nil, err
	}

	created, err := s.ticketRepo.Create(ctx, ticket)
	if err != nil {
		return nil, err
	}

	entry, err := s.activityRepo.Create(ctx, domain.NewCreatedActivity(created, params.Actor.ID))
	if err != nil {
		return nil, fmt.Errorf("record created activity: %w", err)
	}

	return &mutation{
		ticket: created,
		events: []domain.Event{
			domain.NewTicketCreatedEvent(created),
			domain.NewActivityEvent(entry),
		},
	}, nil
}

func (s *TicketService) updateStatus(ctx context.Context, params ports.UpdateStatusParams) (*mutation, error) {
	if !params.Status.IsValid() {
		return nil, apperrors.ErrInvalidStatus
	}

	ticket, err := s.ticketRepo.GetForUpdate(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}

	if !canChangeStatus(ticket, params.Actor, params.Status) {
		return nil, apperrors.ErrForbidden
	}

	from := ticket.Status
	if err := ticket.UpdateStatus(params.Status); err != nil {
		return nil, err
	}

	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, err
	}

	entry, err := s.activityRepo.Create(ctx, domain.NewStatusActivity(updated.ID, params.Actor.ID, from, updated.Status))
	if err != nil {
		return nil, fmt.Errorf("record status activity: %w", err)
	}

	m := &mutation{
		ticket: updated,
		events: []domain.Event{
			domain.NewTicketUpdatedEvent(updated),
			domain.NewActivityEvent(entry),
		},
	}
	if updated.CreatorID != params.Actor.ID {
		m.notify = &ports.NotificationParams{
			RecipientUserID: updated.CreatorID,
			Subject:         fmt.Sprintf("Your ticket status has been updated: #%d", updated.ID),
			Message:         fmt.Sprintf("The status of your ticket '%s' was changed to %s.", updated.Title, updated.Status),
			TicketID:        updated.ID,
		}
	}
	return m, nil
}

func (s *TicketService) assignTicket(ctx context.Context, params ports.AssignTicketParams) (*mutation, error) {
	if !params.Actor.Role.IsPrivileged() {
		return nil, apperrors.ErrForbidden
	}

	assignee, err := s.userRepo.GetByID(ctx, params.AssigneeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidAssignee
		}
		return nil, err
	}
	if !assignee.IsActive || !assignee.Role.IsPrivileged() {
		return nil, apperrors.ErrInvalidAssignee
	}

	ticket, err := s.ticketRepo.GetForUpdate(ctx, params.TicketID)
	if err != nil {
		return nil, err
	}

	var previous *uuid.UUID
	if ticket.AssigneeID != nil {
		prev := *ticket.AssigneeID
		previous = &prev
	}

	if err := ticket.Assign(params.AssigneeID); err != nil {
		return nil, err
	}

	updated, err := s.ticketRepo.Update(ctx, ticket)
	if err != nil {
		return nil, err
	}

	activity := domain.NewAssignedActivity(updated.ID, params.Actor.ID, previous, params.AssigneeID)
	activity.Audience = routing.AssignmentSnapshot(updated, previous)

	entry, err := s.activityRepo.Create(ctx, activity)
	if err != nil {
		return nil, fmt.Errorf("record assignment activity: %w", err)
	}

	return &mutation{
		ticket: updated,
		events: []domain.Event{
			domain.NewTicketUpdatedEvent(updated),
			domain.NewActivityEvent(entry),
		},
		notify: &ports.NotificationParams{
			RecipientUserID: params.AssigneeID,
			Subject:         fmt.Sprintf("Ticket #%d has been assigned to you", updated.ID),
			Message:         fmt.Sprintf("You are now the assignee of '%s'.", updated.Title),
			TicketID:        updated.ID,
		},
	}, nil
}

// notifyAsync sends a notification without holding up the request
func (s *TicketService) notifyAsync(params ports.NotificationParams) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Use background context since the HTTP request may be done
		s.notifier.Notify(context.Background(), params)
	}()
}

// Shutdown waits for in-flight notifications.
func (s *TicketService) Shutdown() {
	s.wg.Wait()
}

func canView(ticket *domain.Ticket, viewer domain.Identity) bool {
	return viewer.Role.IsPrivileged() || ticket.IsOwnedBy(viewer.ID) || ticket.IsAssignedTo(viewer.ID)
}

// canChangeStatus lets staff drive the whole lifecycle. Creators may only
// close their own ticket.
func canChangeStatus(ticket *domain.Ticket, actor domain.Identity, to domain.TicketStatus) bool {
	if actor.Role.IsPrivileged() {
		return true
	}
	return ticket.IsOwnedBy(actor.ID) && to == domain.StatusClosed
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
