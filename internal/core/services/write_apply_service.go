package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

// CreateTicketWrite is the payload of a queued ticket.create write.
type CreateTicketWrite struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	IssueType   string `json:"issueType"`
}

// UpdateStatusWrite is the payload of a queued ticket.status write.
type UpdateStatusWrite struct {
	TicketID int64  `json:"ticketId"`
	Status   string `json:"status"`
}

// AssignTicketWrite is the payload of a queued ticket.assign write.
type AssignTicketWrite struct {
	TicketID   int64     `json:"ticketId"`
	AssigneeID uuid.UUID `json:"assigneeId"`
}

// WriteApplyService replays offline writes through the same mutation
// boundary as online requests. A write id is applied at most once: the id
// is recorded in the same transaction as the mutation, so a replay after a
// lost response is acknowledged without touching the ticket again.
type WriteApplyService struct {
	tickets   *TicketService
	applied   ports.AppliedWriteRepository
	txManager ports.TransactionManager
	logger    *slog.Logger
}

var _ ports.WriteApplyService = (*WriteApplyService)(nil)

// NewWriteApplyService creates a new write-apply service
func NewWriteApplyService(
	tickets *TicketService,
	applied ports.AppliedWriteRepository,
	txManager ports.TransactionManager,
	logger *slog.Logger,
) *WriteApplyService {
	return &WriteApplyService{
		tickets:   tickets,
		applied:   applied,
		txManager: txManager,
		logger:    logger.With("component", "write_apply_service"),
	}
}

// Apply executes one queued write.
func (s *WriteApplyService) Apply(ctx context.Context, params ports.ApplyWriteParams) (*ports.ApplyWriteResult, error) {
	if params.ID == uuid.Nil {
		return nil, apperrors.ErrWriteIDRequired
	}

	op, err := s.decode(params)
	if err != nil {
		return nil, err
	}

	result := &ports.ApplyWriteResult{ID: params.ID}
	var m *mutation

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		first, err := s.applied.Record(ctx, params.ID, params.Kind, params.Actor.ID)
		if err != nil {
			return fmt.Errorf("record applied write: %w", err)
		}
		if !first {
			result.Duplicate = true
			return nil
		}

		m, err = op(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		s.logger.InfoContext(ctx, "queued write already applied", "write_id", params.ID, "kind", params.Kind)
		return result, nil
	}

	s.tickets.commit(m)
	result.Ticket = m.ticket
	return result, nil
}

func (s *WriteApplyService) decode(params ports.ApplyWriteParams) (func(ctx context.Context) (*mutation, error), error) {
	switch params.Kind {
	case ports.WriteCreateTicket:
		var w CreateTicketWrite
		if err := strictUnmarshal(params.Payload, &w); err != nil {
			return nil, err
		}
		return func(ctx context.Context) (*mutation, error) {
			return s.tickets.createTicket(ctx, ports.CreateTicketParams{
				Title:       w.Title,
				Description: w.Description,
				Priority:    domain.TicketPriority(w.Priority),
				IssueType:   domain.IssueType(w.IssueType),
				Actor:       params.Actor,
			})
		}, nil

	case ports.WriteUpdateStatus:
		var w UpdateStatusWrite
		if err := strictUnmarshal(params.Payload, &w); err != nil {
			return nil, err
		}
		if w.TicketID <= 0 {
			return nil, apperrors.ErrMalformedWrite
		}
		return func(ctx context.Context) (*mutation, error) {
			return s.tickets.updateStatus(ctx, ports.UpdateStatusParams{
				TicketID: w.TicketID,
				Status:   domain.TicketStatus(w.Status),
				Actor:    params.Actor,
			})
		}, nil

	case ports.WriteAssignTicket:
		var w AssignTicketWrite
		if err := strictUnmarshal(params.Payload, &w); err != nil {
			return nil, err
		}
		if w.TicketID <= 0 || w.AssigneeID == uuid.Nil {
			return nil, apperrors.ErrMalformedWrite
		}
		return func(ctx context.Context) (*mutation, error) {
			return s.tickets.assignTicket(ctx, ports.AssignTicketParams{
				TicketID:   w.TicketID,
				AssigneeID: w.AssigneeID,
				Actor:      params.Actor,
			})
		}, nil
	}

	return nil, apperrors.ErrUnknownWriteKind
}

func strictUnmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperrors.ErrMalformedWrite
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrMalformedWrite, err)
	}
	return nil
}
