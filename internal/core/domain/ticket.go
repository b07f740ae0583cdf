package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 10000
)

// TicketStatus represents the possible states of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "OPEN"
	StatusInProgress TicketStatus = "IN_PROGRESS"
	StatusResolved   TicketStatus = "RESOLVED"
	StatusClosed     TicketStatus = "CLOSED"
)

// IsValid reports whether s is a known status.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// TicketPriority represents the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "LOW"
	PriorityMedium TicketPriority = "MEDIUM"
	PriorityHigh   TicketPriority = "HIGH"
)

// IsValid reports whether p is a known priority.
func (p TicketPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// IssueType categorizes what the ticket is about.
type IssueType string

const (
	IssueHardware IssueType = "HARDWARE"
	IssueSoftware IssueType = "SOFTWARE"
	IssueNetwork  IssueType = "NETWORK"
	IssueAccess   IssueType = "ACCESS"
	IssueOther    IssueType = "OTHER"
)

// IsValid reports whether t is a known issue type.
func (t IssueType) IsValid() bool {
	switch t {
	case IssueHardware, IssueSoftware, IssueNetwork, IssueAccess, IssueOther:
		return true
	}
	return false
}

// validTransitions defines the ticket lifecycle.
var validTransitions = map[TicketStatus][]TicketStatus{
	StatusOpen:       {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusOpen, StatusResolved, StatusClosed},
	StatusResolved:   {StatusInProgress, StatusClosed},
	StatusClosed:     {},
}

// Ticket is the core domain entity.
type Ticket struct {
	ID          int64
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	IssueType   IssueType
	CreatorID   uuid.UUID
	AssigneeID  *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// TicketParams holds the input for creating a ticket.
type TicketParams struct {
	Title       string
	Description string
	Priority    TicketPriority
	IssueType   IssueType
	CreatorID   uuid.UUID
}

// Validate checks the ticket parameters and collects every field error.
func (p *TicketParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	if p.Title == "" {
		errs.Add("title", "Title is required")
	} else if len(p.Title) > MaxTitleLength {
		errs.Add("title", "Title must be 255 characters or less")
	}

	if len(p.Description) > MaxDescriptionLength {
		errs.Add("description", "Description must be 10000 characters or less")
	}

	if !p.Priority.IsValid() {
		errs.Add("priority", "Priority must be one of LOW, MEDIUM, HIGH")
	}

	if p.IssueType != "" && !p.IssueType.IsValid() {
		errs.Add("issueType", "Unknown issue type")
	}

	if p.CreatorID == uuid.Nil {
		errs.Add("creatorId", "Creator is required")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// NewTicket is a factory function to create a valid new ticket.
func NewTicket(params TicketParams) (*Ticket, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	issueType := params.IssueType
	if issueType == "" {
		issueType = IssueOther
	}

	return &Ticket{
		Title:       params.Title,
		Description: params.Description,
		Status:      StatusOpen,
		Priority:    params.Priority,
		IssueType:   issueType,
		CreatorID:   params.CreatorID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// CanTransitionTo reports whether the lifecycle allows moving to newStatus.
func (t *Ticket) CanTransitionTo(newStatus TicketStatus) bool {
	for _, s := range validTransitions[t.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

// UpdateStatus changes the ticket's status, enforcing business rules.
func (t *Ticket) UpdateStatus(newStatus TicketStatus) error {
	if !newStatus.IsValid() {
		return apperrors.ErrInvalidStatus
	}
	if !t.CanTransitionTo(newStatus) {
		return apperrors.ErrInvalidStatusTransition
	}

	t.Status = newStatus
	t.touch()
	return nil
}

// Assign sets or changes the assignee of the ticket.
func (t *Ticket) Assign(assigneeID uuid.UUID) error {
	if t.Status == StatusClosed {
		return apperrors.ErrCannotAssignClosed
	}
	t.AssigneeID = &assigneeID
	t.touch()
	return nil
}

// IsOwnedBy reports whether userID created the ticket.
func (t *Ticket) IsOwnedBy(userID uuid.UUID) bool {
	return t.CreatorID == userID
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

func (t *Ticket) touch() {
	now := time.Now().UTC()
	t.UpdatedAt = &now
}
