package domain_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

func newOpenTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := domain.NewTicket(domain.TicketParams{
		Title:     "VPN drops every hour",
		Priority:  domain.PriorityHigh,
		IssueType: domain.IssueNetwork,
		CreatorID: uuid.New(),
	})
	require.NoError(t, err)
	return ticket
}

func TestEnums_IsValid(t *testing.T) {
	assert.True(t, domain.PriorityLow.IsValid())
	assert.False(t, domain.TicketPriority("low").IsValid())
	assert.True(t, domain.StatusResolved.IsValid())
	assert.False(t, domain.TicketStatus("PENDING").IsValid())
	assert.True(t, domain.IssueAccess.IsValid())
	assert.False(t, domain.IssueType("").IsValid())
}

func TestNewTicket(t *testing.T) {
	ticket := newOpenTicket(t)
	assert.Equal(t, domain.StatusOpen, ticket.Status)
	assert.Equal(t, domain.IssueNetwork, ticket.IssueType)
	assert.Nil(t, ticket.AssigneeID)
	assert.Nil(t, ticket.UpdatedAt)
	assert.False(t, ticket.CreatedAt.IsZero())

	noType, err := domain.NewTicket(domain.TicketParams{Title: "x", Priority: domain.PriorityLow, CreatorID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, domain.IssueOther, noType.IssueType)
}

func TestTicketParams_Validate(t *testing.T) {
	valid := domain.TicketParams{Title: "Printer offline", Priority: domain.PriorityMedium, CreatorID: uuid.New()}

	tests := []struct {
		name   string
		mutate func(p *domain.TicketParams)
		field  string
	}{
		{"missing title", func(p *domain.TicketParams) { p.Title = "" }, "title"},
		{"long title", func(p *domain.TicketParams) { p.Title = strings.Repeat("a", domain.MaxTitleLength+1) }, "title"},
		{"long description", func(p *domain.TicketParams) { p.Description = strings.Repeat("a", domain.MaxDescriptionLength+1) }, "description"},
		{"bad priority", func(p *domain.TicketParams) { p.Priority = "URGENT" }, "priority"},
		{"bad issue type", func(p *domain.TicketParams) { p.IssueType = "PRINTER" }, "issueType"},
		{"no creator", func(p *domain.TicketParams) { p.CreatorID = uuid.Nil }, "creatorId"},
	}

	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := valid
			tt.mutate(&params)

			var verrs *apperrors.ValidationErrors
			require.ErrorAs(t, params.Validate(), &verrs)
			assert.Contains(t, verrs.Errors, tt.field)
		})
	}
}

func TestTicket_Lifecycle(t *testing.T) {
	all := []domain.TicketStatus{domain.StatusOpen, domain.StatusInProgress, domain.StatusResolved, domain.StatusClosed}
	allowed := map[domain.TicketStatus][]domain.TicketStatus{
		domain.StatusOpen:       {domain.StatusInProgress, domain.StatusResolved, domain.StatusClosed},
		domain.StatusInProgress: {domain.StatusOpen, domain.StatusResolved, domain.StatusClosed},
		domain.StatusResolved:   {domain.StatusInProgress, domain.StatusClosed},
		domain.StatusClosed:     nil,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				want = want || s == to
			}

			ticket := &domain.Ticket{Status: from}
			assert.Equal(t, want, ticket.CanTransitionTo(to), "%s -> %s", from, to)

			err := ticket.UpdateStatus(to)
			if want {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, ticket.Status)
				assert.NotNil(t, ticket.UpdatedAt)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition, "%s -> %s", from, to)
				assert.Equal(t, from, ticket.Status)
			}
		}
	}

	ticket := newOpenTicket(t)
	assert.ErrorIs(t, ticket.UpdateStatus("REOPENED"), apperrors.ErrInvalidStatus)
}

func TestTicket_Assign(t *testing.T) {
	ticket := newOpenTicket(t)
	agent := uuid.New()

	require.NoError(t, ticket.Assign(agent))
	assert.True(t, ticket.IsAssignedTo(agent))
	assert.False(t, ticket.IsAssignedTo(uuid.New()))
	assert.NotNil(t, ticket.UpdatedAt)

	require.NoError(t, ticket.UpdateStatus(domain.StatusClosed))
	assert.ErrorIs(t, ticket.Assign(uuid.New()), apperrors.ErrCannotAssignClosed)
	assert.True(t, ticket.IsAssignedTo(agent))
}

func TestTicket_Ownership(t *testing.T) {
	ticket := newOpenTicket(t)
	assert.True(t, ticket.IsOwnedBy(ticket.CreatorID))
	assert.False(t, ticket.IsOwnedBy(uuid.New()))
	assert.False(t, (&domain.Ticket{}).IsAssignedTo(uuid.Nil))
}
