package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

const ticketColumns = `id, title, description, status, priority, issue_type,
	creator_id, assignee_id, created_at, updated_at`

type TicketRepository struct {
	pool *pgxpool.Pool
}

var _ ports.TicketRepository = (*TicketRepository)(nil)

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t           domain.Ticket
		description pgtype.Text
		status      string
		priority    string
		issueType   string
		assignee    pgtype.UUID
		updatedAt   pgtype.Timestamptz
	)
	err := row.Scan(&t.ID, &t.Title, &description, &status, &priority, &issueType,
		&t.CreatorID, &assignee, &t.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Description = textValue(description)
	t.Status = domain.TicketStatus(status)
	t.Priority = domain.TicketPriority(priority)
	t.IssueType = domain.IssueType(issueType)
	t.AssigneeID = uuidPtr(assignee)
	if updatedAt.Valid {
		ts := updatedAt.Time
		t.UpdatedAt = &ts
	}
	return &t, nil
}

func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	const query = `
		INSERT INTO tickets (title, description, status, priority, issue_type, creator_id, assignee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + ticketColumns

	status := ticket.Status
	if status == "" {
		status = domain.StatusOpen
	}
	issueType := ticket.IssueType
	if issueType == "" {
		issueType = domain.IssueOther
	}

	created, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		ticket.Title,
		textOrNull(ticket.Description),
		string(status),
		string(ticket.Priority),
		string(issueType),
		ticket.CreatorID,
		uuidOrNull(ticket.AssigneeID),
	))
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	return created, nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *TicketRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	return r.get(ctx, query, id)
}

func (r *TicketRepository) get(ctx context.Context, query string, id int64) (*domain.Ticket, error) {
	ticket, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return ticket, nil
}

func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	const query = `
		UPDATE tickets
		SET title = $2,
		    description = $3,
		    status = $4,
		    priority = $5,
		    issue_type = $6,
		    assignee_id = $7,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + ticketColumns

	updated, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		ticket.ID,
		ticket.Title,
		textOrNull(ticket.Description),
		string(ticket.Status),
		string(ticket.Priority),
		string(ticket.IssueType),
		uuidOrNull(ticket.AssigneeID),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, fmt.Errorf("update ticket %d: %w", ticket.ID, err)
	}
	return updated, nil
}

// List returns tickets newest first.
func (r *TicketRepository) List(ctx context.Context, params ports.ListTicketsRepoParams) ([]*domain.Ticket, error) {
	var (
		where []string
		args  []any
	)
	if params.CreatorID != nil {
		args = append(args, *params.CreatorID)
		where = append(where, fmt.Sprintf("creator_id = $%d", len(args)))
	}
	if params.Status != nil {
		args = append(args, string(*params.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + ticketColumns + ` FROM tickets`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, params.Limit, params.Offset)
	fmt.Fprintf(&sb, " ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]*domain.Ticket, 0, params.Limit)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return tickets, nil
}
