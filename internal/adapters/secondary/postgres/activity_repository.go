package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

const activityColumns = `id, ticket_id, variant, actor_id, from_status, to_status,
	from_assignee_id, to_assignee_id, created_at`

// ActivityRepository stores the append-only ticket activity log. The
// audience snapshot of an entry is never stored.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

var _ ports.ActivityRepository = (*ActivityRepository)(nil)

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

func statusOrNull(s *domain.TicketStatus) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return textOrNull(string(*s))
}

func statusPtr(t pgtype.Text) *domain.TicketStatus {
	if !t.Valid {
		return nil
	}
	s := domain.TicketStatus(t.String)
	return &s
}

func scanActivity(row pgx.Row) (*domain.ActivityEntry, error) {
	var (
		e                        domain.ActivityEntry
		variant                  string
		fromStatus, toStatus     pgtype.Text
		fromAssignee, toAssignee pgtype.UUID
	)
	err := row.Scan(&e.ID, &e.TicketID, &variant, &e.ActorID, &fromStatus, &toStatus,
		&fromAssignee, &toAssignee, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Variant = domain.ActivityVariant(variant)
	e.FromStatus = statusPtr(fromStatus)
	e.ToStatus = statusPtr(toStatus)
	e.FromAssignee = uuidPtr(fromAssignee)
	e.ToAssignee = uuidPtr(toAssignee)
	return &e, nil
}

// Create inserts entry and returns the stored copy. The caller's Audience
// is carried over to the result.
func (r *ActivityRepository) Create(ctx context.Context, entry *domain.ActivityEntry) (*domain.ActivityEntry, error) {
	const query = `
		INSERT INTO ticket_activity (ticket_id, variant, actor_id, from_status, to_status,
			from_assignee_id, to_assignee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + activityColumns

	created, err := scanActivity(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		entry.TicketID,
		string(entry.Variant),
		entry.ActorID,
		statusOrNull(entry.FromStatus),
		statusOrNull(entry.ToStatus),
		uuidOrNull(entry.FromAssignee),
		uuidOrNull(entry.ToAssignee),
	))
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	created.Audience = entry.Audience
	return created, nil
}

// ListByTicketID returns entries with id > afterID in id order.
func (r *ActivityRepository) ListByTicketID(ctx context.Context, ticketID int64, afterID int64, limit int) ([]*domain.ActivityEntry, error) {
	const query = `
		SELECT ` + activityColumns + `
		FROM ticket_activity
		WHERE ticket_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, ticketID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ActivityEntry
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return entries, nil
}
