// Package offline is the client's durable FIFO of writes made while the
// service was unreachable.
package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queued write. Failed rows are still
// pending; only synced is terminal.
type Status string

const (
	StatusQueued Status = "queued"
	StatusSynced Status = "synced"
	StatusFailed Status = "failed"
)

// ErrWriteNotFound is returned for an unknown write id.
var ErrWriteNotFound = errors.New("queued write not found")

// QueuedWrite is one buffered mutation.
type QueuedWrite struct {
	ID        uuid.UUID
	Kind      string
	Payload   json.RawMessage
	Status    Status
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Queue stores writes in insertion order in SQLite.
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, now: time.Now}
}

// Enqueue appends a write and returns its id. The id doubles as the
// idempotency key on the server.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload json.RawMessage) (uuid.UUID, error) {
	if kind == "" {
		return uuid.Nil, fmt.Errorf("enqueue: kind is required")
	}
	if !json.Valid(payload) {
		return uuid.Nil, fmt.Errorf("enqueue: payload is not valid JSON")
	}

	id := uuid.New()
	ts := q.timestamp()
	const insert = `
		INSERT INTO queued_writes (id, kind, payload, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := q.db.ExecContext(ctx, insert, id.String(), kind, []byte(payload), string(StatusQueued), ts, ts); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue: %w", err)
	}
	return id, nil
}

// ListPending returns every write not yet synced, oldest first.
func (q *Queue) ListPending(ctx context.Context) ([]QueuedWrite, error) {
	const query = `
		SELECT id, kind, payload, status, attempts, last_error, created_at, updated_at
		FROM queued_writes
		WHERE status != ?
		ORDER BY seq ASC`

	rows, err := q.db.QueryContext(ctx, query, string(StatusSynced))
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []QueuedWrite
	for rows.Next() {
		w, err := scanWrite(rows)
		if err != nil {
			return nil, fmt.Errorf("list pending: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return out, nil
}

// MarkSynced moves a write to its terminal state. Marking an already
// synced write is a no-op.
func (q *Queue) MarkSynced(ctx context.Context, id uuid.UUID) error {
	const update = `
		UPDATE queued_writes
		SET status = ?, last_error = '', updated_at = ?
		WHERE id = ?`
	return q.update(ctx, update, string(StatusSynced), q.timestamp(), id.String())
}

// RecordFailure notes a failed attempt. The row stays pending and keeps
// its position.
func (q *Queue) RecordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	const update = `
		UPDATE queued_writes
		SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ? AND status != 'synced'`
	return q.update(ctx, update, string(StatusFailed), msg, q.timestamp(), id.String())
}

// PendingCount returns the number of writes not yet synced.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queued_writes WHERE status != ?`, string(StatusSynced),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return n, nil
}

func (q *Queue) update(ctx context.Context, stmt string, args ...any) error {
	res, err := q.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update queued write: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update queued write: %w", err)
	}
	if n == 0 {
		id := args[len(args)-1]
		var exists bool
		if err := q.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM queued_writes WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update queued write: %w", err)
		}
		if !exists {
			return ErrWriteNotFound
		}
	}
	return nil
}

func (q *Queue) timestamp() string {
	return q.now().UTC().Format(time.RFC3339Nano)
}

func scanWrite(rows *sql.Rows) (QueuedWrite, error) {
	var (
		w                    QueuedWrite
		id, status           string
		payload              []byte
		createdAt, updatedAt string
	)
	if err := rows.Scan(&id, &w.Kind, &payload, &status, &w.Attempts, &w.LastError, &createdAt, &updatedAt); err != nil {
		return w, err
	}

	var err error
	if w.ID, err = uuid.Parse(id); err != nil {
		return w, err
	}
	w.Payload = json.RawMessage(payload)
	w.Status = Status(status)
	if w.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return w, err
	}
	if w.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return w, err
	}
	return w, nil
}
