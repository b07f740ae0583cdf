package offline

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaiserfcc/helpDesk-sub001/internal/client/localdb"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewQueue(db)
}

func TestQueue_FIFOAndSync(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	a, err := q.Enqueue(ctx, "ticket.create", json.RawMessage(`{"title":"A"}`))
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, "ticket.status", json.RawMessage(`{"ticketId":1,"status":"CLOSED"}`))
	require.NoError(t, err)
	c, err := q.Enqueue(ctx, "ticket.create", json.RawMessage(`{"title":"C"}`))
	require.NoError(t, err)

	pending, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []uuid.UUID{a, b, c}, []uuid.UUID{pending[0].ID, pending[1].ID, pending[2].ID})
	assert.Equal(t, StatusQueued, pending[0].Status)
	assert.JSONEq(t, `{"title":"A"}`, string(pending[0].Payload))
	assert.Equal(t, "ticket.status", pending[1].Kind)

	require.NoError(t, q.MarkSynced(ctx, a))
	require.NoError(t, q.MarkSynced(ctx, a))

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err = q.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b, c}, []uuid.UUID{pending[0].ID, pending[1].ID})
}

func TestQueue_FailureKeepsPositionUntilSynced(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	a, err := q.Enqueue(ctx, "ticket.create", json.RawMessage(`{}`))
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, "ticket.create", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, q.RecordFailure(ctx, a, errors.New("rejected: 422")))
	require.NoError(t, q.RecordFailure(ctx, a, errors.New("rejected again")))

	pending, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a, pending[0].ID)
	assert.Equal(t, StatusFailed, pending[0].Status)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.Equal(t, "rejected again", pending[0].LastError)
	assert.Equal(t, b, pending[1].ID)

	require.NoError(t, q.MarkSynced(ctx, a))
	pending, err = q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b, pending[0].ID)

	// Synced is terminal.
	require.NoError(t, q.RecordFailure(ctx, a, errors.New("late")))
	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueue_UnknownID(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	assert.ErrorIs(t, q.MarkSynced(ctx, uuid.New()), ErrWriteNotFound)
	assert.ErrorIs(t, q.RecordFailure(ctx, uuid.New(), errors.New("x")), ErrWriteNotFound)
}

func TestQueue_EnqueueValidation(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	_, err := q.Enqueue(ctx, "", json.RawMessage(`{}`))
	assert.Error(t, err)

	_, err = q.Enqueue(ctx, "ticket.create", json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestQueue_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	db, err := localdb.Open(ctx, path)
	require.NoError(t, err)
	id, err := NewQueue(db).Enqueue(ctx, "ticket.create", json.RawMessage(`{"title":"persisted"}`))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = localdb.Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	pending, err := NewQueue(db).ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
}
