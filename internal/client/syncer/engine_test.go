package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qaiserfcc/helpDesk-sub001/internal/client/api"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/connectivity"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/localdb"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/offline"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/refresh"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/session"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/logging"
)

type staticConn struct {
	online atomic.Bool
}

func onlineConn() *staticConn {
	c := &staticConn{}
	c.online.Store(true)
	return c
}

func (c *staticConn) Online() bool { return c.online.Load() }

func (c *staticConn) Subscribe() (<-chan bool, func()) {
	return make(chan bool), func() {}
}

type recordingApplier struct {
	mu      sync.Mutex
	applied []uuid.UUID
	failOn  map[uuid.UUID]error
	block   chan struct{}
	entered chan struct{}
}

func (a *recordingApplier) Apply(ctx context.Context, w offline.QueuedWrite) error {
	if a.entered != nil {
		a.entered <- struct{}{}
	}
	if a.block != nil {
		<-a.block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied = append(a.applied, w.ID)
	return a.failOn[w.ID]
}

func (a *recordingApplier) Applied() []uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uuid.UUID(nil), a.applied...)
}

func newTestQueue(t *testing.T) *offline.Queue {
	t.Helper()
	db, err := localdb.Open(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return offline.NewQueue(db)
}

func enqueue(t *testing.T, q *offline.Queue, title string) uuid.UUID {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"title": title, "priority": "LOW"})
	require.NoError(t, err)
	id, err := q.Enqueue(context.Background(), "ticket.create", payload)
	require.NoError(t, err)
	return id
}

func TestEngine_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	a := enqueue(t, q, "A")
	b := enqueue(t, q, "B")
	c := enqueue(t, q, "C")

	cause := errors.New("server said no")
	applier := &recordingApplier{failOn: map[uuid.UUID]error{b: cause}}
	engine := NewEngine(q, applier, onlineConn(), time.Hour, logging.Discard())

	report, err := engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	require.NotNil(t, report.Failed)
	assert.Equal(t, b, *report.Failed)
	assert.ErrorIs(t, report.Err, cause)
	assert.Equal(t, 2, report.Pending)
	assert.Equal(t, []uuid.UUID{a, b}, applier.Applied(), "C must not be attempted after B fails")

	pending, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, b, pending[0].ID)
	assert.Equal(t, offline.StatusFailed, pending[0].Status)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "server said no", pending[0].LastError)
	assert.Equal(t, c, pending[1].ID)
	assert.Equal(t, offline.StatusQueued, pending[1].Status)

	// Next run retries B first, then C.
	delete(applier.failOn, b)
	report, err = engine.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Synced)
	assert.Nil(t, report.Failed)
	assert.Equal(t, []uuid.UUID{a, b, b, c}, applier.Applied())

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEngine_SkipsWhileOffline(t *testing.T) {
	q := newTestQueue(t)
	enqueue(t, q, "A")

	applier := &recordingApplier{}
	engine := NewEngine(q, applier, &staticConn{}, time.Hour, logging.Discard())

	_, err := engine.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrOffline)
	assert.Empty(t, applier.Applied())
}

func TestEngine_RunsAreMutuallyExclusive(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	a := enqueue(t, q, "A")

	applier := &recordingApplier{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	engine := NewEngine(q, applier, onlineConn(), time.Hour, logging.Discard())

	done := make(chan Report, 1)
	go func() {
		report, err := engine.RunOnce(ctx)
		assert.NoError(t, err)
		done <- report
	}()
	<-applier.entered

	_, err := engine.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(applier.block)
	report := <-done
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, []uuid.UUID{a}, applier.Applied())
}

func TestEngine_TriggerCollapses(t *testing.T) {
	engine := NewEngine(newTestQueue(t), &recordingApplier{}, onlineConn(), time.Hour, logging.Discard())
	engine.Trigger()
	engine.Trigger()
	assert.Len(t, engine.trigger, 1)
}

func TestEngine_TriggerRunsLoop(t *testing.T) {
	q := newTestQueue(t)
	a := enqueue(t, q, "A")

	applier := &recordingApplier{}
	engine := NewEngine(q, applier, onlineConn(), time.Hour, logging.Discard())
	engine.Start(context.Background())
	defer engine.Close()

	engine.Trigger()
	require.Eventually(t, func() bool { return len(applier.Applied()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uuid.UUID{a}, applier.Applied())
}

// deskServer fakes the liveness and write-apply endpoints.
type deskServer struct {
	up atomic.Bool

	mu       sync.Mutex
	received []uuid.UUID
}

func (s *deskServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.up.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	switch r.URL.Path {
	case "/health/live":
		w.WriteHeader(http.StatusOK)
	case "/api/v1/sync/writes":
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body api.Write
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.received = append(s.received, body.ID)
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.WriteResult{ID: body.ID.String()})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *deskServer) Received() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.received...)
}

func TestEngine_OfflineWritesSyncWhenOnline(t *testing.T) {
	ctx := context.Background()
	logger := logging.Discard()

	srv := &deskServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	db, err := localdb.Open(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	defer db.Close()

	sessions := session.NewStore(db)
	require.NoError(t, sessions.Save(ctx, session.Session{
		UserID:       uuid.New(),
		Role:         "customer",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))

	client := api.NewClient(ts.URL, 2*time.Second, logger)
	coordinator := refresh.NewCoordinator(client, sessions, time.Hour, logger)
	queue := offline.NewQueue(db)
	monitor := connectivity.NewMonitor(client, time.Hour, logger)

	engine := NewEngine(queue, RemoteApplier{Client: client, Coordinator: coordinator}, monitor, time.Hour, logger)
	engine.Start(ctx)
	defer engine.Close()

	assert.False(t, monitor.Check(ctx))
	first := enqueue(t, queue, "printer jammed")
	second := enqueue(t, queue, "vpn down")

	_, err = engine.RunOnce(ctx)
	require.ErrorIs(t, err, ErrOffline)

	srv.up.Store(true)
	require.True(t, monitor.Check(ctx))

	require.Eventually(t, func() bool {
		n, err := queue.PendingCount(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []uuid.UUID{first, second}, srv.Received())
}
