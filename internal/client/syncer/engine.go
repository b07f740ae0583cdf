// Package syncer drains the offline queue through the write-apply endpoint.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/client/api"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/offline"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/refresh"
)

var (
	// ErrOffline is returned by RunOnce while connectivity is down.
	ErrOffline = errors.New("sync skipped: offline")
	// ErrRunInProgress is returned by RunOnce when another run holds the lock.
	ErrRunInProgress = errors.New("sync skipped: run in progress")
)

// Queue is the subset of the offline queue the engine drives.
type Queue interface {
	ListPending(ctx context.Context) ([]offline.QueuedWrite, error)
	MarkSynced(ctx context.Context, id uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID, cause error) error
}

// Applier delivers one write to the server.
type Applier interface {
	Apply(ctx context.Context, w offline.QueuedWrite) error
}

// Connectivity reports reachability and announces transitions.
type Connectivity interface {
	Online() bool
	Subscribe() (<-chan bool, func())
}

// RemoteApplier applies writes through the API client, wrapped by the
// refresh coordinator.
type RemoteApplier struct {
	Client      *api.Client
	Coordinator *refresh.Coordinator
}

func (a RemoteApplier) Apply(ctx context.Context, w offline.QueuedWrite) error {
	return a.Coordinator.Do(ctx, func(ctx context.Context, accessToken string) error {
		_, err := a.Client.ApplyWrite(ctx, accessToken, api.Write{ID: w.ID, Kind: w.Kind, Payload: w.Payload})
		return err
	})
}

// Report summarizes one drain run.
type Report struct {
	Synced  int
	Failed  *uuid.UUID
	Err     error
	Pending int
}

// Engine replays queued writes strictly in order, one at a time, and
// stops at the first failure so later writes never overtake it.
type Engine struct {
	queue    Queue
	applier  Applier
	conn     Connectivity
	interval time.Duration
	logger   *slog.Logger

	run     sync.Mutex
	trigger chan struct{}

	lifeMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(queue Queue, applier Applier, conn Connectivity, interval time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		queue:    queue,
		applier:  applier,
		conn:     conn,
		interval: interval,
		logger:   logger.With("component", "sync_engine"),
		trigger:  make(chan struct{}, 1),
	}
}

// RunOnce drains the queue. It returns ErrOffline or ErrRunInProgress
// without touching the queue when a run cannot start.
func (e *Engine) RunOnce(ctx context.Context) (Report, error) {
	if !e.conn.Online() {
		return Report{}, ErrOffline
	}
	if !e.run.TryLock() {
		return Report{}, ErrRunInProgress
	}
	defer e.run.Unlock()

	pending, err := e.queue.ListPending(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list pending writes: %w", err)
	}

	var report Report
	for i, w := range pending {
		if err := ctx.Err(); err != nil {
			report.Pending = len(pending) - i
			return report, err
		}

		if applyErr := e.applier.Apply(ctx, w); applyErr != nil {
			id := w.ID
			report.Failed = &id
			report.Err = applyErr
			report.Pending = len(pending) - i

			if err := e.queue.RecordFailure(ctx, w.ID, applyErr); err != nil {
				return report, fmt.Errorf("record failure for %s: %w", w.ID, err)
			}
			e.logger.Warn("queued write failed, halting drain",
				"write_id", w.ID,
				"kind", w.Kind,
				"attempts", w.Attempts+1,
				"error", applyErr,
			)
			return report, nil
		}

		if err := e.queue.MarkSynced(ctx, w.ID); err != nil {
			report.Pending = len(pending) - i
			return report, fmt.Errorf("mark %s synced: %w", w.ID, err)
		}
		report.Synced++
	}

	if report.Synced > 0 {
		e.logger.Info("queue drained", "synced", report.Synced)
	}
	return report, nil
}

// Trigger requests a run. Requests made while one is already waiting
// collapse into it.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Start runs the engine on the ticker, on explicit triggers and whenever
// connectivity comes back, until Close or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.Close()

	ctx, cancel := context.WithCancel(ctx)
	e.lifeMu.Lock()
	e.cancel = cancel
	e.lifeMu.Unlock()

	changes, unsubscribe := e.conn.Subscribe()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer unsubscribe()

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-e.trigger:
			case online, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				if !online {
					continue
				}
			}
			e.runLogged(ctx)
		}
	}()
}

func (e *Engine) runLogged(ctx context.Context) {
	_, err := e.RunOnce(ctx)
	switch {
	case err == nil, errors.Is(err, ErrOffline), errors.Is(err, ErrRunInProgress), errors.Is(err, context.Canceled):
	default:
		e.logger.Error("sync run failed", "error", err)
	}
}

// Close stops the loop and waits for an in-flight run to return.
func (e *Engine) Close() {
	e.lifeMu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.lifeMu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}
