// Package connectivity tracks whether the service is reachable.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const probeTimeout = 5 * time.Second

// Prober checks reachability; a nil error means online.
type Prober interface {
	Live(ctx context.Context) error
}

// Monitor probes the service on an interval and broadcasts transitions.
// It starts offline until the first successful probe.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]chan bool
	nextID int

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMonitor(prober Prober, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger.With("component", "connectivity"),
		subs:     make(map[int]chan bool),
	}
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel of transitions (true = came online) and a
// func that unsubscribes and closes it. A slow subscriber only ever sees
// the latest state.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan bool, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
		})
	}
}

// Check runs one probe, records the result and returns it.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := m.prober.Live(ctx)
	m.set(err == nil)
	if err != nil {
		m.logger.Debug("probe failed", "error", err)
	}
	return err == nil
}

func (m *Monitor) set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return
	}
	m.online = online
	m.logger.Info("connectivity changed", "online", online)

	for _, ch := range m.subs {
		// Replace an unread state with the newer one.
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Start probes immediately and then every interval until Close.
func (m *Monitor) Start(ctx context.Context) {
	m.Close()

	ctx, cancel := context.WithCancel(ctx)
	m.runMu.Lock()
	m.cancel = cancel
	m.runMu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Check(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Close stops probing and waits for the loop to exit. Subscriptions stay
// open until their owners cancel them.
func (m *Monitor) Close() {
	m.runMu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}
