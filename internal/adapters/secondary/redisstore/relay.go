package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/metrics"
)

const (
	defaultRelayBuffer = 1024
	publishTimeout     = 2 * time.Second
)

// Relay fans events out to every instance through a Redis channel. Events
// published here go to Redis; events received from Redis, including this
// instance's own, are handed to the local publisher. When Redis rejects a
// publish the event is delivered locally only.
type Relay struct {
	client  *redis.Client
	channel string
	local   ports.EventPublisher
	pending chan domain.Event
	metrics *metrics.Realtime
	logger  *slog.Logger

	wg   sync.WaitGroup
	once sync.Once
	stop chan struct{}
}

var _ ports.EventPublisher = (*Relay)(nil)

// NewRelay creates a relay on channel. buffer <= 0 uses the default.
func NewRelay(client *redis.Client, channel string, local ports.EventPublisher, buffer int, m *metrics.Realtime, logger *slog.Logger) *Relay {
	if buffer <= 0 {
		buffer = defaultRelayBuffer
	}
	if m == nil {
		m = metrics.NewRealtime(nil)
	}
	return &Relay{
		client:  client,
		channel: channel,
		local:   local,
		pending: make(chan domain.Event, buffer),
		metrics: m,
		logger:  logger.With("component", "redis_relay", "channel", channel),
		stop:    make(chan struct{}),
	}
}

// Publish queues event for Redis without blocking. A full queue drops it.
func (r *Relay) Publish(event domain.Event) {
	select {
	case r.pending <- event:
	default:
		r.metrics.Dropped.WithLabelValues(metrics.DropPublishBufferFull).Inc()
		r.logger.Warn("relay buffer full, dropping event",
			"event", event.Name,
			"ticket_id", event.TicketID(),
		)
	}
}

// Start launches the publish and subscribe loops. They run until ctx is
// cancelled or Close is called.
func (r *Relay) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so nothing published after
	// Start returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	r.wg.Add(2)
	go r.publishLoop(ctx)
	go r.subscribeLoop(ctx, sub)
	return nil
}

// Close stops both loops and waits for them.
func (r *Relay) Close() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Relay) publishLoop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case event := <-r.pending:
			r.forward(ctx, event)
		}
	}
}

func (r *Relay) forward(ctx context.Context, event domain.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		r.metrics.Dropped.WithLabelValues(metrics.DropEncodeFailed).Inc()
		r.logger.Error("failed to encode event", "event", event.Name, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := r.client.Publish(pubCtx, r.channel, body).Err(); err != nil {
		r.logger.Warn("redis publish failed, delivering locally",
			"event", event.Name,
			"ticket_id", event.TicketID(),
			"error", err,
		)
		r.local.Publish(event)
	}
}

func (r *Relay) subscribeLoop(ctx context.Context, sub *redis.PubSub) {
	defer r.wg.Done()
	defer func() {
		if err := sub.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			r.logger.Warn("failed to close subscription", "error", err)
		}
	}()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("discarding malformed relay message", "error", err)
				continue
			}
			r.local.Publish(event)
		}
	}
}
