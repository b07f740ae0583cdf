package redisstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

const ledgerKeyPrefix = "refresh:used:"

// minLedgerTTL keeps a marker around even for credentials that are about
// to expire, so a concurrent replay still loses.
const minLedgerTTL = time.Second

// Ledger records consumed refresh credentials in Redis. The marker expires
// together with the credential it guards.
type Ledger struct {
	client *redis.Client
}

var _ ports.RefreshLedger = (*Ledger)(nil)

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl < minLedgerTTL {
		ttl = minLedgerTTL
	}
	first, err := l.client.SetNX(ctx, ledgerKeyPrefix+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume refresh credential: %w", err)
	}
	return first, nil
}

// MemoryLedger is the single-instance ledger used when Redis is disabled.
type MemoryLedger struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

var _ ports.RefreshLedger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		used: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (l *MemoryLedger) Consume(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl < minLedgerTTL {
		ttl = minLedgerTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	if _, ok := l.used[jti]; ok {
		return false, nil
	}
	l.used[jti] = now.Add(ttl)
	return true, nil
}

// Len returns the number of live markers.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(l.now())
	return len(l.used)
}

func (l *MemoryLedger) sweep(now time.Time) {
	for jti, expires := range l.used {
		if !now.Before(expires) {
			delete(l.used, jti)
		}
	}
}
