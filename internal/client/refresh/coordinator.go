// Package refresh keeps the client's credentials fresh. Every outbound
// call goes through Coordinator.Do, which refreshes at most once per
// expiry and coalesces concurrent refreshes into one request.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/qaiserfcc/helpDesk-sub001/internal/client/api"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/session"
)

const flightKey = "refresh"

// Refresher exchanges a refresh credential for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*api.AuthResponse, error)
}

// SessionStore is the persistence the coordinator needs.
type SessionStore interface {
	Load(ctx context.Context) (*session.Session, error)
	Save(ctx context.Context, s session.Session) error
	SignOut(ctx context.Context) error
}

// Call is an outbound request made with the given access credential.
type Call func(ctx context.Context, accessToken string) error

// Coordinator wraps outbound calls with refresh-and-replay.
type Coordinator struct {
	refresher Refresher
	store     SessionStore
	interval  time.Duration
	logger    *slog.Logger

	group     singleflight.Group
	onSignOut func()

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithSignOutHook runs fn after a forced sign-out.
func WithSignOutHook(fn func()) Option {
	return func(c *Coordinator) { c.onSignOut = fn }
}

// NewCoordinator creates a coordinator. interval drives the proactive
// refresh started by Start and should sit well inside the access TTL.
func NewCoordinator(refresher Refresher, store SessionStore, interval time.Duration, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		refresher: refresher,
		store:     store,
		interval:  interval,
		logger:    logger.With("component", "refresh_coordinator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs call with the current access credential. When the call fails
// with api.ErrAuthExpired and a refresh credential exists, Do refreshes
// once (sharing any refresh already in flight) and replays call exactly
// once. If the refresh is rejected the session is signed out and the
// original error is returned.
func (c *Coordinator) Do(ctx context.Context, call Call) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	callErr := call(ctx, sess.AccessToken)
	if !errors.Is(callErr, api.ErrAuthExpired) {
		return callErr
	}
	if sess.RefreshToken == "" {
		c.signOut(ctx, "no refresh credential")
		return callErr
	}

	fresh, err := c.refresh(ctx, sess.AccessToken)
	if err != nil {
		return callErr
	}
	return call(ctx, fresh.AccessToken)
}

// Refresh forces a refresh now. Concurrent callers share one request.
func (c *Coordinator) Refresh(ctx context.Context) (*session.Session, error) {
	return c.refresh(ctx, "")
}

// refresh rotates the stored pair. staleAccess is the credential that just
// failed; if the store already holds a different one, a sibling refreshed
// in the meantime and its result is reused.
func (c *Coordinator) refresh(ctx context.Context, staleAccess string) (*session.Session, error) {
	ch := c.group.DoChan(flightKey, func() (any, error) {
		// The flight outlives any single caller's cancellation.
		fctx := context.WithoutCancel(ctx)

		current, err := c.store.Load(fctx)
		if err != nil {
			return nil, err
		}
		if staleAccess != "" && current.AccessToken != staleAccess {
			return current, nil
		}

		resp, err := c.refresher.Refresh(fctx, current.RefreshToken)
		if err != nil {
			if errors.Is(err, api.ErrAuthExpired) {
				c.signOut(fctx, "refresh rejected")
			} else {
				c.logger.Warn("refresh failed, keeping session", "error", err)
			}
			return nil, err
		}

		next, err := resp.Session()
		if err != nil {
			return nil, err
		}
		if err := c.store.Save(fctx, next); err != nil {
			return nil, fmt.Errorf("persist refreshed session: %w", err)
		}
		c.logger.Debug("credentials refreshed", "user_id", next.UserID)
		return &next, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*session.Session), nil
	}
}

func (c *Coordinator) signOut(ctx context.Context, reason string) {
	if err := c.store.SignOut(ctx); err != nil {
		c.logger.Error("failed to sign out", "reason", reason, "error", err)
	} else {
		c.logger.Info("signed out", "reason", reason)
	}
	if c.onSignOut != nil {
		c.onSignOut()
	}
}

// Start launches the proactive refresh ticker. Calling Start again
// replaces the previous ticker.
func (c *Coordinator) Start(ctx context.Context) {
	c.Close()

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Let a started refresh finish so Close never leaves one behind.
				if _, err := c.Refresh(context.WithoutCancel(ctx)); err != nil &&
					!errors.Is(err, session.ErrNoSession) {
					c.logger.Warn("proactive refresh failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the proactive ticker and waits for it to exit.
func (c *Coordinator) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}
