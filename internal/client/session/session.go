// Package session persists the signed-in client session.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
)

// ErrNoSession is returned when nobody is signed in.
var ErrNoSession = errors.New("no active session")

// Session is the client-owned credential pair plus the identity it
// belongs to.
type Session struct {
	UserID       uuid.UUID
	Role         domain.Role
	FullName     string
	Email        string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

// Identity projects the session onto the server-side identity.
func (s *Session) Identity() domain.Identity {
	return domain.Identity{ID: s.UserID, Role: s.Role}
}

// Store keeps at most one session in the local SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Load returns the current session or ErrNoSession.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	const query = `
		SELECT user_id, role, full_name, email, access_token, refresh_token, updated_at
		FROM session WHERE id = 1`

	var (
		sess      Session
		userID    string
		role      string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&userID, &role, &sess.FullName, &sess.Email, &sess.AccessToken, &sess.RefreshToken, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if sess.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.Role = domain.Role(role)
	if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &sess, nil
}

// Save replaces the stored session and clears the stale marker.
func (s *Store) Save(ctx context.Context, sess Session) error {
	const upsert = `
		INSERT INTO session (id, user_id, role, full_name, email, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			role = excluded.role,
			full_name = excluded.full_name,
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at`

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, upsert,
			sess.UserID.String(), string(sess.Role), sess.FullName, sess.Email,
			sess.AccessToken, sess.RefreshToken, s.now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return setStale(ctx, tx, false)
	})
}

// Clear removes the stored session. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// SignOut clears the session and marks it stale in one step, so the next
// start can tell a forced sign-out from a fresh install.
func (s *Store) SignOut(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session WHERE id = 1`); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		return setStale(ctx, tx, true)
	})
}

// IsStale reports whether the last session ended in a forced sign-out.
func (s *Store) IsStale(ctx context.Context) (bool, error) {
	var stale bool
	err := s.db.QueryRowContext(ctx, `SELECT stale FROM session_state WHERE id = 1`).Scan(&stale)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read session state: %w", err)
	}
	return stale, nil
}

func setStale(ctx context.Context, tx *sql.Tx, stale bool) error {
	const upsert = `
		INSERT INTO session_state (id, stale) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET stale = excluded.stale`
	if _, err := tx.ExecContext(ctx, upsert, stale); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
