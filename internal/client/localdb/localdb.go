// Package localdb opens the client's SQLite file and keeps its schema
// current.
package localdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schema is applied idempotently on every open.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS session (
		id            INTEGER PRIMARY KEY CHECK (id = 1),
		user_id       TEXT    NOT NULL,
		role          TEXT    NOT NULL,
		full_name     TEXT    NOT NULL DEFAULT '',
		email         TEXT    NOT NULL DEFAULT '',
		access_token  TEXT    NOT NULL,
		refresh_token TEXT    NOT NULL,
		updated_at    TEXT    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_state (
		id    INTEGER PRIMARY KEY CHECK (id = 1),
		stale INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS queued_writes (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT    NOT NULL UNIQUE,
		kind       TEXT    NOT NULL,
		payload    BLOB    NOT NULL,
		status     TEXT    NOT NULL DEFAULT 'queued'
		           CHECK (status IN ('queued', 'synced', 'failed')),
		attempts   INTEGER NOT NULL DEFAULT 0,
		last_error TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL,
		updated_at TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS queued_writes_status_idx ON queued_writes (status, seq)`,
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. A single connection serializes writers.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: connection source is empty")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: failed to ping %s: %w", path, err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: failed to apply schema: %w", err)
		}
	}
	return db, nil
}
