// Package store provides the durable Store: typed CRUD over handlers,
// timers, schedules, events, jobs and config, backed by a single SQLite
// file. All mutations are serialised through the database/sql driver's
// connection pool discipline; callers never see partial writes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open creates the parent directory if needed, opens the SQLite file at
// path, applies pragmas, and bootstraps the schema. It refuses to open a
// path that resolves onto a network filesystem, where SQLite's
// single-writer locking is not reliable.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if err := ValidateFilesystem(path); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if err := Bootstrap(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap creates the schema if it does not already exist.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS handlers (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL UNIQUE,
			shell TEXT NOT NULL,
			command TEXT NOT NULL,
			timeout_secs INTEGER,
			env TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS timers (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL UNIQUE,
			context TEXT NOT NULL DEFAULT '',
			interval_secs INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL UNIQUE,
			context TEXT NOT NULL DEFAULT '',
			scheduled_time TEXT NOT NULL,
			periodic INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_context TEXT NOT NULL DEFAULT '',
			event_timestamp TEXT NOT NULL,
			handler_id TEXT NOT NULL,
			status TEXT NOT NULL,
			output TEXT,
			error TEXT,
			started_at TEXT,
			finished_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_event_id ON jobs(event_id)`,
		`CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return tx.Commit()
}
