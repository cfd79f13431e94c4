// Package journal records client activity (connection transitions, message
// status changes, task mutations) in an append-only SQLite log. The journal
// is write-only from the client's point of view; nothing is restored from it.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Kind groups journal entries.
type Kind string

// Journal entry kinds.
const (
	KindConnection Kind = "connection"
	KindMessage    Kind = "message"
	KindTask       Kind = "task"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("journal closed")

// Event is one journal row.
type Event struct {
	ID        int64
	Kind      Kind
	Subject   string
	Detail    string
	CreatedAt time.Time
}

// Journal is a handle on the journal database.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path with WAL mode and a
// 5-second busy timeout, and applies the schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	return db, nil
}

// Record appends one entry.
func (j *Journal) Record(ctx context.Context, kind Kind, subject, detail string) error {
	if j == nil || j.db == nil {
		return ErrClosed
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (kind, subject, detail) VALUES (?, ?, ?)`,
		string(kind), subject, detail,
	)
	if err != nil {
		return fmt.Errorf("record %s event: %w", kind, err)
	}
	return nil
}

// Close releases the database. Safe to call multiple times.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
