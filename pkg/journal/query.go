package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultLimit caps Recent when QueryOpts.Limit is zero.
const DefaultLimit = 50

// QueryOpts filters Recent.
type QueryOpts struct {
	// Kind restricts results to one kind; empty means all kinds.
	Kind Kind

	// Subject restricts results to one message or task id.
	Subject string

	// Limit caps the number of rows (0 = DefaultLimit, negative = no limit).
	Limit int
}

// Recent returns matching events, newest first.
func (j *Journal) Recent(ctx context.Context, opts QueryOpts) ([]Event, error) {
	if j == nil || j.db == nil {
		return nil, ErrClosed
	}
	return queryEvents(ctx, j.db, opts)
}

// Reader is a read-only view of a journal written by another process.
type Reader struct {
	db *sql.DB
}

// NewReader opens the journal at path read-only. The file must exist.
func NewReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal not found: %w", err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	return &Reader{db: db}, nil
}

// Recent returns matching events, newest first.
func (r *Reader) Recent(ctx context.Context, opts QueryOpts) ([]Event, error) {
	return queryEvents(ctx, r.db, opts)
}

// Close releases the database connection.
func (r *Reader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func queryEvents(ctx context.Context, db *sql.DB, opts QueryOpts) ([]Event, error) {
	query, args := buildQuery(opts)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var kind, createdAt string
		if err := rows.Scan(&e.ID, &kind, &e.Subject, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = Kind(kind)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := "SELECT id, kind, subject, detail, created_at FROM events"

	if opts.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(opts.Kind))
	}
	if opts.Subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, opts.Subject)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC"

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return query, args
}

// parseTime accepts SQLite's datetime text with or without fractional seconds.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05.999", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse created_at %q", s)
}
