// Package journal persists delivery failures reported by the dispatcher
// so they can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/skyroute/internal/dispatch"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed-width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Entry is one recorded delivery failure.
type Entry struct {
	ID          string    `json:"id"`
	Subscriber  string    `json:"subscriber"`
	Pattern     string    `json:"pattern"`
	Topic       string    `json:"topic"`
	Kind        string    `json:"kind"`
	Error       string    `json:"error"`
	PayloadSize int       `json:"payload_size"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Filter controls which entries to return.
type Filter struct {
	Subscriber string // optional
	Kind       string // optional: decode or invocation
	Limit      int    // default 50, max 200
	Offset     int
}

// ListResult contains a page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines journal operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository stores entries in the delivery_failures table.
// It satisfies dispatch.FailureRecorder.
type SQLiteRepository struct {
	db *sql.DB
}

var _ dispatch.FailureRecorder = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a repository over an already migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordFailure converts a dispatcher failure into an entry and stores it.
func (r *SQLiteRepository) RecordFailure(ctx context.Context, f dispatch.Failure) error {
	e := &Entry{
		Subscriber:  f.Subscriber,
		Pattern:     f.Pattern,
		Topic:       f.Topic,
		Kind:        f.Kind,
		PayloadSize: f.PayloadSize,
		OccurredAt:  f.At,
	}
	if f.Err != nil {
		e.Error = f.Err.Error()
	}
	return r.Create(ctx, e)
}

// Create inserts an entry. ID and OccurredAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	e.OccurredAt = e.OccurredAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_failures (id, subscriber, pattern, topic, kind, error, payload_size, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Subscriber, e.Pattern, e.Topic, e.Kind, e.Error, e.PayloadSize,
		e.OccurredAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery failure: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Subscriber != "" {
		conditions = append(conditions, "subscriber = ?")
		args = append(args, filter.Subscriber)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM delivery_failures " + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting delivery failures: %w", err)
	}

	query := "SELECT id, subscriber, pattern, topic, kind, error, payload_size, occurred_at FROM delivery_failures " +
		where + " ORDER BY occurred_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery failures: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.Subscriber, &e.Pattern, &e.Topic,
			&e.Kind, &e.Error, &e.PayloadSize, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning delivery failure: %w", err)
		}
		t, err := time.Parse(timeLayout, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing delivery failure timestamp %q: %w", occurredAt, err)
		}
		e.OccurredAt = t
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery failures: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Prune deletes entries that occurred before the cutoff and reports how many
// were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM delivery_failures WHERE occurred_at < ?",
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning delivery failures: %w", err)
	}
	return res.RowsAffected()
}
