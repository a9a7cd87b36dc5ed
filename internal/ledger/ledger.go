// Package ledger provides an append-only history of light and clock events.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sweeney/nightlight/internal/logic"
)

// Entry is a single recorded event.
type Entry struct {
	ID        int64
	BootID    string
	Type      logic.EventType
	Timestamp time.Time
	TimeOfDay string
	Color     string
	Displayed string
	// Ratio is nil for events without an appearance.
	Ratio  *uint8
	Source string
	Window string
	Reason string
}

// Ledger appends events for one daemon run, tagged with its boot ID.
type Ledger struct {
	db     *sql.DB
	bootID string
	now    func() time.Time
	floor  time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithNow sets the clock used for missing event timestamps and for the
// retention cutoff. It should be the clock that stamps the events.
func WithNow(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithFloor keeps entries stamped before floor out of retention cleanup.
// Events recorded before the clock was first synced carry such timestamps
// and their real age is unknown.
func WithFloor(floor time.Time) Option {
	return func(l *Ledger) { l.floor = floor }
}

// New creates a Ledger using the provided database connection.
func New(db *sql.DB, bootID string, opts ...Option) *Ledger {
	l := &Ledger{db: db, bootID: bootID, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

const insertSQL = `INSERT INTO light_events (boot_id, event_type, timestamp, time_of_day, color, displayed, ratio, source, window_name, reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Append records ev. A zero event timestamp is replaced by the current time.
func (l *Ledger) Append(ctx context.Context, ev logic.Event) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}

	var color, displayed, source sql.NullString
	var ratio sql.NullInt64
	if ev.Type == logic.EventAppearanceChanged {
		color = sql.NullString{String: ev.Appearance.Color.Hex(), Valid: true}
		displayed = sql.NullString{String: ev.Appearance.Dimmed().Hex(), Valid: true}
		ratio = sql.NullInt64{Int64: int64(ev.Appearance.Ratio), Valid: true}
		source = sql.NullString{String: string(ev.Source), Valid: true}
	}

	_, err := l.db.ExecContext(ctx, insertSQL,
		l.bootID, string(ev.Type), ts.UTC().Unix(), ev.TimeOfDay.String(),
		color, displayed, ratio, source, ev.Window, ev.Reason)
	if err != nil {
		return fmt.Errorf("append %s: %w", ev.Type, err)
	}
	return nil
}

const selectColumns = `SELECT id, boot_id, event_type, timestamp, time_of_day, color, displayed, ratio, source, window_name, reason FROM light_events`

// Recent returns up to limit entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, selectColumns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Since returns entries at or after t, oldest first.
func (l *Ledger) Since(ctx context.Context, t time.Time, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, selectColumns+` WHERE timestamp >= ? ORDER BY id ASC LIMIT ?`, t.UTC().Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("query since: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries older than retention and returns the
// number of deleted rows. Entries stamped before the floor are kept.
func (l *Ledger) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UTC().Unix()
	var floor int64
	if !l.floor.IsZero() {
		floor = l.floor.UTC().Unix()
	}
	result, err := l.db.ExecContext(ctx, `DELETE FROM light_events WHERE timestamp < ? AND timestamp >= ?`, cutoff, floor)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return result.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var eventType string
		var timestamp int64
		var color, displayed, source, window, reason sql.NullString
		var ratio sql.NullInt64

		err := rows.Scan(&e.ID, &e.BootID, &eventType, &timestamp, &e.TimeOfDay,
			&color, &displayed, &ratio, &source, &window, &reason)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e.Type = logic.EventType(eventType)
		e.Timestamp = time.Unix(timestamp, 0).UTC()
		e.Color = color.String
		e.Displayed = displayed.String
		e.Source = source.String
		e.Window = window.String
		e.Reason = reason.String
		if ratio.Valid {
			r := uint8(ratio.Int64)
			e.Ratio = &r
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
