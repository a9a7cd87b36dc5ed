package ledger

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sweeney/nightlight/internal/db"
	"github.com/sweeney/nightlight/internal/logic"
)

var base = time.Date(2026, 3, 1, 20, 55, 0, 0, time.UTC)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	l := New(d.DB, "boot-1")
	l.now = func() time.Time { return base }
	return l
}

func appearanceChanged(at time.Time) logic.Event {
	return logic.Event{
		Timestamp:  at,
		Type:       logic.EventAppearanceChanged,
		TimeOfDay:  logic.NewTimeOfDay(at.Hour(), at.Minute()),
		Appearance: logic.Appearance{Color: logic.Color{R: 255}, Ratio: 100},
		Source:     logic.SourceSchedule,
		Window:     "night",
	}
}

func TestAppendAndRecent(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	if err := l.Append(ctx, appearanceChanged(base)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	failed := logic.Event{Timestamp: base.Add(time.Minute), Type: logic.EventTimeSyncFailed, TimeOfDay: logic.NewTimeOfDay(20, 56), Reason: "timeout"}
	if err := l.Append(ctx, failed); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	newest := entries[0]
	if newest.Type != logic.EventTimeSyncFailed || newest.Reason != "timeout" {
		t.Errorf("newest: got %+v", newest)
	}
	if newest.Ratio != nil || newest.Color != "" {
		t.Errorf("clock events carry no appearance: %+v", newest)
	}

	oldest := entries[1]
	if oldest.Type != logic.EventAppearanceChanged {
		t.Errorf("oldest type: got %s", oldest.Type)
	}
	if oldest.Color != "#ff0000" || oldest.Displayed != "#640000" {
		t.Errorf("colors: got %s / %s", oldest.Color, oldest.Displayed)
	}
	if oldest.Ratio == nil || *oldest.Ratio != 100 {
		t.Errorf("ratio: got %v", oldest.Ratio)
	}
	if oldest.Source != "SCHEDULE" || oldest.Window != "night" || oldest.TimeOfDay != "20:55" {
		t.Errorf("unexpected entry %+v", oldest)
	}
	if oldest.BootID != "boot-1" {
		t.Errorf("BootID: got %q", oldest.BootID)
	}
	if !oldest.Timestamp.Equal(base) {
		t.Errorf("Timestamp: got %v, want %v", oldest.Timestamp, base)
	}
}

func TestRecentLimit(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l.Append(ctx, appearanceChanged(base.Add(time.Duration(i)*time.Minute)))
	}

	entries, err := l.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Timestamp.Before(entries[2].Timestamp) {
		t.Error("expected newest first")
	}
}

func TestAppendZeroTimestampUsesNow(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	if err := l.Append(ctx, logic.Event{Type: logic.EventTrustLost}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	entries, _ := l.Recent(ctx, 1)
	if len(entries) != 1 || !entries[0].Timestamp.Equal(base) {
		t.Errorf("expected timestamp %v, got %+v", base, entries)
	}
}

func TestSince(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		l.Append(ctx, appearanceChanged(base.Add(time.Duration(i)*time.Hour)))
	}

	entries, err := l.Since(ctx, base.Add(2*time.Hour), 10)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("expected oldest first, got %v", entries[0].Timestamp)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	l := openLedger(t)
	ctx := context.Background()

	l.Append(ctx, appearanceChanged(base.Add(-48*time.Hour)))
	l.Append(ctx, appearanceChanged(base.Add(-25*time.Hour)))
	l.Append(ctx, appearanceChanged(base.Add(-time.Hour)))

	n, err := l.DeleteOlderThan(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted: got %d, want 2", n)
	}

	entries, _ := l.Recent(ctx, 10)
	if len(entries) != 1 {
		t.Errorf("expected 1 remaining entry, got %d", len(entries))
	}
}

func TestDeleteOlderThanKeepsEntriesBeforeFloor(t *testing.T) {
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer d.Close()

	floor := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(d.DB, "boot-1", WithNow(func() time.Time { return base }), WithFloor(floor))
	ctx := context.Background()

	// Recorded before the first sync on a board without an RTC.
	unsynced := time.Unix(90, 0).UTC()
	l.Append(ctx, logic.Event{Timestamp: unsynced, Type: logic.EventTimeSyncFailed, Reason: "no route"})
	l.Append(ctx, appearanceChanged(base.Add(-48*time.Hour)))
	l.Append(ctx, appearanceChanged(base))

	n, err := l.DeleteOlderThan(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted: got %d, want 1", n)
	}

	entries, _ := l.Recent(ctx, 10)
	if len(entries) != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", len(entries))
	}
	if entries[1].Type != logic.EventTimeSyncFailed || !entries[1].Timestamp.Equal(unsynced) {
		t.Errorf("entry recorded before the first sync should survive, got %+v", entries[1])
	}
}

func TestWithNowStampsMissingTimestamps(t *testing.T) {
	d, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer d.Close()

	corrected := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(d.DB, "boot-1", WithNow(func() time.Time { return corrected }))
	l.Append(context.Background(), logic.Event{Type: logic.EventTrustRestored})

	entries, _ := l.Recent(context.Background(), 1)
	if len(entries) != 1 || !entries[0].Timestamp.Equal(corrected) {
		t.Errorf("expected timestamp %v, got %+v", corrected, entries)
	}
}

func TestAppendError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()

	l := New(mockDB, "boot-1")
	mock.ExpectExec(regexp.QuoteMeta(insertSQL)).
		WithArgs("boot-1", "TRUST_LOST", base.Unix(), "20:55", nil, nil, nil, nil, "", "").
		WillReturnError(errors.New("disk I/O error"))

	err = l.Append(context.Background(), logic.Event{Timestamp: base, Type: logic.EventTrustLost, TimeOfDay: logic.NewTimeOfDay(20, 55)})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecentQueryError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectColumns)).WillReturnError(errors.New("database is locked"))

	if _, err := New(mockDB, "b").Recent(context.Background(), 10); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecentScanError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()

	rows := sqlmock.NewRows([]string{"id"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta(selectColumns)).WillReturnRows(rows)

	if _, err := New(mockDB, "b").Recent(context.Background(), 10); err == nil {
		t.Fatal("expected scan error for a short row")
	}
}

func TestDeleteOlderThanError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM light_events`)).WillReturnError(errors.New("readonly"))

	if _, err := New(mockDB, "b").DeleteOlderThan(context.Background(), time.Hour); err == nil {
		t.Fatal("expected error")
	}
}
