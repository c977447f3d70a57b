package retention

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mareekkk/logstream/internal/models"
	"github.com/mareekkk/logstream/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := t.TempDir() + "/t.db"
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.New(db, path)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnceDeletesRowsOlderThanRetentionWindow(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()
	if err := st.InsertBatch([]models.LogRecord{
		{Service: "svc", Level: "info", Timestamp: now.AddDate(0, 0, -10).Format(time.RFC3339Nano), Message: "old"},
		{Service: "svc", Level: "info", Timestamp: now.Format(time.RFC3339Nano), Message: "new"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	l := New(st, 7, 2048, time.Hour, discardLogger())
	l.runOnce()

	recs, err := st.Search(store.SearchParams{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(recs) != 1 || recs[0].Message != "new" {
		t.Fatalf("expected only the new row to survive, got %+v", recs)
	}
}

func TestRunOnceSkipsSizeBasedPassWhenUnderBudget(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()
	if err := st.InsertBatch([]models.LogRecord{
		{Service: "svc", Level: "info", Timestamp: now.AddDate(0, 0, -3).Format(time.RFC3339Nano), Message: "recent-ish"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	l := New(st, 7, 2048, time.Hour, discardLogger())
	l.runOnce()

	recs, err := st.Search(store.SearchParams{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("row within both time and size budget should survive, got %+v", recs)
	}
}

func TestAggressiveCutoffArithmeticFloorsAtOneDay(t *testing.T) {
	cases := map[int]int{7: 5, 4: 3, 1: 1, 0: 1}
	for retentionDays, want := range cases {
		got := retentionDays * 3 / 4
		if got < 1 {
			got = 1
		}
		if got != want {
			t.Fatalf("retentionDays=%d: got aggressive days %d, want %d", retentionDays, got, want)
		}
	}
}

func TestRunOnceForcesAggressiveCutoffWhenOverBudget(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()
	if err := st.InsertBatch([]models.LogRecord{
		{Service: "svc", Level: "info", Timestamp: now.AddDate(0, 0, -6).Format(time.RFC3339Nano), Message: "within-normal-window-but-over-aggressive"},
		{Service: "svc", Level: "info", Timestamp: now.Format(time.RFC3339Nano), Message: "fresh"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Bypass New's clamping (which floors maxDBSizeMB at the 2048 default)
	// so a negative budget forces the size-based branch regardless of the
	// test database's actual on-disk size.
	l := &Loop{st: st, retentionDays: 7, maxDBSizeMB: -1, interval: time.Hour, log: discardLogger()}
	l.runOnce()

	recs, err := st.Search(store.SearchParams{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(recs) != 1 || recs[0].Message != "fresh" {
		t.Fatalf("expected aggressive cutoff (5 days) to remove the 6-day-old row, got %+v", recs)
	}
}

func TestNewClampsInvalidConfig(t *testing.T) {
	st := newTestStore(t)
	l := New(st, 0, 0, 0, discardLogger())
	if l.retentionDays != 7 || l.maxDBSizeMB != 2048 || l.interval != time.Hour {
		t.Fatalf("expected defaults to be applied, got days=%d maxMB=%d interval=%v", l.retentionDays, l.maxDBSizeMB, l.interval)
	}
}
