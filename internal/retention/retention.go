// Package retention periodically purges old log rows and, if the database
// has still grown past budget, purges more aggressively. Grounded on the
// teacher's internal/retention/service.go Run(ctx) shape, extended with the
// size-based second pass from original_source/src/db.py's delete_old_logs
// contract.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/mareekkk/logstream/internal/store"
)

// Loop runs the periodic time- and size-based purge.
type Loop struct {
	st            *store.Store
	retentionDays int
	maxDBSizeMB   int64
	interval      time.Duration
	log           *slog.Logger
}

func New(st *store.Store, retentionDays int, maxDBSizeMB int64, interval time.Duration, log *slog.Logger) *Loop {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	if maxDBSizeMB <= 0 {
		maxDBSizeMB = 2048
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Loop{st: st, retentionDays: retentionDays, maxDBSizeMB: maxDBSizeMB, interval: interval, log: log}
}

// Run ticks on l.interval, interruptible by ctx, performing one cleanup
// pass immediately and then on every tick.
func (l *Loop) Run(ctx context.Context) {
	l.runOnce()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.runOnce()
		}
	}
}

func (l *Loop) runOnce() {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -l.retentionDays)
	deleted, err := l.st.DeleteBefore(cutoff.Format(time.RFC3339Nano))
	if err != nil {
		l.log.Error("retention cleanup failed", "err", err)
		return
	}

	sizeMB := l.st.SizeBytes() / (1024 * 1024)
	aggressiveDeleted := int64(0)
	if sizeMB > l.maxDBSizeMB {
		aggressiveDays := l.retentionDays * 3 / 4
		if aggressiveDays < 1 {
			aggressiveDays = 1
		}
		aggressiveCutoff := now.AddDate(0, 0, -aggressiveDays)
		n, err := l.st.DeleteBefore(aggressiveCutoff.Format(time.RFC3339Nano))
		if err != nil {
			l.log.Error("aggressive retention cleanup failed", "err", err)
		} else {
			aggressiveDeleted = n
		}
	}

	l.log.Info("retention cleanup completed",
		"deleted", deleted,
		"aggressive_deleted", aggressiveDeleted,
		"db_size_mb", sizeMB,
		"retention_days", l.retentionDays,
	)
}
