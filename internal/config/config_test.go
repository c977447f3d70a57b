package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"LOGSTREAM_ADMIN_KEY", "LOGSTREAM_DB_PATH", "LOGSTREAM_LOG_RETENTION_DAYS",
		"LOGSTREAM_MAX_DB_SIZE_MB", "LOGSTREAM_RETENTION_CHECK_INTERVAL_SECONDS",
		"LOGSTREAM_COLLECTOR_RESTART_DELAY_SECONDS", "LOGSTREAM_SSE_MAX_LINES_PER_SECOND",
		"LOGSTREAM_EXTRA_SCRUB_PATTERNS", "LOGSTREAM_ADDR",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.AdminKey != "" {
		t.Fatalf("expected empty admin key by default, got %q", cfg.AdminKey)
	}
	if cfg.DBPath != "/data/logstream.db" {
		t.Fatalf("unexpected default db path: %q", cfg.DBPath)
	}
	if cfg.LogRetentionDays != 7 {
		t.Fatalf("unexpected default retention days: %d", cfg.LogRetentionDays)
	}
	if cfg.MaxDBSizeMB != 2048 {
		t.Fatalf("unexpected default max db size: %d", cfg.MaxDBSizeMB)
	}
	if cfg.RetentionCheckInterval != time.Hour {
		t.Fatalf("unexpected default retention interval: %v", cfg.RetentionCheckInterval)
	}
	if cfg.SSEMaxLinesPerSecond != 50 {
		t.Fatalf("unexpected default sse pacing: %d", cfg.SSEMaxLinesPerSecond)
	}
	if cfg.ExtraScrubPatterns != nil {
		t.Fatalf("expected nil extra patterns by default, got %v", cfg.ExtraScrubPatterns)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("LOGSTREAM_ADMIN_KEY", "s3cret")
	t.Setenv("LOGSTREAM_LOG_RETENTION_DAYS", "14")
	t.Setenv("LOGSTREAM_MAX_DB_SIZE_MB", "4096")
	t.Setenv("LOGSTREAM_RETENTION_CHECK_INTERVAL_SECONDS", "1800")
	t.Setenv("LOGSTREAM_EXTRA_SCRUB_PATTERNS", "zz-[0-9]{4}, yy-[a-z]+")

	cfg := Load()
	if cfg.AdminKey != "s3cret" {
		t.Fatalf("admin key override not applied: %q", cfg.AdminKey)
	}
	if cfg.LogRetentionDays != 14 {
		t.Fatalf("retention days override not applied: %d", cfg.LogRetentionDays)
	}
	if cfg.MaxDBSizeMB != 4096 {
		t.Fatalf("max db size override not applied: %d", cfg.MaxDBSizeMB)
	}
	if cfg.RetentionCheckInterval != 30*time.Minute {
		t.Fatalf("retention interval override not applied: %v", cfg.RetentionCheckInterval)
	}
	if len(cfg.ExtraScrubPatterns) != 2 || cfg.ExtraScrubPatterns[0] != "zz-[0-9]{4}" || cfg.ExtraScrubPatterns[1] != "yy-[a-z]+" {
		t.Fatalf("unexpected extra patterns: %v", cfg.ExtraScrubPatterns)
	}
}

func TestGetenvIntFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("LOGSTREAM_LOG_RETENTION_DAYS", "not-a-number")
	cfg := Load()
	if cfg.LogRetentionDays != 7 {
		t.Fatalf("expected fallback to default on invalid int, got %d", cfg.LogRetentionDays)
	}
}
