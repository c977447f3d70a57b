// Package config loads environment-variable configuration, mirroring the
// teacher's getenv/getenvInt/getenvDuration helper pattern, generalized to
// the LOGSTREAM_ prefix and variable table from original_source/src/config.py.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the server reads from its environment. Zero
// values are never used directly; Load always applies the documented
// defaults.
type Config struct {
	AdminKey               string
	DBPath                 string
	LogRetentionDays       int
	MaxDBSizeMB            int64
	RetentionCheckInterval time.Duration
	CollectorRestartDelay  time.Duration
	SSEMaxLinesPerSecond   int
	ExtraScrubPatterns     []string
	Addr                   string
}

// Load reads configuration from the environment, applying defaults for
// every unset variable.
func Load() Config {
	return Config{
		AdminKey:               os.Getenv("LOGSTREAM_ADMIN_KEY"),
		DBPath:                 getenv("LOGSTREAM_DB_PATH", "/data/logstream.db"),
		LogRetentionDays:       getenvInt("LOGSTREAM_LOG_RETENTION_DAYS", 7),
		MaxDBSizeMB:            getenvInt64("LOGSTREAM_MAX_DB_SIZE_MB", 2048),
		RetentionCheckInterval: getenvDuration("LOGSTREAM_RETENTION_CHECK_INTERVAL_SECONDS", time.Hour),
		CollectorRestartDelay:  getenvDuration("LOGSTREAM_COLLECTOR_RESTART_DELAY_SECONDS", 5*time.Second),
		SSEMaxLinesPerSecond:   getenvInt("LOGSTREAM_SSE_MAX_LINES_PER_SECOND", 50),
		ExtraScrubPatterns:     getenvList("LOGSTREAM_EXTRA_SCRUB_PATTERNS"),
		Addr:                   getenv("LOGSTREAM_ADDR", ":8080"),
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvInt64(k string, d int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return d
	}
	return n
}

func getenvDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	// These variables are named *_SECONDS; accept a bare integer as
	// seconds, falling back to Go duration syntax for flexibility.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}

// getenvList splits a comma-separated environment variable, trimming
// whitespace and dropping empty entries. An unset or empty variable yields
// a nil slice.
func getenvList(k string) []string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
