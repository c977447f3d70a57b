// Package ingest is the tailer supervisor and per-container tailer: it
// discovers running containers, streams their logs, and pushes normalized,
// scrubbed records into the store and broadcaster. Ported from
// original_source/src/collector.py's _tail_container/_monitor_containers,
// restructured around goroutines and the runtime.Runtime abstraction the
// way thobiasn-tori-cli's LogTailer manages per-container goroutines.
package ingest

import (
	"bufio"
	"context"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mareekkk/logstream/internal/broadcast"
	"github.com/mareekkk/logstream/internal/models"
	"github.com/mareekkk/logstream/internal/normalize"
	"github.com/mareekkk/logstream/internal/runtime"
	"github.com/mareekkk/logstream/internal/scrub"
	"github.com/mareekkk/logstream/internal/store"
)

// batchSize is the number of records a tailer buffers before flushing to
// the store and broadcaster.
const batchSize = 50

// tailer streams and ingests one container's combined log output.
type tailer struct {
	rt          runtime.Runtime
	st          *store.Store
	bc          *broadcast.Broadcaster
	scrubber    *scrub.Scrubber
	log         *slog.Logger
	containerID string
	service     string
	since       string
}

func (t *tailer) run(ctx context.Context) {
	stream, err := t.rt.StreamLogs(ctx, t.containerID, t.since)
	if err != nil {
		t.log.Warn("tailer stream failed", "service", t.service, "container", t.containerID, "err", err)
		return
	}
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	batch := make([]models.LogRecord, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := t.st.InsertBatch(batch); err != nil {
			t.log.Warn("tailer batch insert failed", "service", t.service, "err", err)
		} else {
			for _, rec := range batch {
				t.bc.Publish(rec)
			}
		}
		batch = batch[:0]
	}

	for scanner.Scan() {
		line := sanitizeUTF8(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		runtimeTS, payload := splitRuntimeTimestamp(line)

		rec, usedFallback := normalize.Normalize(payload, t.service)
		if usedFallback && runtimeTS != "" {
			rec.Timestamp = runtimeTS
		}
		rec = t.scrubber.Scrub(rec)

		batch = append(batch, rec)
		if len(batch) >= batchSize {
			flush()
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		t.log.Warn("tailer stream read error", "service", t.service, "container", t.containerID, "err", err)
	}
}

// splitRuntimeTimestamp detects a leading runtime-supplied RFC3339-ish
// timestamp (the docker --timestamps prefix) and splits it from the
// payload. Per the tailer contract, this is only a fallback value: the
// normalizer's own timestamp extraction always takes precedence.
func splitRuntimeTimestamp(line string) (ts string, payload string) {
	if len(line) <= 30 {
		return "", line
	}
	prefix := line
	if len(prefix) > 30 {
		prefix = prefix[:30]
	}
	if !unicode.IsDigit(rune(line[0])) || !strings.Contains(prefix, "T") {
		return "", line
	}
	idx := strings.IndexByte(line, ' ')
	if idx <= 0 {
		return "", line
	}
	return line[:idx], line[idx+1:]
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode
// replacement character, matching Python's decode(errors="replace").
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(r)
	}
	return b.String()
}
