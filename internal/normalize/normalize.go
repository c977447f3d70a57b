// Package normalize maps heterogeneous producer log lines into the single
// canonical schema the store persists. It mirrors three real producer
// schemas seen in the source fleet: two structlog-style JSON emitters and a
// Pino-style JSON emitter with numeric levels, plus a free-text fallback.
//
// Normalize is pure and side-effect free: malformed JSON always falls
// through to the text path, it never returns an error.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/mareekkk/logstream/internal/models"
)

// pinoLevels maps Pino's numeric severities onto the canonical level set.
// Unknown integers fall back to info, same as the structlog/text paths.
var pinoLevels = map[int64]string{
	10: "trace",
	20: "debug",
	30: "info",
	40: "warn",
	50: "error",
	60: "fatal",
}

var traceIDKeys = []string{"trace_id", "traceId", "request_id", "requestId", "x_trace_id"}

// Normalize parses one raw line from a given service into a LogRecord.
// usedFallbackWallclock reports whether the timestamp is the wall-clock
// value taken at parse time (as opposed to one extracted from the line),
// letting callers substitute a better fallback (e.g. a runtime-provided
// timestamp) without re-deriving or value-comparing normalizer output.
func Normalize(rawLine, service string) (rec models.LogRecord, usedFallbackWallclock bool) {
	trimmed := strings.TrimSpace(rawLine)
	rec.Raw = trimmed
	rec.Service = service

	if trimmed == "" {
		rec.Level = "info"
		rec.Timestamp = models.NowISO()
		rec.Message = ""
		return rec, true
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed), &data); err == nil && data != nil {
		rec.Level = extractLevel(data)
		ts, fellBack := extractTimestamp(data)
		rec.Timestamp = ts
		rec.TraceID = extractTraceID(data)
		rec.Message = extractMessage(data, trimmed)
		return rec, fellBack
	}

	rec.Level = textLevel(trimmed)
	rec.Message = trimmed
	rec.Timestamp = models.NowISO()
	return rec, true
}

func extractMessage(data map[string]any, original string) string {
	for _, key := range []string{"event", "msg", "message"} {
		if v, ok := data[key]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return original
	}
	return string(b)
}

func extractLevel(data map[string]any) string {
	if v, ok := data["log_level"]; ok {
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
	}
	if v, ok := data["level"]; ok {
		if n, isInt, ok := asInt(v); ok && isInt {
			if name, known := pinoLevels[n]; known {
				return name
			}
			return "info"
		}
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
	}
	if v, ok := data["levelname"]; ok {
		if s, ok := v.(string); ok {
			return strings.ToLower(s)
		}
	}
	return "info"
}

// extractTimestamp returns the record timestamp and whether it is the
// wall-clock fallback (as opposed to one derived from the payload).
func extractTimestamp(data map[string]any) (string, bool) {
	if v, ok := data["timestamp"]; ok {
		if s, ok := v.(string); ok {
			return s, false
		}
	}
	if v, ok := data["time"]; ok {
		if ms, ok := asFloat(v); ok {
			sec := ms / 1000.0
			whole := int64(sec)
			nsec := int64((sec - float64(whole)) * 1e9)
			t := time.Unix(whole, nsec).UTC()
			return t.Format(time.RFC3339Nano), false
		}
	}
	return models.NowISO(), true
}

func extractTraceID(data map[string]any) string {
	for _, key := range traceIDKeys {
		if v, ok := data[key]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func textLevel(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "traceback"), strings.Contains(lower, "exception"), strings.Contains(lower, "error"):
		return "error"
	case strings.Contains(lower, "warn"):
		return "warn"
	case strings.Contains(lower, "debug"):
		return "debug"
	default:
		return "info"
	}
}

// stringify coerces a decoded JSON value to its string form, treating
// zero-ish values (empty string, false, nil, 0) as absent, matching the
// original "truthy" field-presence semantics.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == 0 {
			return ""
		}
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		b, _ := json.Marshal(t)
		return string(b)
	case bool:
		if !t {
			return ""
		}
		return "true"
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// asInt reports whether v is a JSON number representing a whole value,
// distinguishing Pino's integer levels from structlog's string levels.
func asInt(v any) (n int64, isInt, ok bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false, false
	}
	if f != float64(int64(f)) {
		return 0, false, true
	}
	return int64(f), true, true
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	default:
		return 0, false
	}
}
