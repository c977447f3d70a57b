package normalize

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeStructuredStringLevel(t *testing.T) {
	line := `{"event":"request_received","log_level":"info","timestamp":"2025-02-21T10:00:00.123456+00:00","trace_id":"abc-123"}`
	rec, fellBack := Normalize(line, "dispatcher")
	if fellBack {
		t.Fatalf("expected explicit timestamp, not fallback")
	}
	if rec.Service != "dispatcher" || rec.Level != "info" || rec.Message != "request_received" || rec.TraceID != "abc-123" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Timestamp != "2025-02-21T10:00:00.123456+00:00" {
		t.Fatalf("unexpected timestamp: %s", rec.Timestamp)
	}
}

func TestNormalizePinoNumericLevelMillisTime(t *testing.T) {
	line := `{"msg":"fact created","level":30,"time":1708506000123}`
	rec, fellBack := Normalize(line, "memlink-api")
	if fellBack {
		t.Fatalf("expected derived timestamp, not fallback")
	}
	if rec.Level != "info" || rec.Message != "fact created" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		t.Fatalf("timestamp not parseable: %v", err)
	}
	if ts.UTC().Year() != 2024 {
		t.Fatalf("unexpected year: %v", ts)
	}
}

func TestNormalizePinoUnknownLevelDefaultsInfo(t *testing.T) {
	rec, _ := Normalize(`{"msg":"weird","level":99}`, "svc")
	if rec.Level != "info" {
		t.Fatalf("unknown numeric level should default to info, got %s", rec.Level)
	}
}

func TestNormalizeFreeTextTraceback(t *testing.T) {
	line := "Traceback (most recent call last):"
	rec, fellBack := Normalize(line, "svc")
	if !fellBack {
		t.Fatalf("expected wall-clock fallback for free text")
	}
	if rec.Level != "error" || rec.Message != line {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestNormalizeFreeTextLevels(t *testing.T) {
	cases := map[string]string{
		"warn: disk low":          "warn",
		"debug: connection opened": "debug",
		"hello world":              "info",
		"caught an exception here": "error",
	}
	for line, want := range cases {
		rec, _ := Normalize(line, "svc")
		if rec.Level != want {
			t.Fatalf("line %q: got level %s, want %s", line, rec.Level, want)
		}
	}
}

func TestNormalizeEmptyLine(t *testing.T) {
	rec, fellBack := Normalize("   ", "svc")
	if !fellBack || rec.Level != "info" || rec.Message != "" {
		t.Fatalf("unexpected record: %+v fallback=%v", rec, fellBack)
	}
}

func TestNormalizeMalformedJSONFallsThroughToText(t *testing.T) {
	rec, _ := Normalize(`{"event": "oops"`, "svc")
	if rec.Message != `{"event": "oops"` {
		t.Fatalf("expected malformed JSON to fall through verbatim, got %q", rec.Message)
	}
}

func TestNormalizeLevelNameField(t *testing.T) {
	rec, _ := Normalize(`{"message":"stdlib style","levelname":"WARNING"}`, "svc")
	if rec.Level != "warning" {
		t.Fatalf("expected levelname fallback, got %s", rec.Level)
	}
}

func TestNormalizeTraceIDAliases(t *testing.T) {
	for _, key := range []string{"trace_id", "traceId", "request_id", "requestId", "x_trace_id"} {
		line := `{"event":"x","` + key + `":"t-1"}`
		rec, _ := Normalize(line, "svc")
		if rec.TraceID != "t-1" {
			t.Fatalf("key %s: expected trace id t-1, got %q", key, rec.TraceID)
		}
	}
}

func TestNormalizeMessageFallsBackToSerializedObject(t *testing.T) {
	rec, _ := Normalize(`{"log_level":"info","foo":"bar"}`, "svc")
	if !strings.Contains(rec.Message, "foo") {
		t.Fatalf("expected re-serialized object as message, got %q", rec.Message)
	}
}

func TestNormalizeOutputAlwaysHasRequestedService(t *testing.T) {
	for _, line := range []string{"", "plain text", `{"msg":"x","level":10}`} {
		rec, _ := Normalize(line, "myservice")
		if rec.Service != "myservice" {
			t.Fatalf("line %q: service mismatch %q", line, rec.Service)
		}
		if _, err := time.Parse(time.RFC3339Nano, rec.Timestamp); err != nil {
			t.Fatalf("line %q: timestamp not ISO-8601: %v", line, err)
		}
	}
}
