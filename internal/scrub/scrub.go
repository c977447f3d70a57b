// Package scrub redacts secrets from log records before they reach the
// store. Patterns are modeled after the upstream fleet's own lightweight
// DLP tier (see original_source/src/scrubber.go's docstring for the
// provenance note this package continues) and are applied deterministically:
// same input and pattern set always yields the same output.
package scrub

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/mareekkk/logstream/internal/models"
)

const redacted = "[REDACTED]"

// pattern pairs a name (for logging) with its compiled matcher. bearerPrefix
// marks the one pattern whose matched "Bearer " prefix must survive
// redaction.
type pattern struct {
	name         string
	re           *regexp.Regexp
	bearerPrefix bool
}

// builtinPatterns is the fixed, ordered set of secret shapes every Scrubber
// recognizes. Order matters only for log readability, not correctness: every
// pattern is applied regardless of whether an earlier one matched.
var builtinPatterns = []pattern{
	{name: "openai_key", re: regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{name: "stripe_key", re: regexp.MustCompile(`sk_(live|test)_[A-Za-z0-9]{20,}`)},
	{name: "github_token", re: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{name: "slack_token", re: regexp.MustCompile(`xox[baprs]-[A-Za-z0-9\-]{10,}`)},
	{name: "bearer_token", re: regexp.MustCompile(`(?i)(Bearer\s+)[A-Za-z0-9_\-.]{20,}`), bearerPrefix: true},
	{name: "jwt", re: regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)},
	{name: "connection_string", re: regexp.MustCompile(`(?i)(postgres|mysql|mongodb|redis|amqp)://[^\s"']{10,}`)},
	{name: "api_key_assignment", re: regexp.MustCompile(`(?i)(?:api[_-]?key|apikey)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{20,}['"]?`)},
	{name: "password_assignment", re: regexp.MustCompile(`(?i)(?:password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`)},
	{name: "secret_assignment", re: regexp.MustCompile(`(?i)(?:secret|token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{20,}['"]?`)},
	{name: "aws_access_key", re: regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{name: "private_key", re: regexp.MustCompile(`-----BEGIN\s+(RSA\s+)?PRIVATE\s+KEY-----`)},
}

// Scrubber applies the built-in pattern set plus any valid user-supplied
// extra patterns to LogRecord message/raw fields.
type Scrubber struct {
	patterns []pattern
}

// New compiles the built-in patterns plus extraPatterns (raw regex source
// strings, e.g. from LOGSTREAM_EXTRA_SCRUB_PATTERNS). An invalid extra
// pattern is logged once and skipped; it never prevents startup.
func New(extraPatterns []string, log *slog.Logger) *Scrubber {
	all := make([]pattern, len(builtinPatterns))
	copy(all, builtinPatterns)
	for i, raw := range extraPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			if log != nil {
				log.Warn("invalid scrub pattern, skipping", "pattern", raw, "err", err)
			}
			continue
		}
		all = append(all, pattern{name: "custom_" + strconv.Itoa(i), re: re})
	}
	return &Scrubber{patterns: all}
}

// optOutStrategies are the logging_strategy values that mean "upstream
// already redacted this entry, leave it alone."
var optOutStrategies = map[string]bool{"redacted": true, "partial": true}

// shouldSkip reports whether raw declares an upstream redaction opt-out.
func shouldSkip(raw string) bool {
	if raw == "" {
		return false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil || data == nil {
		return false
	}
	strategy, _ := data["logging_strategy"].(string)
	return optOutStrategies[strategy]
}

// Scrub redacts secrets from rec.Message and rec.Raw, unless rec.Raw opts
// out via logging_strategy. Returns a new record; the input is not mutated.
func (s *Scrubber) Scrub(rec models.LogRecord) models.LogRecord {
	if shouldSkip(rec.Raw) {
		return rec
	}
	rec.Message = s.redact(rec.Message)
	rec.Raw = s.redact(rec.Raw)
	return rec
}

func (s *Scrubber) redact(text string) string {
	result := text
	for _, p := range s.patterns {
		if !p.re.MatchString(result) {
			continue
		}
		if p.bearerPrefix {
			result = p.re.ReplaceAllString(result, "${1}"+redacted)
		} else {
			result = p.re.ReplaceAllString(result, redacted)
		}
	}
	return result
}
