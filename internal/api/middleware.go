package api

import (
	"log/slog"
	"net/http"
	"time"
)

// logMiddleware wraps next so every request logs method/path/status/
// duration, carried over from the teacher's internal/web/middleware.go.
func logMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logger.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the embedded ResponseWriter's Flusher when it has one.
// Without this, wrapping a response in statusWriter silently strips
// http.Flusher support from every handler behind this middleware, since
// interface-embedding promotion only sees statusWriter's own method set.
func (s *statusWriter) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// adminKeyMiddleware enforces the X-Admin-Key header against the
// configured secret. An empty configured key means dev mode: every request
// is allowed through.
func adminKeyMiddleware(adminKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if adminKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-Admin-Key") != adminKey {
			http.Error(w, "invalid admin key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
