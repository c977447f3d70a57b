// Package api exposes the HTTP surface: health, search, context, services,
// and the SSE live-tail stream. Routing/middleware shape follows the
// teacher's internal/web package; handler semantics are ported from
// original_source/src/api.py.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mareekkk/logstream/internal/broadcast"
	"github.com/mareekkk/logstream/internal/models"
	"github.com/mareekkk/logstream/internal/store"
)

// Server wires the store and broadcaster to HTTP handlers.
type Server struct {
	st                   *store.Store
	bc                   *broadcast.Broadcaster
	log                  *slog.Logger
	adminKey             string
	maxDBSizeMB          int64
	retentionDays        int
	sseMaxLinesPerSecond int
}

func NewServer(st *store.Store, bc *broadcast.Broadcaster, log *slog.Logger, adminKey string, maxDBSizeMB int64, retentionDays, sseMaxLinesPerSecond int) *Server {
	if sseMaxLinesPerSecond <= 0 {
		sseMaxLinesPerSecond = 50
	}
	return &Server{
		st:                   st,
		bc:                   bc,
		log:                  log,
		adminKey:             adminKey,
		maxDBSizeMB:          maxDBSizeMB,
		retentionDays:        retentionDays,
		sseMaxLinesPerSecond: sseMaxLinesPerSecond,
	}
}

// Routes builds the complete handler tree, auth-gated per endpoint as
// spec'd: /health is open, every /v1/logs/* route requires the admin key.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /v1/logs/search", adminKeyMiddleware(s.adminKey, http.HandlerFunc(s.handleSearch)))
	mux.Handle("GET /v1/logs/{id}/context", adminKeyMiddleware(s.adminKey, http.HandlerFunc(s.handleContext)))
	mux.Handle("GET /v1/logs/services", adminKeyMiddleware(s.adminKey, http.HandlerFunc(s.handleServices)))
	mux.Handle("GET /v1/logs/stream", adminKeyMiddleware(s.adminKey, http.HandlerFunc(s.handleStream)))
	return logMiddleware(mux, s.log)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	size := s.st.SizeBytes()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"db_size_bytes":  size,
		"db_size_mb":     round2(float64(size) / 1024.0 / 1024.0),
		"max_db_size_mb": s.maxDBSizeMB,
		"retention_days": s.retentionDays,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if q.Get("limit") == "" {
		limit = 100
	}

	params := store.SearchParams{
		Query:   q.Get("q"),
		Service: q.Get("service"),
		Level:   q.Get("level"),
		FromTS:  q.Get("from"),
		ToTS:    q.Get("to"),
		TraceID: q.Get("trace_id"),
		Limit:   limit,
		Offset:  offset,
	}

	recs, err := s.st.Search(params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []models.LogRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": recs,
		"count":   len(recs),
		"limit":   params.Limit,
		"offset":  params.Offset,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid log id", http.StatusBadRequest)
		return
	}
	lines, _ := strconv.Atoi(r.URL.Query().Get("lines"))
	if lines <= 0 {
		lines = 20
	}
	if lines > 200 {
		lines = 200
	}

	recs, err := s.st.Context(id, lines)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(recs) == 0 {
		http.Error(w, "log entry not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":   recs,
		"target_id": id,
	})
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := s.st.Services()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": svcs})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	service := r.URL.Query().Get("service")
	level := r.URL.Query().Get("level")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, subID := s.bc.Subscribe()
	defer s.bc.Unsubscribe(subID)

	pace := time.Second / time.Duration(s.sseMaxLinesPerSecond)
	ctx := r.Context()

	keepalive := time.NewTimer(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, open := <-ch:
			if !open {
				return
			}
			if service != "" && rec.Service != service {
				continue
			}
			if level != "" && rec.Level != level {
				continue
			}
			payload, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", payload)
			flusher.Flush()
			time.Sleep(pace)
			if !keepalive.Stop() {
				<-keepalive.C
			}
			keepalive.Reset(30 * time.Second)
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
			keepalive.Reset(30 * time.Second)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
