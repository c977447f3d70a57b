package store

import (
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mareekkk/logstream/internal/models"
)

// Store wraps a *sql.DB with the query shapes the ingestion and API layers
// need: batch insert, full-text + filtered search, id-based context
// expansion, distinct services, and retention deletes.
type Store struct {
	db   *sql.DB
	path string
}

func New(db *sql.DB, path string) *Store {
	return &Store{db: db, path: path}
}

// Close releases the underlying database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBatch inserts entries in a single transaction, matching the
// original service's insert_logs_batch. A nil or empty slice is a no-op.
func (s *Store) InsertBatch(entries []models.LogRecord) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO logs (service, level, timestamp, trace_id, message, raw) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var traceID any
		if e.TraceID != "" {
			traceID = e.TraceID
		}
		if _, err := stmt.Exec(e.Service, e.Level, e.Timestamp, traceID, e.Message, e.Raw); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert log: %w", err)
		}
	}
	return tx.Commit()
}

// SearchParams holds every optional filter accepted by the search
// operation. Zero values mean "unfiltered" for that dimension.
type SearchParams struct {
	Query   string
	Service string
	Level   string
	FromTS  string
	ToTS    string
	TraceID string
	Limit   int
	Offset  int
}

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)

// clampLimitOffset enforces the search pagination invariants: limit in
// [1, 1000] (default 100), offset >= 0 (default 0).
func clampLimitOffset(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Search runs an FTS5 MATCH query (when Query is set) combined
// conjunctively with the remaining filters, newest first.
func (s *Store) Search(p SearchParams) ([]models.LogRecord, error) {
	limit, offset := clampLimitOffset(p.Limit, p.Offset)

	var conds []string
	var args []any

	if p.Query != "" {
		conds = append(conds, "logs.id IN (SELECT rowid FROM logs_fts WHERE logs_fts MATCH ?)")
		args = append(args, p.Query)
	}
	if p.Service != "" {
		conds = append(conds, "logs.service = ?")
		args = append(args, p.Service)
	}
	if p.Level != "" {
		conds = append(conds, "logs.level = ?")
		args = append(args, p.Level)
	}
	if p.FromTS != "" {
		conds = append(conds, "logs.timestamp >= ?")
		args = append(args, p.FromTS)
	}
	if p.ToTS != "" {
		conds = append(conds, "logs.timestamp <= ?")
		args = append(args, p.ToTS)
	}
	if p.TraceID != "" {
		conds = append(conds, "logs.trace_id = ?")
		args = append(args, p.TraceID)
	}

	where := "1=1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	query := fmt.Sprintf(
		`SELECT id, service, level, timestamp, trace_id, message, raw FROM logs
		 WHERE %s ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, where)
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Context returns up to lines rows surrounding id, same service, ordered by
// id ascending. Unlike the original implementation's timestamp-offset
// subqueries (which misbehave when multiple rows share a timestamp), this
// expands by id directly: deterministic and immune to timestamp collisions.
func (s *Store) Context(id int64, lines int) ([]models.LogRecord, error) {
	if lines <= 0 {
		lines = 20
	}
	if lines > 200 {
		lines = 200
	}

	var service string
	if err := s.db.QueryRow(`SELECT service FROM logs WHERE id = ?`, id).Scan(&service); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup target: %w", err)
	}

	before := lines / 2
	after := lines / 2

	beforeRows, err := s.db.Query(
		`SELECT id, service, level, timestamp, trace_id, message, raw FROM logs
		 WHERE service = ? AND id <= ? ORDER BY id DESC LIMIT ?`,
		service, id, before)
	if err != nil {
		return nil, fmt.Errorf("context before: %w", err)
	}
	beforeRecs, err := scanRecords(beforeRows)
	if err != nil {
		return nil, err
	}

	afterRows, err := s.db.Query(
		`SELECT id, service, level, timestamp, trace_id, message, raw FROM logs
		 WHERE service = ? AND id > ? ORDER BY id ASC LIMIT ?`,
		service, id, after)
	if err != nil {
		return nil, fmt.Errorf("context after: %w", err)
	}
	afterRecs, err := scanRecords(afterRows)
	if err != nil {
		return nil, err
	}

	all := append(beforeRecs, afterRecs...)
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// Services returns the distinct set of service names observed so far.
func (s *Store) Services() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT service FROM logs ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("services query: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var svc string
		if err := rows.Scan(&svc); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// DeleteBefore deletes every row with timestamp < cutoff, rebuilding the
// FTS5 index only when rows were actually removed (rebuilding an untouched
// index is wasted I/O on a large table).
func (s *Store) DeleteBefore(cutoff string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old logs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		if _, err := s.db.Exec(`INSERT INTO logs_fts(logs_fts) VALUES ('rebuild')`); err != nil {
			return deleted, fmt.Errorf("rebuild fts: %w", err)
		}
	}
	return deleted, nil
}

// SizeBytes returns the on-disk size of the database file, or 0 if it
// cannot be stat'd (e.g. in-memory databases in tests).
func (s *Store) SizeBytes() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func scanRecords(rows *sql.Rows) ([]models.LogRecord, error) {
	var out []models.LogRecord
	for rows.Next() {
		var r models.LogRecord
		var traceID sql.NullString
		var raw sql.NullString
		if err := rows.Scan(&r.ID, &r.Service, &r.Level, &r.Timestamp, &traceID, &r.Message, &raw); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		r.TraceID = traceID.String
		r.Raw = raw.String
		out = append(out, r)
	}
	return out, rows.Err()
}
