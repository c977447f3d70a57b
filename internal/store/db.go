// Package store is the SQLite-backed persistence and search layer. Schema
// and pragmas follow the teacher's internal/db package; the logs/logs_fts
// tables and sync triggers are ported from original_source/src/db.py.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if needed) the SQLite database at path in WAL mode
// with a 5s busy timeout, matching the original service's connection
// settings. Go's database/sql pool replaces the original's thread-local
// connection: a single *sql.DB is safe for concurrent use by the ingest and
// API layers.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL; PRAGMA temp_store=MEMORY;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// schema creates the logs table, its lookup indexes, and the logs_fts FTS5
// shadow table with sync triggers. Requires the sqlite_fts5 build tag on
// github.com/mattn/go-sqlite3.
const schema = `
CREATE TABLE IF NOT EXISTS logs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	service   TEXT    NOT NULL,
	level     TEXT    NOT NULL DEFAULT 'info',
	timestamp TEXT    NOT NULL,
	trace_id  TEXT,
	message   TEXT    NOT NULL,
	raw       TEXT
);

CREATE INDEX IF NOT EXISTS idx_logs_service   ON logs(service);
CREATE INDEX IF NOT EXISTS idx_logs_level     ON logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_trace_id  ON logs(trace_id);

CREATE VIRTUAL TABLE IF NOT EXISTS logs_fts USING fts5(
	message,
	content=logs,
	content_rowid=id
);

CREATE TRIGGER IF NOT EXISTS logs_ai AFTER INSERT ON logs BEGIN
	INSERT INTO logs_fts(rowid, message) VALUES (new.id, new.message);
END;

CREATE TRIGGER IF NOT EXISTS logs_ad AFTER DELETE ON logs BEGIN
	INSERT INTO logs_fts(logs_fts, rowid, message) VALUES ('delete', old.id, old.message);
END;
`

// Migrate applies the schema. Safe to call every startup; every statement
// is idempotent.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
