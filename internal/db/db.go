package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sigreer/diskclean/internal/clean"
)

// DefaultPath is the default database location
const DefaultPath = "/var/lib/diskclean/history.db"

var ErrRunNotFound = errors.New("cleaning run not found")

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// New opens or creates the SQLite database at the given path
func New(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	db := &DB{conn: conn, path: path, now: time.Now}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// migrate runs the database schema migrations
func (d *DB) migrate() error {
	_, err := d.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var version int
	err = d.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return err
	}

	migrations := []string{
		migrationV1,
	}

	for i, migration := range migrations {
		v := i + 1
		if v <= version {
			continue
		}

		tx, err := d.conn.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(migration); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", v, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			tx.Rollback()
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// migrationV1 creates the cleaning history schema
const migrationV1 = `
-- One row per cleaning run
CREATE TABLE IF NOT EXISTS clean_runs (
    id INTEGER PRIMARY KEY,
    uuid TEXT UNIQUE NOT NULL,
    node TEXT NOT NULL,
    managers TEXT,
    steps INTEGER DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_node ON clean_runs(node);
CREATE INDEX IF NOT EXISTS idx_runs_status ON clean_runs(status);

-- Outcome of every executed step
CREATE TABLE IF NOT EXISTS step_results (
    id INTEGER PRIMARY KEY,
    run_id INTEGER NOT NULL REFERENCES clean_runs(id),
    step TEXT NOT NULL,
    priority INTEGER,
    status TEXT NOT NULL,
    error TEXT,
    started_at TIMESTAMP,
    duration_ns INTEGER
);

CREATE INDEX IF NOT EXISTS idx_steps_run ON step_results(run_id);

-- Root disks matched by the node's hints
CREATE TABLE IF NOT EXISTS root_disks (
    id INTEGER PRIMARY KEY,
    run_id INTEGER NOT NULL REFERENCES clean_runs(id),
    name TEXT NOT NULL,
    serial TEXT,
    wwn TEXT,
    model TEXT,
    by_path TEXT,
    size_bytes INTEGER
);

CREATE INDEX IF NOT EXISTS idx_root_disks_run ON root_disks(run_id);
CREATE INDEX IF NOT EXISTS idx_root_disks_serial ON root_disks(serial);
`

// Run is a cleaning run as stored in the history
type Run struct {
	ID         int64           `json:"-"`
	UUID       string          `json:"id"`
	Node       string          `json:"node"`
	Managers   string          `json:"managers,omitempty"`
	Steps      int             `json:"steps"`
	Status     clean.RunStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Helper functions for nullable values
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
