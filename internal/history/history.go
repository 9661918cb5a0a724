// Package history persists a record of past runs in a local SQLite
// database under the project's .devserve directory.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values recorded for finished runs.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Run is one row of the run history.
type Run struct {
	ID        int64
	Project   string
	Framework string
	Port      int
	PID       int
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   string
	Warning   string
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project    TEXT NOT NULL,
	framework  TEXT NOT NULL,
	port       INTEGER NOT NULL,
	pid        INTEGER NOT NULL,
	started_at TEXT NOT NULL,
	ended_at   TEXT,
	outcome    TEXT NOT NULL DEFAULT '',
	warning    TEXT NOT NULL DEFAULT ''
);`

// Open creates or opens the history database under projectDir.
func Open(projectDir string) (*Store, error) {
	dir := filepath.Join(projectDir, ".devserve")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordStart inserts a new run row and returns its id.
func (s *Store) RecordStart(project, framework string, port, pid int) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO runs (project, framework, port, pid, started_at) VALUES (?, ?, ?, ?, ?)`,
		project, framework, port, pid, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record run start: %w", err)
	}
	return result.LastInsertId()
}

// RecordEnd finalizes a run row with its outcome and any shutdown warning.
func (s *Store) RecordEnd(id int64, outcome, warning string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET ended_at = ?, outcome = ?, warning = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), outcome, warning, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, project, framework, port, pid, started_at, COALESCE(ended_at, ''), outcome, warning
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, ended string
		if err := rows.Scan(&run.ID, &run.Project, &run.Framework, &run.Port, &run.PID,
			&started, &ended, &run.Outcome, &run.Warning); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("failed to parse run start time: %w", err)
		}
		// A still-running or crashed run has no end time recorded.
		if ended != "" {
			if run.EndedAt, err = time.Parse(time.RFC3339Nano, ended); err != nil {
				return nil, fmt.Errorf("failed to parse run end time: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
