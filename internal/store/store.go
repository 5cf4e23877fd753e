// Package store persists pipeline runs in SQLite: one row per run plus the
// accepted records and classified batch failures, queryable per run.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"faqforge/internal/generation"
	"faqforge/internal/pipeline"
)

// Store wraps the SQLite database holding run history.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open initializes the database at path, creating the directory and schema
// as needed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		environment TEXT,
		requested INTEGER NOT NULL,
		obtained INTEGER NOT NULL,
		accepted INTEGER NOT NULL,
		aborted INTEGER NOT NULL DEFAULT 0,
		abort_reason TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		keywords TEXT,
		difficulty TEXT,
		segment TEXT,
		category TEXT,
		subcategory TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);

	CREATE TABLE IF NOT EXISTS failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		category TEXT NOT NULL,
		batch INTEGER NOT NULL,
		reason TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		detail TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records one pipeline run together with its accepted records and
// batch failures, atomically.
func (s *Store) SaveRun(report *pipeline.AggregateReport, accepted []generation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, environment, requested, obtained, accepted, aborted, abort_reason, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.Environment,
		report.TotalRequested(),
		report.TotalObtained(),
		len(accepted),
		boolToInt(report.Aborted),
		report.AbortReason,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	recStmt, err := tx.Prepare(`
		INSERT INTO records (run_id, position, question, answer, keywords, difficulty, segment, category, subcategory)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer recStmt.Close()

	for i, rec := range accepted {
		keywords, err := json.Marshal(rec.Keywords)
		if err != nil {
			return fmt.Errorf("failed to marshal keywords: %w", err)
		}
		if _, err := recStmt.Exec(
			report.RunID, i+1,
			rec.Question, rec.Answer, string(keywords),
			rec.Difficulty, rec.Segment, rec.Category, rec.Subcategory,
		); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i+1, err)
		}
	}

	for _, f := range report.Failures {
		if _, err := tx.Exec(`
			INSERT INTO failures (run_id, category, batch, reason, attempts, detail)
			VALUES (?, ?, ?, ?, ?, ?)`,
			report.RunID, f.Category, f.Batch, f.Reason, f.Attempts, f.Detail,
		); err != nil {
			return fmt.Errorf("failed to insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID          string
	Environment string
	Requested   int
	Obtained    int
	Accepted    int
	Aborted     bool
	AbortReason string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Runs returns all recorded runs, newest first.
func (s *Store) Runs() ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, environment, requested, obtained, accepted, aborted, abort_reason, started_at, finished_at
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			run      RunSummary
			aborted  int
			started  string
			finished string
		)
		if err := rows.Scan(&run.ID, &run.Environment, &run.Requested, &run.Obtained,
			&run.Accepted, &aborted, &run.AbortReason, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Aborted = aborted != 0
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, run)
	}
	return out, rows.Err()
}

// Records returns the accepted records of one run in insertion order.
func (s *Store) Records(runID string) ([]generation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT question, answer, keywords, difficulty, segment, category, subcategory
		FROM records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []generation.Record
	for rows.Next() {
		var (
			rec      generation.Record
			keywords string
		)
		if err := rows.Scan(&rec.Question, &rec.Answer, &keywords,
			&rec.Difficulty, &rec.Segment, &rec.Category, &rec.Subcategory); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if keywords != "" {
			if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
				return nil, fmt.Errorf("failed to unmarshal keywords: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Failures returns the classified batch failures of one run.
func (s *Store) Failures(runID string) ([]pipeline.BatchFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT category, batch, reason, attempts, detail
		FROM failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var out []pipeline.BatchFailure
	for rows.Next() {
		var f pipeline.BatchFailure
		if err := rows.Scan(&f.Category, &f.Batch, &f.Reason, &f.Attempts, &f.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
