// Package history persists one record per finished formatting job so the CLI
// can report on recent builds.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one finished job.
type Record struct {
	JobID       string
	Source      string
	Format      string
	PrimaryRuns int
	Converged   bool
	Outcome     string // success|diverged|failed
	ErrorText   string
	DurationMS  int64
	CreatedAt   time.Time
}

// Store is a SQLite-backed job history.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates a new SQLite-based history store.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		source TEXT NOT NULL,
		format TEXT NOT NULL,
		primary_runs INTEGER NOT NULL,
		converged INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error_text TEXT,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records a finished job.
func (s *Store) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	converged := 0
	if rec.Converged {
		converged = 1
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO jobs (job_id, source, format, primary_runs, converged, outcome, error_text, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.JobID, rec.Source, rec.Format, rec.PrimaryRuns, converged, rec.Outcome, rec.ErrorText, rec.DurationMS, createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert job record: %w", err)
	}
	return nil
}

// Recent returns the most recent job records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT job_id, source, format, primary_runs, converged, outcome, error_text, duration_ms, created_at FROM jobs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query job records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var converged int
		var errText sql.NullString
		var createdAt int64
		if err := rows.Scan(&rec.JobID, &rec.Source, &rec.Format, &rec.PrimaryRuns, &converged, &rec.Outcome, &errText, &rec.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan job record: %w", err)
		}
		rec.Converged = converged != 0
		rec.ErrorText = errText.String
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
