package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/gepa-next/innerloop/internal/events"
)

// SQLiteStore persists jobs, events, and idempotency records in SQLite.
// WAL journaling plus a busy timeout keep single-writer contention bounded.
type SQLiteStore struct {
	conn       *sql.DB
	bufferSize int
}

// OpenSQLite creates or opens the database at path and runs migrations.
func OpenSQLite(path string, bufferSize int) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore{conn: conn, bufferSize: bufferSize}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
    id          TEXT PRIMARY KEY,
    status      TEXT NOT NULL,
    created_at  REAL NOT NULL,
    updated_at  REAL NOT NULL,
    result      TEXT
);

CREATE TABLE IF NOT EXISTS events (
    job_id      TEXT NOT NULL,
    id          INTEGER NOT NULL,
    envelope    TEXT NOT NULL,
    PRIMARY KEY (job_id, id)
);

CREATE TABLE IF NOT EXISTS idempotency (
    key         TEXT PRIMARY KEY,
    job_id      TEXT NOT NULL,
    created_at  REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveJob(rec *JobRecord) error {
	var result *string
	if rec.Result != nil {
		str := string(rec.Result)
		result = &str
	}

	query := `
		INSERT INTO jobs (id, status, created_at, updated_at, result)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status     = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			result     = excluded.result
	`
	if _, err := s.conn.Exec(query, rec.ID, rec.Status, rec.CreatedAt, rec.UpdatedAt, result); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(id string) (*JobRecord, error) {
	query := `SELECT id, status, created_at, updated_at, result FROM jobs WHERE id = ?`

	rec := &JobRecord{}
	var result sql.NullString
	err := s.conn.QueryRow(query, id).Scan(&rec.ID, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &result)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if result.Valid {
		rec.Result = []byte(result.String)
	}
	return rec, nil
}

func (s *SQLiteStore) ListJobs() ([]*JobRecord, error) {
	query := `SELECT id, status, created_at, updated_at, result FROM jobs ORDER BY created_at DESC`

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*JobRecord
	for rows.Next() {
		rec := &JobRecord{}
		var result sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &result); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if result.Valid {
			rec.Result = []byte(result.String)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) DeleteJob(id string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM events WHERE job_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete job events: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveEvent(jobID string, eventID int64, env events.Envelope) error {
	raw, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT OR REPLACE INTO events (job_id, id, envelope) VALUES (?, ?, ?)`
	if _, err := tx.Exec(query, jobID, eventID, string(raw)); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	// Amortized ring buffer: drop entries that fell out of the window.
	cutoff := eventID - int64(s.bufferSize)
	if cutoff > 0 {
		if _, err := tx.Exec(`DELETE FROM events WHERE job_id = ? AND id <= ?`, jobID, cutoff); err != nil {
			return fmt.Errorf("failed to prune events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EventsSince(jobID string, eventID int64) ([]events.Envelope, error) {
	query := `SELECT envelope FROM events WHERE job_id = ? AND id > ? ORDER BY id`

	rows, err := s.conn.Query(query, jobID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []events.Envelope
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		env, err := events.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode stored envelope: %w", err)
		}
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveIdempotency(key, jobID string, ts float64) error {
	query := `INSERT OR REPLACE INTO idempotency (key, job_id, created_at) VALUES (?, ?, ?)`
	if _, err := s.conn.Exec(query, key, jobID, ts); err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetIdempotent(key string, now, ttl float64) (string, error) {
	query := `SELECT job_id, created_at FROM idempotency WHERE key = ?`

	var jobID string
	var createdAt float64
	err := s.conn.QueryRow(query, key).Scan(&jobID, &createdAt)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get idempotency record: %w", err)
	}
	if now-createdAt < ttl {
		return jobID, nil
	}
	return "", nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
