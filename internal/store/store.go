package store

import (
	"encoding/json"
	"fmt"

	"github.com/gepa-next/innerloop/internal/config"
	"github.com/gepa-next/innerloop/internal/events"
)

// JobRecord is the durable projection of a job. Timestamps are float
// seconds, matching the envelope representation.
type JobRecord struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	CreatedAt float64         `json:"created_at"`
	UpdatedAt float64         `json:"updated_at"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Store is the durable backend behind the registry: job rows, a per-job
// bounded event log, and the idempotency index. Implementations are safe
// for concurrent use and never block on the registry.
//
// Missing rows are reported as (nil, "") returns, not errors; errors are
// reserved for I/O failures.
type Store interface {
	// SaveJob upserts the record by id.
	SaveJob(rec *JobRecord) error

	// GetJob returns a snapshot of the job or nil if absent.
	GetJob(id string) (*JobRecord, error)

	// ListJobs returns all jobs, newest first.
	ListJobs() ([]*JobRecord, error)

	// DeleteJob removes the job row and all of its events.
	DeleteJob(id string) error

	// SaveEvent appends an envelope, then prunes events with
	// id <= id - bufferSize for that job.
	SaveEvent(jobID string, eventID int64, env events.Envelope) error

	// EventsSince returns stored envelopes with id > eventID, ordered by id.
	EventsSince(jobID string, eventID int64) ([]events.Envelope, error)

	// SaveIdempotency upserts key -> (jobID, ts).
	SaveIdempotency(key, jobID string, ts float64) error

	// GetIdempotent returns the job id recorded under key if the record
	// is younger than ttl seconds, otherwise "".
	GetIdempotent(key string, now, ttl float64) (string, error)

	Close() error
}

// Open constructs the store selected by the configuration.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return NewMemoryStore(cfg.SSE.BufferSize), nil
	case config.StoreSQLite:
		return OpenSQLite(cfg.SQLitePath, cfg.SSE.BufferSize)
	}
	return nil, fmt.Errorf("unknown store backend: %q", cfg.Store)
}
