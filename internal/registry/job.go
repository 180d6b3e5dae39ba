package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gepa-next/innerloop/internal/events"
	"github.com/gepa-next/innerloop/internal/store"
)

// Status is a job's lifecycle state. Transitions only move forward:
// pending -> running -> one of the terminal statuses.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// terminalStatuses map each terminal status to itself for quick membership
// checks. Shutdown is deliberately absent; it is an event, not a status.
var terminalStatuses = map[Status]struct{}{
	StatusFinished:  {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// IsTerminal reports whether s is an absorbing status.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Job is the registry's live record of one optimization run. The registry
// is the only writer; readers take snapshots under the job mutex.
type Job struct {
	ID string

	mu              sync.Mutex
	status          Status
	createdAt       float64
	updatedAt       float64
	result          json.RawMessage
	nextEventID     int64
	terminalEmitted bool
	deadline        float64

	// ch carries envelopes from the emitter to at most one subscriber.
	ch     chan events.Envelope
	cancel context.CancelFunc
}

func newJob(id string, bufferSize int, deadline float64) *Job {
	now := events.Now()
	return &Job{
		ID:          id,
		status:      StatusPending,
		createdAt:   now,
		updatedAt:   now,
		nextEventID: 1,
		deadline:    deadline,
		ch:          make(chan events.Envelope, bufferSize),
	}
}

// stubFromRecord builds a read-only job view from a store row. Stubs have
// no channel and no task; they exist so idempotent re-submission can return
// the original job's state after it left memory.
func stubFromRecord(rec *store.JobRecord) *Job {
	return &Job{
		ID:        rec.ID,
		status:    Status(rec.Status),
		createdAt: rec.CreatedAt,
		updatedAt: rec.UpdatedAt,
		result:    rec.Result,
	}
}

// Status returns the current lifecycle state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// TerminalEmitted reports whether the job's terminal event has been
// enqueued.
func (j *Job) TerminalEmitted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.terminalEmitted
}

// Channel is the subscriber end of the job's event pipeline. Only one
// reader may consume it at a time.
func (j *Job) Channel() <-chan events.Envelope {
	return j.ch
}

// Snapshot projects the job onto its durable record form.
func (j *Job) Snapshot() *store.JobRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &store.JobRecord{
		ID:        j.ID,
		Status:    string(j.status),
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
		Result:    j.result,
	}
}

func (j *Job) setStatus(s Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = s
}
