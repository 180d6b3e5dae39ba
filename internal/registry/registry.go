// Package registry owns live job state: the job table, per-job event
// pipelines, lifecycle transitions, and the reaper that evicts terminal
// jobs from memory.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gepa-next/innerloop/internal/config"
	"github.com/gepa-next/innerloop/internal/driver"
	"github.com/gepa-next/innerloop/internal/events"
	"github.com/gepa-next/innerloop/internal/metrics"
	"github.com/gepa-next/innerloop/internal/store"
)

// Notifier receives job terminal transitions. Implementations must not
// block the caller.
type Notifier interface {
	JobTerminal(jobID string, status string, ts float64, errText string)
}

// Registry coordinates job creation, execution, cancellation, and reaping.
type Registry struct {
	cfg      *config.Config
	store    store.Store
	metrics  *metrics.Collector
	driver   driver.Driver
	logger   *slog.Logger
	notifier Notifier

	mu       sync.Mutex
	jobs     map[string]*Job
	shutdown bool

	stopReaper chan struct{}
	reaperDone chan struct{}
	wg         sync.WaitGroup
}

// Option customizes a Registry at construction.
type Option func(*Registry)

// WithNotifier attaches a terminal-event notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// New creates a Registry and starts its reaper loop.
func New(cfg *config.Config, st store.Store, col *metrics.Collector, drv driver.Driver, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		cfg:        cfg,
		store:      st,
		metrics:    col,
		driver:     drv,
		logger:     logger,
		jobs:       make(map[string]*Job),
		stopReaper: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.reaperLoop()
	return r
}

// Create registers a new job and starts its driver task, or returns an
// existing job when the idempotency key matches a recent submission.
// The second return value reports whether a new job was created.
//
// Idempotency resolution is serialized under the registry mutex, so two
// concurrent submissions with the same key cannot both create jobs.
func (r *Registry) Create(iterations int, req driver.Request, idempotencyKey string) (*Job, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := events.Now()
	if idempotencyKey != "" {
		existing, err := r.store.GetIdempotent(idempotencyKey, now, r.cfg.Jobs.IdempotencyTTL.Seconds())
		if err != nil {
			return nil, false, err
		}
		if existing != "" {
			if job, ok := r.jobs[existing]; ok {
				return job, false, nil
			}
			rec, err := r.store.GetJob(existing)
			if err != nil {
				return nil, false, err
			}
			if rec != nil {
				return stubFromRecord(rec), false, nil
			}
		}
	}

	jobID := ulid.Make().String()
	deadline := now + r.cfg.Jobs.MaxWallTime.Seconds()
	job := newJob(jobID, r.cfg.SSE.BufferSize, deadline)
	r.jobs[jobID] = job
	r.metrics.JobsLive.Inc()

	if err := r.store.SaveJob(job.Snapshot()); err != nil {
		delete(r.jobs, jobID)
		r.metrics.JobsLive.Dec()
		return nil, false, err
	}

	req.Iterations = iterations
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	r.wg.Add(1)
	go r.runJob(ctx, job, req)

	if idempotencyKey != "" {
		if err := r.store.SaveIdempotency(idempotencyKey, jobID, now); err != nil {
			r.logger.Warn("failed to persist idempotency record",
				"job_id", jobID, "error", err)
		}
	}
	r.metrics.JobsCreated.Inc()
	return job, true, nil
}

// Live returns the in-memory job, or nil if it is not resident.
func (r *Registry) Live(id string) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// Cancel signals the job's task. It returns false when the job is missing
// or not running; the status transition to cancelled happens in the task's
// cancellation path.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	job, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok || job.Status() != StatusRunning {
		return false
	}
	if job.cancel != nil {
		job.cancel()
	}
	return true
}

// Remove pops the job from the in-memory table, cancelling its task if one
// is still running. Store rows are untouched.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if ok {
		delete(r.jobs, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	if job.cancel != nil {
		job.cancel()
	}
	r.metrics.JobsLive.Dec()
	return true
}

// Shutdown cancels every live task, stops the reaper, and delivers a
// shutdown terminal to each job that has not yet terminalized. A pending
// cancel that has not landed is superseded by the shutdown event.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return
	}
	r.shutdown = true
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	close(r.stopReaper)
	for _, job := range jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	r.wg.Wait()
	<-r.reaperDone

	for _, job := range jobs {
		if job.TerminalEmitted() {
			continue
		}
		if err := r.emit(job, events.Shutdown, nil); err != nil {
			r.logger.Warn("failed to emit shutdown event",
				"job_id", job.ID, "error", err)
		}
	}
}

func (r *Registry) isShutdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdown
}

// reaperLoop periodically drops non-running jobs whose age since the last
// update exceeds the TTL for their status. Store rows survive until an
// explicit admin delete.
func (r *Registry) reaperLoop() {
	defer close(r.reaperDone)

	ticker := time.NewTicker(r.cfg.Jobs.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopReaper:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	now := events.Now()
	ttls := map[Status]float64{
		StatusFinished:  r.cfg.Jobs.TTLFinished.Seconds(),
		StatusFailed:    r.cfg.Jobs.TTLFailed.Seconds(),
		StatusCancelled: r.cfg.Jobs.TTLCancelled.Seconds(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, job := range r.jobs {
		job.mu.Lock()
		status, updatedAt := job.status, job.updatedAt
		job.mu.Unlock()

		ttl, ok := ttls[status]
		if !ok {
			continue
		}
		if now-updatedAt > ttl {
			delete(r.jobs, id)
			r.metrics.JobsLive.Dec()
			r.logger.Debug("reaped job", "job_id", id, "status", string(status))
		}
	}
}
