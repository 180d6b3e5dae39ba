package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gepa-next/innerloop/internal/events"
)

// ErrTerminal is returned by emit once a job's terminal event has been
// enqueued. Drivers receiving it must stop promptly.
var ErrTerminal = errors.New("job already terminal")

// ErrBackpressure is returned when an emit could not be enqueued within
// the backpressure timeout. The job has been failed by the time callers
// see it.
var ErrBackpressure = errors.New("subscriber backpressure")

var backpressureResult = json.RawMessage(`{"error":"sse_backpressure"}`)

// emit assigns the next event id, enqueues the envelope with a bounded
// wait, persists it, and updates the job row. On an enqueue timeout the
// backpressure protocol fails the job with a synthetic terminal.
func (r *Registry) emit(job *Job, eventType events.Type, data any) error {
	raw, err := marshalData(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	job.mu.Lock()
	if job.terminalEmitted {
		job.mu.Unlock()
		return ErrTerminal
	}
	ts := events.Now()
	id := job.nextEventID
	job.nextEventID++
	job.mu.Unlock()

	env := events.Envelope{
		Type:          eventType,
		SchemaVersion: events.SchemaVersion,
		JobID:         job.ID,
		TS:            ts,
		ID:            id,
		Data:          raw,
	}

	putStart := time.Now()
	select {
	case job.ch <- env:
		r.metrics.EmitWait.Observe(time.Since(putStart).Seconds())
	case <-time.After(r.cfg.SSE.BackpressureFailTimeout):
		r.failOnBackpressure(job)
		return ErrBackpressure
	}

	if err := r.store.SaveEvent(job.ID, env.ID, env); err != nil {
		// Persisting failed but the subscriber already has the event;
		// log and keep going rather than terminalizing the job.
		r.logger.Error("failed to persist event",
			"job_id", job.ID, "event_id", env.ID, "error", err)
	}

	if events.IsTerminal(eventType) {
		job.mu.Lock()
		job.terminalEmitted = true
		job.mu.Unlock()
		if c := r.metrics.TerminalCounter(string(eventType)); c != nil {
			c.Inc()
		}
		r.notifyTerminal(job, ts)
	}

	job.mu.Lock()
	job.updatedAt = ts
	job.mu.Unlock()
	if err := r.store.SaveJob(job.Snapshot()); err != nil {
		r.logger.Error("failed to persist job row",
			"job_id", job.ID, "error", err)
	}
	return nil
}

// failOnBackpressure implements the fail-fast protocol: the job transitions
// to failed, a synthetic failed envelope takes the next id, the store gets
// the event, and the channel gets it only if room opened up.
func (r *Registry) failOnBackpressure(job *Job) {
	job.mu.Lock()
	job.status = StatusFailed
	job.result = backpressureResult
	ts := events.Now()
	failID := job.nextEventID
	job.nextEventID++
	job.terminalEmitted = true
	job.updatedAt = ts
	job.mu.Unlock()

	r.metrics.JobsFailed.Inc()

	env := events.Envelope{
		Type:          events.Failed,
		SchemaVersion: events.SchemaVersion,
		JobID:         job.ID,
		TS:            ts,
		ID:            failID,
		Data:          backpressureResult,
	}
	if err := r.store.SaveEvent(job.ID, failID, env); err != nil {
		r.logger.Error("failed to persist backpressure event",
			"job_id", job.ID, "error", err)
	}
	select {
	case job.ch <- env:
	default:
	}
	if err := r.store.SaveJob(job.Snapshot()); err != nil {
		r.logger.Error("failed to persist job row",
			"job_id", job.ID, "error", err)
	}
	r.notifyTerminal(job, ts)
	r.logger.Warn("job failed on subscriber backpressure", "job_id", job.ID)
}

func (r *Registry) notifyTerminal(job *Job, ts float64) {
	if r.notifier == nil {
		return
	}
	job.mu.Lock()
	status := string(job.status)
	result := job.result
	job.mu.Unlock()

	errText := ""
	if result != nil {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(result, &payload) == nil {
			errText = payload.Error
		}
	}
	r.notifier.JobTerminal(job.ID, status, ts, errText)
}

func marshalData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(v) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return v, nil
	default:
		return json.Marshal(data)
	}
}
