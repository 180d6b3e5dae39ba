package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gepa-next/innerloop/internal/driver"
	"github.com/gepa-next/innerloop/internal/events"
)

// jobHandle is the driver's restricted view of its job.
type jobHandle struct {
	r   *Registry
	job *Job
}

func (h jobHandle) Emit(eventType string, data any) error {
	return h.r.emit(h.job, events.Type(eventType), data)
}

func (h jobHandle) Deadline() float64 {
	return h.job.deadline
}

// runJob executes the driver and owns the job's terminal transition.
// Exactly one terminal event leaves here (or the backpressure path inside
// emit); the latch makes double emission impossible.
func (r *Registry) runJob(ctx context.Context, job *Job, req driver.Request) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("driver panicked", "job_id", job.ID, "panic", p)
			r.terminalize(job, StatusFailed, errorResult(fmt.Sprint(p)), events.Failed)
		}
	}()

	job.setStatus(StatusRunning)
	start := time.Now()

	result, err := r.driver.Run(ctx, jobHandle{r: r, job: job}, req)

	if job.TerminalEmitted() {
		// Backpressure or shutdown already terminalized the job.
		return
	}

	switch {
	case err == nil:
		r.metrics.JobTotal.Observe(time.Since(start).Seconds())
		r.terminalize(job, StatusFinished, result, events.Finished)
	case errors.Is(err, driver.ErrDeadlineExceeded):
		r.terminalize(job, StatusFailed, errorResult("deadline_exceeded"), events.Failed)
	case errors.Is(err, context.Canceled):
		if r.isShutdown() {
			// Shutdown delivers its own terminal to surviving jobs.
			return
		}
		r.terminalize(job, StatusCancelled, nil, events.Cancelled)
	case errors.Is(err, ErrBackpressure), errors.Is(err, ErrTerminal):
		return
	default:
		r.terminalize(job, StatusFailed, errorResult(err.Error()), events.Failed)
	}
}

// terminalize records the final status and result, then emits the matching
// terminal event.
func (r *Registry) terminalize(job *Job, status Status, result json.RawMessage, eventType events.Type) {
	job.mu.Lock()
	if job.terminalEmitted {
		job.mu.Unlock()
		return
	}
	job.status = status
	job.result = result
	job.mu.Unlock()

	var data any
	if result != nil {
		data = result
	}
	if err := r.emit(job, eventType, data); err != nil {
		r.logger.Warn("failed to emit terminal event",
			"job_id", job.ID, "type", string(eventType), "error", err)
	}
}

func errorResult(msg string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return raw
}
