// Package driver runs the optimization search for a job. The control plane
// only sees the Driver interface; everything else in this package is the
// built-in optimizer and its ranking oracles.
package driver

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrDeadlineExceeded signals that the job's wall-clock budget ran out.
// The registry maps it to a failed terminal with error "deadline_exceeded".
var ErrDeadlineExceeded = errors.New("deadline_exceeded")

// Handle is the driver's view of its job. Emit delivers a progress event;
// it returns an error once the job has terminalized (for example after a
// backpressure failure), at which point the driver must return promptly.
type Handle interface {
	// Emit enqueues a non-terminal event for the job.
	Emit(eventType string, data any) error

	// Deadline returns the absolute wall-clock deadline as float seconds.
	Deadline() float64
}

// Request is the submitted optimization task after boundary validation.
type Request struct {
	Prompt            string          `json:"prompt"`
	Context           string          `json:"context,omitempty"`
	Iterations        int             `json:"-"`
	TargetModel       string          `json:"target_model,omitempty"`
	EvaluationRubric  string          `json:"evaluation_rubric,omitempty"`
	Examples          []Example       `json:"examples,omitempty"`
	Objectives        []string        `json:"objectives,omitempty"`
	RecombinationRate float64         `json:"recombination_rate,omitempty"`
	TournamentSize    int             `json:"tournament_size,omitempty"`
	EarlyStopPatience int             `json:"early_stop_patience,omitempty"`
	Seed              int64           `json:"seed,omitempty"`
	Options           json.RawMessage `json:"options,omitempty"`
}

// Example is one labeled input the objectives may score against.
type Example struct {
	Input    string `json:"input"`
	Expected string `json:"expected,omitempty"`
}

// Driver produces a job's progress events and final result. It must emit
// "started" first, check ctx and the handle deadline between iterations,
// and return either a result payload or an error. The registry owns the
// terminal event; drivers never emit terminals themselves.
type Driver interface {
	Run(ctx context.Context, h Handle, req Request) (json.RawMessage, error)
}
