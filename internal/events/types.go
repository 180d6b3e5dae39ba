package events

import (
	"encoding/json"
	"time"
)

// SchemaVersion is the envelope schema version stamped on every event.
const SchemaVersion = 1

// Type identifies what happened. Drivers may emit free-form progress
// types beyond the constants below; they are stored and streamed verbatim.
type Type string

// Core lifecycle events
const (
	Started   Type = "started"
	Progress  Type = "progress"
	Finished  Type = "finished"
	Failed    Type = "failed"
	Cancelled Type = "cancelled"

	// Shutdown is a synthetic terminal delivered to subscribers during
	// process teardown. It is never persisted as a job status.
	Shutdown Type = "shutdown"
)

// Optimizer progress subtypes
const (
	Mutation  Type = "mutation"
	Selected  Type = "selected"
	EarlyStop Type = "early_stop"
)

// Terminals is the set of event types that end a job's stream.
// Keep this set stable; readers and tests rely on it.
var Terminals = map[Type]struct{}{
	Finished:  {},
	Failed:    {},
	Cancelled: {},
	Shutdown:  {},
}

// IsTerminal reports whether t ends a job's event stream.
func IsTerminal(t Type) bool {
	_, ok := Terminals[t]
	return ok
}

// Envelope is the canonical on-wire and on-disk form of an event.
// Field order is significant: encoding preserves declaration order, so a
// fixed envelope always serializes to the same bytes.
type Envelope struct {
	Type          Type            `json:"type"`
	SchemaVersion int             `json:"schema_version"`
	JobID         string          `json:"job_id"`
	TS            float64         `json:"ts"`
	ID            int64           `json:"id"`
	Data          json.RawMessage `json:"data"`
}

// IsTerminal reports whether the envelope carries a terminal event.
func (e Envelope) IsTerminal() bool {
	return IsTerminal(e.Type)
}

// Encode returns the compact JSON form of the envelope.
// The output is byte-stable for a fixed envelope.
func (e Envelope) Encode() ([]byte, error) {
	if e.Data == nil {
		e.Data = json.RawMessage("{}")
	}
	return json.Marshal(e)
}

// Decode parses a stored or streamed envelope.
func Decode(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// Now returns the current wall clock as float seconds, the timestamp
// representation used throughout envelopes and job records.
func Now() float64 {
	return ToSeconds(time.Now())
}

// ToSeconds converts a time.Time to float seconds since the epoch.
func ToSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
