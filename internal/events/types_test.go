package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeFieldOrder(t *testing.T) {
	e := Envelope{
		Type:          Progress,
		SchemaVersion: SchemaVersion,
		JobID:         "job-1",
		TS:            1234.5,
		ID:            3,
		Data:          json.RawMessage(`{"iteration":1}`),
	}

	raw, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := `{"type":"progress","schema_version":1,"job_id":"job-1","ts":1234.5,"id":3,"data":{"iteration":1}}`
	if string(raw) != want {
		t.Errorf("unexpected encoding:\n got %s\nwant %s", raw, want)
	}
}

func TestEncodeByteStable(t *testing.T) {
	e := Envelope{
		Type:          Finished,
		SchemaVersion: SchemaVersion,
		JobID:         "abc",
		TS:            99.25,
		ID:            7,
		Data:          json.RawMessage(`{"proposal":"hello world"}`),
	}

	first, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := e.Encode()
		if err != nil {
			t.Fatalf("Encode failed on attempt %d: %v", i, err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding not byte-stable: %s vs %s", first, again)
		}
	}
}

func TestEncodeNilData(t *testing.T) {
	e := Envelope{Type: Started, SchemaVersion: 1, JobID: "j", TS: 1, ID: 1}

	raw, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(raw), `"data":{}`) {
		t.Errorf("nil data should encode as empty object, got %s", raw)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	e := Envelope{
		Type:          Mutation,
		SchemaVersion: SchemaVersion,
		JobID:         "job-2",
		TS:            42.125,
		ID:            11,
		Data:          json.RawMessage(`{"count":4}`),
	}

	raw, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Type != e.Type || got.JobID != e.JobID || got.ID != e.ID || got.TS != e.TS {
		t.Errorf("round trip mismatch: got %+v want %+v", got, e)
	}
}

func TestTerminals(t *testing.T) {
	for _, typ := range []Type{Finished, Failed, Cancelled, Shutdown} {
		if !IsTerminal(typ) {
			t.Errorf("%s should be terminal", typ)
		}
	}
	for _, typ := range []Type{Started, Progress, Mutation, Selected, EarlyStop, Type("custom")} {
		if IsTerminal(typ) {
			t.Errorf("%s should not be terminal", typ)
		}
	}
}
