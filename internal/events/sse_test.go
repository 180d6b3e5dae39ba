package events

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteFrame(t *testing.T) {
	e := Envelope{
		Type:          Started,
		SchemaVersion: SchemaVersion,
		JobID:         "job-1",
		TS:            10.5,
		ID:            1,
		Data:          json.RawMessage(`{}`),
	}

	var buf strings.Builder
	if err := WriteFrame(&buf, e); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	got := buf.String()
	want := "id: 1\nevent: started\ndata: {\"type\":\"started\",\"schema_version\":1,\"job_id\":\"job-1\",\"ts\":10.5,\"id\":1,\"data\":{}}\n\n"
	if got != want {
		t.Errorf("frame mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestRetryPrelude(t *testing.T) {
	got := string(RetryPrelude(1500))
	if got != "retry: 1500\n\n" {
		t.Errorf("unexpected prelude: %q", got)
	}
}

func TestKeepAliveIsComment(t *testing.T) {
	if !strings.HasPrefix(KeepAlive, ":") || !strings.HasSuffix(KeepAlive, "\n\n") {
		t.Errorf("keep-alive must be a comment line followed by a blank line, got %q", KeepAlive)
	}
}
