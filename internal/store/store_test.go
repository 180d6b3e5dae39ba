package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/gepa-next/innerloop/internal/events"
)

const testBuffer = 4

// withStores runs fn against both backends so every behavior is verified
// under the shared contract.
func withStores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore(testBuffer))
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jobs.db")
		s, err := OpenSQLite(path, testBuffer)
		if err != nil {
			t.Fatalf("OpenSQLite failed: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func envelope(jobID string, id int64, typ events.Type) events.Envelope {
	return events.Envelope{
		Type:          typ,
		SchemaVersion: events.SchemaVersion,
		JobID:         jobID,
		TS:            float64(id),
		ID:            id,
		Data:          json.RawMessage(`{}`),
	}
}

func TestSaveAndGetJob(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		rec := &JobRecord{ID: "j1", Status: "pending", CreatedAt: 1, UpdatedAt: 1}
		if err := s.SaveJob(rec); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}

		got, err := s.GetJob("j1")
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if got == nil || got.ID != "j1" || got.Status != "pending" {
			t.Errorf("unexpected record: %+v", got)
		}
	})
}

func TestGetJobAbsent(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		got, err := s.GetJob("missing")
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil for absent job, got %+v", got)
		}
	})
}

func TestSaveJobUpsert(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		rec := &JobRecord{ID: "j1", Status: "pending", CreatedAt: 1, UpdatedAt: 1}
		if err := s.SaveJob(rec); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}

		rec.Status = "finished"
		rec.UpdatedAt = 2
		rec.Result = json.RawMessage(`{"proposal":"done"}`)
		if err := s.SaveJob(rec); err != nil {
			t.Fatalf("SaveJob upsert failed: %v", err)
		}

		got, err := s.GetJob("j1")
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if got.Status != "finished" || got.UpdatedAt != 2 {
			t.Errorf("upsert did not overwrite: %+v", got)
		}
		if string(got.Result) != `{"proposal":"done"}` {
			t.Errorf("result not persisted: %s", got.Result)
		}
	})
}

func TestListJobsNewestFirst(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		for i, id := range []string{"a", "b", "c"} {
			rec := &JobRecord{ID: id, Status: "pending", CreatedAt: float64(i + 1), UpdatedAt: float64(i + 1)}
			if err := s.SaveJob(rec); err != nil {
				t.Fatalf("SaveJob failed: %v", err)
			}
		}

		jobs, err := s.ListJobs()
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(jobs) != 3 {
			t.Fatalf("expected 3 jobs, got %d", len(jobs))
		}
		if jobs[0].ID != "c" || jobs[2].ID != "a" {
			t.Errorf("jobs not ordered newest first: %v, %v, %v", jobs[0].ID, jobs[1].ID, jobs[2].ID)
		}
	})
}

func TestDeleteJobRemovesEvents(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		if err := s.SaveJob(&JobRecord{ID: "j1", Status: "running", CreatedAt: 1, UpdatedAt: 1}); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
		if err := s.SaveEvent("j1", 1, envelope("j1", 1, events.Started)); err != nil {
			t.Fatalf("SaveEvent failed: %v", err)
		}

		if err := s.DeleteJob("j1"); err != nil {
			t.Fatalf("DeleteJob failed: %v", err)
		}

		got, err := s.GetJob("j1")
		if err != nil || got != nil {
			t.Errorf("job should be gone, got %+v err %v", got, err)
		}
		evs, err := s.EventsSince("j1", 0)
		if err != nil {
			t.Fatalf("EventsSince failed: %v", err)
		}
		if len(evs) != 0 {
			t.Errorf("events should be gone, got %d", len(evs))
		}
	})
}

func TestEventsSinceOrdering(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		for i := int64(1); i <= 3; i++ {
			if err := s.SaveEvent("j1", i, envelope("j1", i, events.Progress)); err != nil {
				t.Fatalf("SaveEvent failed: %v", err)
			}
		}

		evs, err := s.EventsSince("j1", 1)
		if err != nil {
			t.Fatalf("EventsSince failed: %v", err)
		}
		if len(evs) != 2 {
			t.Fatalf("expected 2 events after id 1, got %d", len(evs))
		}
		if evs[0].ID != 2 || evs[1].ID != 3 {
			t.Errorf("events not ordered by id: %d, %d", evs[0].ID, evs[1].ID)
		}
	})
}

func TestEventRingBuffer(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		// Insert more than the buffer; only the last testBuffer survive.
		for i := int64(1); i <= 10; i++ {
			if err := s.SaveEvent("j1", i, envelope("j1", i, events.Progress)); err != nil {
				t.Fatalf("SaveEvent failed: %v", err)
			}
		}

		evs, err := s.EventsSince("j1", 0)
		if err != nil {
			t.Fatalf("EventsSince failed: %v", err)
		}
		if len(evs) != testBuffer {
			t.Fatalf("expected %d retained events, got %d", testBuffer, len(evs))
		}
		if evs[0].ID != 10-testBuffer+1 {
			t.Errorf("oldest retained id should be %d, got %d", 10-testBuffer+1, evs[0].ID)
		}
		if evs[len(evs)-1].ID != 10 {
			t.Errorf("newest retained id should be 10, got %d", evs[len(evs)-1].ID)
		}
	})
}

func TestIdempotencyTTL(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		if err := s.SaveIdempotency("key", "j1", 100); err != nil {
			t.Fatalf("SaveIdempotency failed: %v", err)
		}

		// Within TTL
		got, err := s.GetIdempotent("key", 150, 60)
		if err != nil {
			t.Fatalf("GetIdempotent failed: %v", err)
		}
		if got != "j1" {
			t.Errorf("expected j1 within TTL, got %q", got)
		}

		// Expired
		got, err = s.GetIdempotent("key", 200, 60)
		if err != nil {
			t.Fatalf("GetIdempotent failed: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty for expired record, got %q", got)
		}

		// Unknown key
		got, err = s.GetIdempotent("other", 100, 60)
		if err != nil {
			t.Fatalf("GetIdempotent failed: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty for unknown key, got %q", got)
		}
	})
}

func TestIdempotencyUpsert(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		if err := s.SaveIdempotency("key", "j1", 100); err != nil {
			t.Fatalf("SaveIdempotency failed: %v", err)
		}
		if err := s.SaveIdempotency("key", "j2", 200); err != nil {
			t.Fatalf("SaveIdempotency upsert failed: %v", err)
		}

		got, err := s.GetIdempotent("key", 210, 60)
		if err != nil {
			t.Fatalf("GetIdempotent failed: %v", err)
		}
		if got != "j2" {
			t.Errorf("expected j2 after upsert, got %q", got)
		}
	})
}

func TestStoredEnvelopeRoundTrip(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		env := events.Envelope{
			Type:          events.Finished,
			SchemaVersion: events.SchemaVersion,
			JobID:         "j1",
			TS:            12.5,
			ID:            3,
			Data:          json.RawMessage(`{"proposal":"p","scores":{"judge":{}}}`),
		}
		if err := s.SaveEvent("j1", 3, env); err != nil {
			t.Fatalf("SaveEvent failed: %v", err)
		}

		evs, err := s.EventsSince("j1", 0)
		if err != nil {
			t.Fatalf("EventsSince failed: %v", err)
		}
		if len(evs) != 1 {
			t.Fatalf("expected 1 event, got %d", len(evs))
		}
		got := evs[0]
		if got.Type != events.Finished || got.ID != 3 || got.TS != 12.5 {
			t.Errorf("envelope mismatch: %+v", got)
		}
		if string(got.Data) != `{"proposal":"p","scores":{"judge":{}}}` {
			t.Errorf("data mismatch: %s", got.Data)
		}
	})
}
