package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gepa-next/innerloop/internal/events"
)

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/optimize", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("iterations"))
		assert.Equal(t, "demo", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"job_id":"j1"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	id, err := c.Submit(context.Background(), SubmitRequest{Prompt: "hi"}, 3, "demo")
	require.NoError(t, err)
	assert.Equal(t, "j1", id)
}

func TestGetAndAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/optimize/known" {
			fmt.Fprint(w, `{"job_id":"known","status":"finished","created_at":1,"updated_at":2,"result":{"proposal":"p"}}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"not_found","message":"job not found"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	state, err := c.Get(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, "finished", state.Status)

	_, err = c.Get(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_found", apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestStreamResumesAfterDrop(t *testing.T) {
	envFor := func(id int64, typ events.Type) string {
		env := events.Envelope{
			Type:          typ,
			SchemaVersion: events.SchemaVersion,
			JobID:         "j1",
			TS:            float64(id),
			ID:            id,
			Data:          json.RawMessage(`{}`),
		}
		raw, _ := env.Encode()
		return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", id, typ, raw)
	}

	conn := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn++
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "retry: 1\n\n")
		if conn == 1 {
			assert.Empty(t, r.Header.Get("Last-Event-ID"))
			fmt.Fprint(w, envFor(1, events.Started))
			fmt.Fprint(w, envFor(2, events.Progress))
			// Drop the connection without a terminal.
			return
		}
		assert.Equal(t, "2", r.Header.Get("Last-Event-ID"))
		fmt.Fprint(w, envFor(3, events.Finished))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	var ids []int64
	err := c.Stream(context.Background(), "j1", 0, func(env events.Envelope) error {
		ids = append(ids, env.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, 2, conn)
}

func TestStreamStopsOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"not_found","message":"job not found"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	err := c.Stream(context.Background(), "gone", 0, func(events.Envelope) error { return nil })
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestListAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/v1/admin/jobs":
			fmt.Fprint(w, `[{"id":"a","status":"finished","created_at":2,"updated_at":3}]`)
		case r.Method == "DELETE" && r.URL.Path == "/v1/admin/jobs/a":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	jobs, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].ID)

	require.NoError(t, c.Delete(context.Background(), "a"))
}
