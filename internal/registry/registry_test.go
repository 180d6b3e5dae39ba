package registry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gepa-next/innerloop/internal/config"
	"github.com/gepa-next/innerloop/internal/driver"
	"github.com/gepa-next/innerloop/internal/events"
	"github.com/gepa-next/innerloop/internal/metrics"
	"github.com/gepa-next/innerloop/internal/store"
)

// scriptDriver emits started, then a fixed number of progress events, then
// returns its configured result or error.
type scriptDriver struct {
	steps  int
	pause  time.Duration
	result json.RawMessage
	err    error
}

func (d *scriptDriver) Run(ctx context.Context, h driver.Handle, req driver.Request) (json.RawMessage, error) {
	if err := h.Emit("started", nil); err != nil {
		return nil, err
	}
	for i := 0; i < d.steps; i++ {
		if d.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.pause):
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
		if events.Now() > h.Deadline() {
			return nil, driver.ErrDeadlineExceeded
		}
		if err := h.Emit("progress", map[string]int{"iteration": i + 1}); err != nil {
			return nil, err
		}
	}
	return d.result, d.err
}

type testEnv struct {
	cfg     *config.Config
	store   store.Store
	metrics *metrics.Collector
	reg     *Registry
}

func newTestEnv(t *testing.T, cfg *config.Config, drv driver.Driver) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = config.Defaults()
	}
	st := store.NewMemoryStore(cfg.SSE.BufferSize)
	col := metrics.NewCollector()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := New(cfg, st, col, drv, logger)
	t.Cleanup(reg.Shutdown)
	return &testEnv{cfg: cfg, store: st, metrics: col, reg: reg}
}

// drainUntilTerminal reads the job channel until a terminal event or the
// timeout elapses.
func drainUntilTerminal(t *testing.T, job *Job, timeout time.Duration) []events.Envelope {
	t.Helper()
	var out []events.Envelope
	deadline := time.After(timeout)
	for {
		select {
		case env := <-job.Channel():
			out = append(out, env)
			if env.IsTerminal() {
				return out
			}
		case <-deadline:
			t.Fatalf("no terminal event within %v (got %d events)", timeout, len(out))
		}
	}
}

func waitForStatus(t *testing.T, job *Job, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if job.Status() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job never reached %s, still %s", want, job.Status())
}

func TestHappyPath(t *testing.T) {
	drv := &scriptDriver{steps: 1, result: json.RawMessage(`{"proposal":"hi"}`)}
	env := newTestEnv(t, nil, drv)

	job, fresh, err := env.reg.Create(1, driver.Request{Prompt: "hi"}, "")
	require.NoError(t, err)
	assert.True(t, fresh)

	got := drainUntilTerminal(t, job, 2*time.Second)
	require.Len(t, got, 3)
	assert.Equal(t, events.Started, got[0].Type)
	assert.Equal(t, events.Progress, got[1].Type)
	assert.Equal(t, events.Finished, got[2].Type)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].ID, got[1].ID, got[2].ID})

	waitForStatus(t, job, StatusFinished, time.Second)
	rec, err := env.store.GetJob(job.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "finished", rec.Status)
	assert.JSONEq(t, `{"proposal":"hi"}`, string(rec.Result))
}

func TestMonotonicIDsAndSingleTerminal(t *testing.T) {
	drv := &scriptDriver{steps: 5, result: json.RawMessage(`{}`)}
	env := newTestEnv(t, nil, drv)

	job, _, err := env.reg.Create(5, driver.Request{Prompt: "x"}, "")
	require.NoError(t, err)

	got := drainUntilTerminal(t, job, 2*time.Second)
	terminals := 0
	for i, e := range got {
		assert.Equal(t, int64(i+1), e.ID, "ids must be contiguous from 1")
		if e.IsTerminal() {
			terminals++
			assert.Equal(t, len(got)-1, i, "terminal must carry the greatest id")
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestIdempotentCreate(t *testing.T) {
	drv := &scriptDriver{steps: 1, result: json.RawMessage(`{}`)}
	env := newTestEnv(t, nil, drv)

	first, fresh, err := env.reg.Create(1, driver.Request{Prompt: "a"}, "demo")
	require.NoError(t, err)
	assert.True(t, fresh)

	second, fresh, err := env.reg.Create(1, driver.Request{Prompt: "a"}, "demo")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.JobsCreated))
	drainUntilTerminal(t, first, 2*time.Second)
}

func TestIdempotentStubAfterEviction(t *testing.T) {
	drv := &scriptDriver{steps: 0, result: json.RawMessage(`{"proposal":"done"}`)}
	env := newTestEnv(t, nil, drv)

	job, _, err := env.reg.Create(1, driver.Request{Prompt: "a"}, "evicted")
	require.NoError(t, err)
	drainUntilTerminal(t, job, 2*time.Second)
	waitForStatus(t, job, StatusFinished, time.Second)

	require.True(t, env.reg.Remove(job.ID))
	require.Nil(t, env.reg.Live(job.ID))

	stub, fresh, err := env.reg.Create(1, driver.Request{Prompt: "a"}, "evicted")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, job.ID, stub.ID)
	assert.Equal(t, StatusFinished, stub.Status())
}

func TestCancelRunningJob(t *testing.T) {
	drv := &scriptDriver{steps: 100, pause: 10 * time.Millisecond}
	env := newTestEnv(t, nil, drv)

	job, _, err := env.reg.Create(100, driver.Request{Prompt: "long"}, "")
	require.NoError(t, err)
	waitForStatus(t, job, StatusRunning, time.Second)

	require.True(t, env.reg.Cancel(job.ID))

	got := drainUntilTerminal(t, job, 2*time.Second)
	last := got[len(got)-1]
	assert.Equal(t, events.Cancelled, last.Type)
	waitForStatus(t, job, StatusCancelled, time.Second)

	// Terminal jobs are not cancelable again.
	assert.False(t, env.reg.Cancel(job.ID))
}

func TestCancelMissingJob(t *testing.T) {
	env := newTestEnv(t, nil, &scriptDriver{})
	assert.False(t, env.reg.Cancel("no-such-job"))
}

func TestBackpressureFailsJob(t *testing.T) {
	cfg := config.Defaults()
	cfg.SSE.BufferSize = 1
	cfg.SSE.BackpressureFailTimeout = time.Millisecond

	drv := &scriptDriver{steps: 10, result: json.RawMessage(`{}`)}
	env := newTestEnv(t, cfg, drv)

	// Never read the stream.
	job, _, err := env.reg.Create(10, driver.Request{Prompt: "flood"}, "")
	require.NoError(t, err)

	waitForStatus(t, job, StatusFailed, 2*time.Second)
	rec, err := env.store.GetJob(job.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"sse_backpressure"}`, string(rec.Result))

	// The synthetic failed event reserved a strictly greater id.
	evs, err := env.store.EventsSince(job.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, events.Failed, last.Type)
	for _, e := range evs[:len(evs)-1] {
		assert.Less(t, e.ID, last.ID)
	}
}

func TestDeadlineExceeded(t *testing.T) {
	cfg := config.Defaults()
	cfg.Jobs.MaxWallTime = 10 * time.Millisecond

	drv := &scriptDriver{steps: 999, pause: 5 * time.Millisecond}
	env := newTestEnv(t, cfg, drv)

	job, _, err := env.reg.Create(999, driver.Request{Prompt: "slow"}, "")
	require.NoError(t, err)

	got := drainUntilTerminal(t, job, 2*time.Second)
	last := got[len(got)-1]
	assert.Equal(t, events.Failed, last.Type)
	assert.JSONEq(t, `{"error":"deadline_exceeded"}`, string(last.Data))
}

func TestDriverErrorBecomesFailed(t *testing.T) {
	drv := &scriptDriver{steps: 0, err: assert.AnError}
	env := newTestEnv(t, nil, drv)

	job, _, err := env.reg.Create(1, driver.Request{Prompt: "boom"}, "")
	require.NoError(t, err)

	got := drainUntilTerminal(t, job, 2*time.Second)
	last := got[len(got)-1]
	assert.Equal(t, events.Failed, last.Type)
	waitForStatus(t, job, StatusFailed, time.Second)
}

func TestReaperEvictsTerminalJobs(t *testing.T) {
	cfg := config.Defaults()
	cfg.Jobs.ReaperInterval = 10 * time.Millisecond
	cfg.Jobs.TTLFinished = time.Millisecond

	drv := &scriptDriver{steps: 0, result: json.RawMessage(`{}`)}
	env := newTestEnv(t, cfg, drv)

	job, _, err := env.reg.Create(1, driver.Request{Prompt: "short"}, "")
	require.NoError(t, err)
	drainUntilTerminal(t, job, 2*time.Second)
	waitForStatus(t, job, StatusFinished, time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if env.reg.Live(job.ID) == nil {
			// The store row must survive the reaper.
			rec, err := env.store.GetJob(job.ID)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, "finished", rec.Status)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("reaper never evicted the finished job")
}

func TestShutdownEmitsShutdownEvent(t *testing.T) {
	drv := &scriptDriver{steps: 100, pause: 10 * time.Millisecond}
	env := newTestEnv(t, nil, drv)

	job, _, err := env.reg.Create(100, driver.Request{Prompt: "live"}, "")
	require.NoError(t, err)
	waitForStatus(t, job, StatusRunning, time.Second)

	done := make(chan []events.Envelope, 1)
	go func() {
		var out []events.Envelope
		for env := range job.Channel() {
			out = append(out, env)
			if env.IsTerminal() {
				break
			}
		}
		done <- out
	}()

	env.reg.Shutdown()

	select {
	case got := <-done:
		require.NotEmpty(t, got)
		assert.Equal(t, events.Shutdown, got[len(got)-1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never saw the shutdown terminal")
	}
}
