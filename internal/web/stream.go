package web

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gepa-next/innerloop/internal/events"
)

// handleEvents serves one subscriber a replay-then-live view of the job's
// event log. Replay comes from the store; live events come from the job's
// channel until the terminal event or disconnect.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job := s.reg.Live(id)
	if job == nil {
		rec, err := s.store.GetJob(id)
		if err != nil {
			s.logger.Error("job lookup failed", "job_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, codeInternal, "failed to load job")
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, codeNotFound, "job not found")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming unsupported")
		return
	}

	lastID := parseLastEventID(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.metrics.SSEClients.Inc()
	defer s.metrics.SSEClients.Dec()

	if _, err := w.Write(events.RetryPrelude(s.cfg.SSE.RetryMS)); err != nil {
		return
	}
	flusher.Flush()

	// Replay what the subscriber missed.
	replay, err := s.store.EventsSince(id, lastID)
	if err != nil {
		s.logger.Error("event replay failed", "job_id", id, "error", err)
		return
	}
	for _, env := range replay {
		if err := events.WriteFrame(w, env); err != nil {
			return
		}
		flusher.Flush()
		if env.ID > lastID {
			lastID = env.ID
		}
		if env.IsTerminal() {
			return
		}
	}

	if job == nil {
		// Not live and no terminal in the window; nothing more will come.
		return
	}

	ticker := time.NewTicker(s.cfg.SSE.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, events.KeepAlive); err != nil {
				return
			}
			flusher.Flush()
		case env := <-job.Channel():
			if env.ID <= lastID {
				// Duplicate of a replayed event.
				continue
			}
			if err := events.WriteFrame(w, env); err != nil {
				return
			}
			flusher.Flush()
			lastID = env.ID
			if env.IsTerminal() {
				return
			}
		}
	}
}

// parseLastEventID honors the Last-Event-ID header with a query parameter
// fallback for clients that cannot set headers on reconnect.
func parseLastEventID(r *http.Request) int64 {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("last_event_id")
	}
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
