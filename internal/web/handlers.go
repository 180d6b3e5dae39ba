package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gepa-next/innerloop/internal/driver"
	"github.com/gepa-next/innerloop/internal/registry"
	"github.com/gepa-next/innerloop/internal/store"
)

// JobState is the client-facing projection of a job.
type JobState struct {
	JobID     string          `json:"job_id"`
	Status    string          `json:"status"`
	CreatedAt float64         `json:"created_at"`
	UpdatedAt float64         `json:"updated_at"`
	Result    json.RawMessage `json:"result,omitempty"`
}

func stateFromRecord(rec *store.JobRecord) JobState {
	return JobState{
		JobID:     rec.ID,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		Result:    rec.Result,
	}
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	iterations := 1
	if raw := r.URL.Query().Get("iterations"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusUnprocessableEntity, codeValidation, "iterations must be an integer >= 1")
			return
		}
		iterations = n
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	var req driver.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.metrics.OversizeRejected.Inc()
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "request body exceeds the size limit")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "request body is not valid JSON")
		return
	}
	if req.Prompt == "" && len(req.Examples) == 0 {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "prompt or examples required")
		return
	}

	job, _, err := s.reg.Create(iterations, req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		s.logger.Error("job creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to create job")
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{JobID: job.ID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if job := s.reg.Live(id); job != nil {
		writeJSON(w, http.StatusOK, stateFromRecord(job.Snapshot()))
		return
	}
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
	writeJSON(w, http.StatusOK, stateFromRecord(rec))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, http.StatusConflict, codeNotCancelable, "job is not running")
		return
	}

	if job.Status() != registry.StatusRunning || !s.reg.Cancel(id) {
		writeError(w, http.StatusConflict, codeNotCancelable, "job is not running")
		return
	}
	writeJSON(w, http.StatusOK, stateFromRecord(job.Snapshot()))
}

// adminJob is the reduced projection the admin list returns.
type adminJob struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	CreatedAt float64 `json:"created_at"`
	UpdatedAt float64 `json:"updated_at"`
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListJobs()
	if err != nil {
		s.logger.Error("job list failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to list jobs")
		return
	}
	out := make([]adminJob, 0, len(recs))
	for _, rec := range recs {
		out = append(out, adminJob{
			ID:        rec.ID,
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.reg.Remove(id)
	if err := s.store.DeleteJob(id); err != nil {
		s.logger.Error("job delete failed", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "failed to delete job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	// Readiness means the store answers.
	if _, err := s.store.ListJobs(); err != nil {
		writeError(w, http.StatusServiceUnavailable, codeInternal, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}
