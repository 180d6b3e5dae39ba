// Package client is the Go client for the innerloop control plane: job
// submission, inspection, cancellation, and the resumable event stream.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gepa-next/innerloop/internal/events"
)

// JobState mirrors the server's job projection.
type JobState struct {
	JobID     string          `json:"job_id"`
	Status    string          `json:"status"`
	CreatedAt float64         `json:"created_at"`
	UpdatedAt float64         `json:"updated_at"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// AdminJob is one row of the admin job listing.
type AdminJob struct {
	ID        string  `json:"id"`
	Status    string  `json:"status"`
	CreatedAt float64 `json:"created_at"`
	UpdatedAt float64 `json:"updated_at"`
}

// SubmitRequest is the optimization task sent to the server.
type SubmitRequest struct {
	Prompt            string   `json:"prompt"`
	Context           string   `json:"context,omitempty"`
	TargetModel       string   `json:"target_model,omitempty"`
	Objectives        []string `json:"objectives,omitempty"`
	RecombinationRate float64  `json:"recombination_rate,omitempty"`
	TournamentSize    int      `json:"tournament_size,omitempty"`
	EarlyStopPatience int      `json:"early_stop_patience,omitempty"`
	Seed              int64    `json:"seed,omitempty"`
}

// APIError is a decoded server error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
}

// Client talks to one innerloop server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the given base URL. The token, when non-empty,
// is sent as a bearer credential.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit creates a job and returns its id. An empty idempotencyKey
// disables de-duplication.
func (c *Client) Submit(ctx context.Context, req SubmitRequest, iterations int, idempotencyKey string) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}
	url := fmt.Sprintf("%s/v1/optimize?iterations=%d", c.baseURL, iterations)
	hreq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		hreq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(hreq, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// Get fetches a job's state.
func (c *Client) Get(ctx context.Context, jobID string) (JobState, error) {
	var state JobState
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/optimize/"+jobID, nil)
	if err != nil {
		return state, err
	}
	err = c.do(req, &state)
	return state, err
}

// Cancel requests cancellation of a running job.
func (c *Client) Cancel(ctx context.Context, jobID string) (JobState, error) {
	var state JobState
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/v1/optimize/"+jobID, nil)
	if err != nil {
		return state, err
	}
	err = c.do(req, &state)
	return state, err
}

// List returns all jobs the server knows about, newest first.
func (c *Client) List(ctx context.Context) ([]AdminJob, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/admin/jobs", nil)
	if err != nil {
		return nil, err
	}
	var out []AdminJob
	err = c.do(req, &out)
	return out, err
}

// Delete removes a job and its events from the server.
func (c *Client) Delete(ctx context.Context, jobID string) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/v1/admin/jobs/"+jobID, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       "internal_error",
		Message:    strings.TrimSpace(string(raw)),
	}
}

// Stream follows a job's event stream, invoking fn for each envelope. It
// resumes automatically after connection loss using the last seen event id
// and returns nil once a terminal event arrives.
func (c *Client) Stream(ctx context.Context, jobID string, lastEventID int64, fn func(events.Envelope) error) error {
	retryDelay := time.Second
	for {
		done, retryMS, err := c.streamOnce(ctx, jobID, &lastEventID, fn)
		if done || errors.Is(err, context.Canceled) {
			return err
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			// Server-side rejection; reconnecting will not help.
			return err
		}
		if retryMS > 0 {
			retryDelay = time.Duration(retryMS) * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// streamOnce runs a single stream connection. It reports whether the
// stream is done (terminal seen, or the connection closed without
// delivering anything new) and the server-advertised retry delay.
func (c *Client) streamOnce(ctx context.Context, jobID string, lastEventID *int64, fn func(events.Envelope) error) (bool, int, error) {
	url := c.baseURL + "/v1/optimize/" + jobID + "/events"
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false, 0, err
	}
	if *lastEventID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(*lastEventID, 10))
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// Streaming has no overall deadline; the request context bounds it.
	httpClient := &http.Client{Transport: c.http.Transport}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return false, 0, decodeAPIError(resp)
	}

	retryMS := 0
	progressed := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "retry: "):
			if n, err := strconv.Atoi(strings.TrimPrefix(line, "retry: ")); err == nil {
				retryMS = n
			}
		case strings.HasPrefix(line, "data: "):
			env, err := events.Decode([]byte(strings.TrimPrefix(line, "data: ")))
			if err != nil {
				continue
			}
			if env.ID <= *lastEventID {
				continue
			}
			*lastEventID = env.ID
			progressed = true
			if err := fn(env); err != nil {
				return true, retryMS, err
			}
			if env.IsTerminal() {
				return true, retryMS, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return false, retryMS, err
	}
	// Clean close without a terminal: reconnect if this connection made
	// progress, otherwise the job has left memory and nothing more comes.
	return !progressed, retryMS, nil
}
