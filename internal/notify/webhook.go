// Package notify delivers job terminal transitions to an external webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const deliveryTimeout = 10 * time.Second

// Payload is the JSON body posted on each terminal transition.
type Payload struct {
	JobID  string  `json:"job_id"`
	Status string  `json:"status"`
	TS     float64 `json:"ts"`
	Error  string  `json:"error,omitempty"`
}

// Webhook posts terminal notifications to an HTTP endpoint. Delivery is
// fire-and-forget; failures are logged, never retried.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhook creates a webhook notifier with a default HTTP client.
func NewWebhook(url string, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		logger: logger,
		client: &http.Client{
			Timeout: deliveryTimeout,
		},
	}
}

// JobTerminal posts the notification in the background so the emitter
// never blocks on the network.
func (w *Webhook) JobTerminal(jobID, status string, ts float64, errText string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if err := w.deliver(ctx, Payload{JobID: jobID, Status: status, TS: ts, Error: errText}); err != nil {
			w.logger.Warn("webhook delivery failed", "job_id", jobID, "error", err)
		}
	}()
}

func (w *Webhook) deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
