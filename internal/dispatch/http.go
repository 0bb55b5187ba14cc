// ABOUTME: HTTP task backend client for triggering agent runs
// ABOUTME: POSTs a run-agent job description and treats any non-2xx as rejection

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// triggerRequest is the job description submitted to the task backend.
type triggerRequest struct {
	Task               string   `json:"task"`
	MaxDurationSeconds int      `json:"max_duration_seconds"`
	Payload            *Payload `json:"payload"`
}

// HTTPDispatcher submits jobs to a task-execution backend over HTTP.
// The backend owns queuing, retries per its own policy, and worker invocation.
type HTTPDispatcher struct {
	baseURL     string
	token       string
	maxDuration time.Duration
	client      *http.Client
	logger      *slog.Logger
}

// HTTPOption configures an HTTPDispatcher.
type HTTPOption func(*HTTPDispatcher)

// WithHTTPClient overrides the HTTP client (used by tests).
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(d *HTTPDispatcher) { d.client = client }
}

// WithMaxDuration overrides the execution ceiling sent with each job.
func WithMaxDuration(max time.Duration) HTTPOption {
	return func(d *HTTPDispatcher) { d.maxDuration = max }
}

// NewHTTPDispatcher creates a dispatcher that submits jobs to the task
// backend at baseURL, authenticating with the given bearer token.
func NewHTTPDispatcher(baseURL, token string, opts ...HTTPOption) *HTTPDispatcher {
	d := &HTTPDispatcher{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		maxDuration: DefaultMaxDuration,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      slog.Default().With("component", "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit hands the payload to the task backend as an accept-and-return call.
func (d *HTTPDispatcher) Submit(ctx context.Context, payload *Payload) error {
	body, err := json.Marshal(triggerRequest{
		Task:               TaskName,
		MaxDurationSeconds: int(d.maxDuration.Seconds()),
		Payload:            payload,
	})
	if err != nil {
		return fmt.Errorf("encoding trigger request: %w", err)
	}

	url := d.baseURL + "/api/tasks/trigger"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: task backend unreachable: %v", ErrRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: task backend returned %d: %s", ErrRejected, resp.StatusCode, snippet)
	}

	d.logger.Debug("job accepted",
		"task", TaskName,
		"chat_id", payload.ChatID,
		"history_len", len(payload.History))
	return nil
}
