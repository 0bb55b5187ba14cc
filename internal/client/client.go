// ABOUTME: Typed HTTP client for the gateway API
// ABOUTME: Used by the sync poller and by worker processes appending results

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Event mirrors the gateway's event JSON shape.
type Event struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chat_id"`
	Seq       int64          `json:"seq"`
	EventType string         `json:"event_type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

// Window mirrors the gateway's window JSON shape.
type Window struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chat_id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload"`
	CreatedAt string         `json:"created_at"`
}

// Module mirrors the gateway's module JSON shape.
type Module struct {
	Name   string   `json:"name"`
	Title  string   `json:"title"`
	Tags   []string `json:"tags"`
	Prompt string   `json:"prompt"`
}

// SendResult is the gateway's response to a message submission.
type SendResult struct {
	Event      Event  `json:"event"`
	Dispatched bool   `json:"dispatched"`
	Error      string `json:"error,omitempty"`
}

// Client is a typed HTTP client for the gateway API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the gateway at baseURL authenticating with token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SendMessage submits a user message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID, message string) (*SendResult, error) {
	var result SendResult
	err := c.do(ctx, http.MethodPost, "/api/chats/"+chatID+"/messages",
		map[string]string{"message": message}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListEvents fetches the full ordered event log for a chat.
func (c *Client) ListEvents(ctx context.Context, chatID string) ([]Event, error) {
	var events []Event
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+chatID+"/events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListWindows fetches the windows for a chat.
func (c *Client) ListWindows(ctx context.Context, chatID string) ([]Window, error) {
	var windows []Window
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+chatID+"/windows", nil, &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

// AppendEvent appends a worker-produced event to a chat's log.
func (c *Client) AppendEvent(ctx context.Context, chatID, eventType, content string, metadata map[string]any) (*Event, error) {
	var event Event
	err := c.do(ctx, http.MethodPost, "/api/chats/"+chatID+"/events", map[string]any{
		"event_type": eventType,
		"content":    content,
		"metadata":   metadata,
	}, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// AppendWindow publishes a worker-produced window for a chat.
func (c *Client) AppendWindow(ctx context.Context, chatID, kind string, payload map[string]any) (*Window, error) {
	var window Window
	err := c.do(ctx, http.MethodPost, "/api/chats/"+chatID+"/windows", map[string]any{
		"kind":    kind,
		"payload": payload,
	}, &window)
	if err != nil {
		return nil, err
	}
	return &window, nil
}

// ListModules fetches the available module profiles.
func (c *Client) ListModules(ctx context.Context) ([]Module, error) {
	var mods []Module
	if err := c.do(ctx, http.MethodGet, "/api/modules", nil, &mods); err != nil {
		return nil, err
	}
	return mods, nil
}

// RetryDispatch re-submits the agent job for a chat without appending.
func (c *Client) RetryDispatch(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/api/chats/"+chatID+"/dispatch", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
