// ABOUTME: Dispatcher contract and payload types for handing work to the agent backend
// ABOUTME: Submit means accepted-for-async-processing, never processing-complete

package dispatch

import (
	"context"
	"errors"
	"time"
)

// ErrRejected is returned when the task backend refuses a job or is
// unreachable. By the time Submit is called the triggering event is already
// durably recorded, so callers surface this distinctly and offer a
// retry-dispatch action instead of re-sending the message.
var ErrRejected = errors.New("dispatch rejected")

// TaskName identifies the agent job on the task backend.
const TaskName = "run-agent"

// DefaultMaxDuration is the wall-clock execution ceiling for one worker run.
// Enforced by the backend (or by the process dispatcher), not by the gateway.
const DefaultMaxDuration = 5 * time.Minute

// HistoryEntry is one event reduced to the shape the worker consumes.
type HistoryEntry struct {
	EventType string         `json:"event_type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
}

// Payload is the complete worker invocation input. It is constructed per
// dispatch from the authoritative post-append event log, handed to the
// backend, and then discarded; the gateway keeps no copy.
type Payload struct {
	Message  string         `json:"message"`
	History  []HistoryEntry `json:"history"`
	Settings map[string]any `json:"settings"`
	ChatID   string         `json:"chatId"`
	Module   string         `json:"module,omitempty"`
}

// Dispatcher hands a payload to the task-execution backend. Submit returns
// once the job is accepted; it never waits for, retries, or inspects worker
// completion. Implementations must return an error wrapping ErrRejected when
// the backend refuses the job or cannot be reached.
type Dispatcher interface {
	Submit(ctx context.Context, payload *Payload) error
}
