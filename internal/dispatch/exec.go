// ABOUTME: Process dispatcher that runs the agent worker as a local subprocess
// ABOUTME: Delivers the payload over stdin so unbounded histories never hit argv limits

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ExecDispatcher runs the agent worker as a local child process for each job.
// The payload is written to the worker's stdin as a single JSON document;
// conversation histories are unbounded and must never be truncated by an
// argument-list limit. Used for single-host deployments and development,
// where no external task backend exists.
type ExecDispatcher struct {
	command     string
	args        []string
	maxDuration time.Duration
	logger      *slog.Logger
}

// NewExecDispatcher creates a dispatcher that spawns command with args for
// each submitted job. maxDuration bounds the worker's wall-clock run; zero
// means DefaultMaxDuration.
func NewExecDispatcher(command string, args []string, maxDuration time.Duration) *ExecDispatcher {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &ExecDispatcher{
		command:     command,
		args:        args,
		maxDuration: maxDuration,
		logger:      slog.Default().With("component", "dispatch"),
	}
}

// Submit starts the worker process and returns once it is running. The
// process outlives the call; its exit is observed only for logging. A worker
// that cannot be started counts as a rejected dispatch.
func (d *ExecDispatcher) Submit(ctx context.Context, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	// The run ceiling is detached from the caller's request context: dispatch
	// is fire-and-forget, so the worker must survive the HTTP request ending.
	runCtx, cancel := context.WithTimeout(context.Background(), d.maxDuration)

	cmd := exec.CommandContext(runCtx, d.command, d.args...)
	cmd.Stdin = bytes.NewReader(body)

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: starting worker: %v", ErrRejected, err)
	}

	d.logger.Info("worker started",
		"chat_id", payload.ChatID,
		"pid", cmd.Process.Pid,
		"max_duration", d.maxDuration)

	go func() {
		defer cancel()
		if err := cmd.Wait(); err != nil {
			d.logger.Error("worker exited with error", "chat_id", payload.ChatID, "error", err)
			return
		}
		d.logger.Debug("worker finished", "chat_id", payload.ChatID)
	}()

	return nil
}
