// ABOUTME: Polling sync loop that surfaces new chat events as they land
// ABOUTME: Tracks the last seen sequence number and emits only newer events

package client

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval matches the cadence the reference client polls at.
const DefaultPollInterval = 2 * time.Second

// Poller repeatedly reads a chat's event log and invokes a handler for
// each event it has not seen before. Read failures are logged and
// retried on the next tick; the loop exits when the context is done.
type Poller struct {
	client   *Client
	chatID   string
	interval time.Duration
	lastSeq  int64
	logger   *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval overrides the polling cadence.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = d
	}
}

// WithAfterSeq skips events at or below seq, resuming a prior session.
func WithAfterSeq(seq int64) PollerOption {
	return func(p *Poller) {
		p.lastSeq = seq
	}
}

// NewPoller creates a poller for one chat.
func NewPoller(client *Client, chatID string, logger *slog.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		client:   client,
		chatID:   chatID,
		interval: DefaultPollInterval,
		logger:   logger.With("component", "poller", "chat_id", chatID),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled, calling handle once per new event
// in sequence order. An initial read happens immediately; subsequent
// reads follow the configured interval.
func (p *Poller) Run(ctx context.Context, handle func(Event)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx, handle)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx, handle)
		}
	}
}

func (p *Poller) poll(ctx context.Context, handle func(Event)) {
	events, err := p.client.ListEvents(ctx, p.chatID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("poll failed, will retry", "error", err)
		return
	}

	for _, event := range events {
		if event.Seq <= p.lastSeq {
			continue
		}
		p.lastSeq = event.Seq
		handle(event)
	}
}
