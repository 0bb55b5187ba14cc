// ABOUTME: Service is the dispatch gateway turning user messages into durable events and agent jobs
// ABOUTME: Record first, then dispatch - the append is the durability point, dispatch is best-effort

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morphlabs/morph-gateway/internal/dispatch"
	"github.com/morphlabs/morph-gateway/internal/store"
)

// ErrDispatchRejected is returned by SendMessage when the user message was
// durably recorded but the task backend did not accept the job. The persisted
// event is returned alongside the error so callers can acknowledge receipt
// and offer a retry-dispatch action without duplicating the message.
var ErrDispatchRejected = dispatch.ErrRejected

// ErrNoUserInput is returned by RetryDispatch when a chat has no user_input
// event to re-dispatch.
var ErrNoUserInput = errors.New("chat has no user input to dispatch")

// EventStore defines what the service needs from storage
type EventStore interface {
	AppendEvent(ctx context.Context, chatID, eventType, content string, metadata map[string]any) (*store.Event, error)
	ListEvents(ctx context.Context, chatID string) ([]*store.Event, error)
	ListWindows(ctx context.Context, chatID string) ([]*store.Window, error)
}

// Service coordinates message submission: resolve config, record the event,
// re-read authoritative history, and hand a payload to the dispatcher.
// It holds no per-conversation state between calls.
type Service struct {
	registry   *Registry
	store      EventStore
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
}

// New creates a conversation service.
func New(registry *Registry, eventStore EventStore, dispatcher dispatch.Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:   registry,
		store:      eventStore,
		dispatcher: dispatcher,
		logger:     logger.With("component", "conversation"),
	}
}

// SendMessage records a user message and triggers an asynchronous agent run.
//
// Key principle: record first, then act. The user_input append is the
// durability point; once it succeeds the message survives no matter what
// dispatch does. History is re-read from the store after the append rather
// than assembled in memory, so the worker always sees the authoritative
// post-append state including events written concurrently by other actors.
//
// On success the persisted user event is returned. If the append succeeded
// but the backend refused the job, the event is returned together with an
// error satisfying errors.Is(err, ErrDispatchRejected).
func (s *Service) SendMessage(ctx context.Context, chatID, message string) (*store.Event, error) {
	config, err := s.registry.Resolve(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("resolving chat: %w", err)
	}

	event, err := s.store.AppendEvent(ctx, chatID, store.EventTypeUserInput, message, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	s.logger.Debug("user message recorded",
		"chat_id", chatID,
		"event_id", event.ID,
		"seq", event.Seq)

	payload, err := s.buildPayload(ctx, chatID, message, config)
	if err != nil {
		return event, err
	}

	if err := s.dispatcher.Submit(ctx, payload); err != nil {
		s.logger.Warn("dispatch rejected after message was recorded",
			"chat_id", chatID,
			"event_id", event.ID,
			"error", err)
		return event, fmt.Errorf("dispatching message: %w", err)
	}

	return event, nil
}

// RetryDispatch re-submits the agent job for a chat whose last send was
// recorded but never dispatched. It appends nothing: the latest user_input
// already in the log becomes the message, and history is re-derived from the
// store as usual.
func (s *Service) RetryDispatch(ctx context.Context, chatID string) error {
	config, err := s.registry.Resolve(ctx, chatID)
	if err != nil {
		return fmt.Errorf("resolving chat: %w", err)
	}

	events, err := s.store.ListEvents(ctx, chatID)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	message := ""
	found := false
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == store.EventTypeUserInput {
			message = events[i].Content
			found = true
			break
		}
	}
	if !found {
		return ErrNoUserInput
	}

	payload := &dispatch.Payload{
		Message:  message,
		History:  reduceHistory(events),
		Settings: config.Settings,
		ChatID:   chatID,
		Module:   config.ModuleName,
	}

	if err := s.dispatcher.Submit(ctx, payload); err != nil {
		return fmt.Errorf("dispatching message: %w", err)
	}

	s.logger.Info("dispatch retried", "chat_id", chatID, "history_len", len(events))
	return nil
}

// GetEvents returns the full ordered event log for a chat. This is the read
// the polling sync client depends on: no side effects, identical results for
// repeated calls with no intervening writes.
func (s *Service) GetEvents(ctx context.Context, chatID string) ([]*store.Event, error) {
	return s.store.ListEvents(ctx, chatID)
}

// GetWindows returns the worker-produced windows for a chat.
func (s *Service) GetWindows(ctx context.Context, chatID string) ([]*store.Window, error) {
	return s.store.ListWindows(ctx, chatID)
}

// buildPayload re-reads the chat's event log and reduces it to the worker's
// input shape. Never reuses an in-memory transcript.
func (s *Service) buildPayload(ctx context.Context, chatID, message string, config *ChatConfig) (*dispatch.Payload, error) {
	events, err := s.store.ListEvents(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	return &dispatch.Payload{
		Message:  message,
		History:  reduceHistory(events),
		Settings: config.Settings,
		ChatID:   chatID,
		Module:   config.ModuleName,
	}, nil
}

// reduceHistory maps stored events to {event_type, content, metadata} entries
func reduceHistory(events []*store.Event) []dispatch.HistoryEntry {
	history := make([]dispatch.HistoryEntry, len(events))
	for i, event := range events {
		metadata := event.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		history[i] = dispatch.HistoryEntry{
			EventType: event.Type,
			Content:   event.Content,
			Metadata:  metadata,
		}
	}
	return history
}
