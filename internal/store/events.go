// ABOUTME: Append-only event log backing conversation history
// ABOUTME: Assigns per-chat sequence numbers transactionally to give a total order

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// appendRetries is how many times AppendEvent retries after losing a
// seq-assignment race to a concurrent appender on the same chat.
const appendRetries = 5

// AppendEvent records a new event at the end of a chat's log and returns the
// persisted event including its assigned sequence number. Returns ErrNotFound
// if the chat does not exist. The append is atomic: either the full event is
// written with a unique (chat_id, seq) or nothing is.
//
// Sequence numbers are assigned inside the insert transaction as max(seq)+1
// for the chat. Two appends racing on the same chat collide on the unique
// (chat_id, seq) index; the loser retries and lands after the winner, which
// gives arrival-order tie-breaking rather than wall-clock ordering.
func (s *SQLiteStore) AppendEvent(ctx context.Context, chatID, eventType, content string, metadata map[string]any) (*Event, error) {
	metadataJSON, err := encodeMap(metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	event := &Event{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Type:      eventType,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if event.Metadata, err = decodeMap(metadataJSON); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= appendRetries; attempt++ {
		seq, err := s.insertEvent(ctx, event, metadataJSON)
		if err == nil {
			event.Seq = seq
			s.logger.Debug("event appended",
				"event_id", event.ID,
				"chat_id", chatID,
				"seq", seq,
				"type", eventType)
			return event, nil
		}
		if !isRetryableAppend(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("appending event after %d retries: %w", appendRetries, lastErr)
}

// insertEvent performs one transactional seq assignment and insert attempt
func (s *SQLiteStore) insertEvent(ctx context.Context, event *Event, metadataJSON string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.chatExists(ctx, tx, event.ChatID); err != nil {
		return 0, err
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE chat_id = ?`,
		event.ChatID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("assigning sequence number: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, chat_id, seq, event_type, content, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.ChatID, seq, event.Type, event.Content, metadataJSON,
		event.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("inserting event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing event: %w", err)
	}
	return seq, nil
}

// isRetryableAppend reports whether an append attempt failed in a way a
// retry can win: losing the (chat_id, seq) race to a concurrent appender, or
// finding the write lock held past the busy timeout.
func isRetryableAppend(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// ListEvents retrieves all events for a chat in sequence order (oldest first).
// Returns an empty slice for a chat with no events and ErrNotFound when the
// chat itself does not exist. Reads have no side effects; repeated calls with
// no intervening appends return identical results.
func (s *SQLiteStore) ListEvents(ctx context.Context, chatID string) ([]*Event, error) {
	if err := s.chatExists(ctx, s.db, chatID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, seq, event_type, content, metadata_json, created_at
		FROM events
		WHERE chat_id = ?
		ORDER BY seq ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		var metadataJSON, createdStr string

		if err := rows.Scan(
			&event.ID,
			&event.ChatID,
			&event.Seq,
			&event.Type,
			&event.Content,
			&metadataJSON,
			&createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}

		if event.Metadata, err = decodeMap(metadataJSON); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
		if event.CreatedAt, err = parseTimestamp(createdStr); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}
	return events, nil
}
