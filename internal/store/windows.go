// ABOUTME: Window storage for worker-produced auxiliary chat state
// ABOUTME: Windows are written only by the worker path and read by polling clients

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendWindow records a worker-produced window for a chat. Returns
// ErrNotFound if the chat does not exist. Windows carry no ordering
// guarantee; callers must not assume insertion order is meaningful.
func (s *SQLiteStore) AppendWindow(ctx context.Context, chatID, kind string, payload map[string]any) (*Window, error) {
	if err := s.chatExists(ctx, s.db, chatID); err != nil {
		return nil, err
	}

	payloadJSON, err := encodeMap(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	window := &Window{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	if window.Payload, err = decodeMap(payloadJSON); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO windows (id, chat_id, kind, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, window.ID, chatID, kind, payloadJSON, window.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("inserting window: %w", err)
	}

	s.logger.Debug("window appended", "window_id", window.ID, "chat_id", chatID, "kind", kind)
	return window, nil
}

// ListWindows retrieves all windows for a chat. Returns an empty slice for a
// chat with no windows and ErrNotFound when the chat itself does not exist.
func (s *SQLiteStore) ListWindows(ctx context.Context, chatID string) ([]*Window, error) {
	if err := s.chatExists(ctx, s.db, chatID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, kind, payload_json, created_at
		FROM windows
		WHERE chat_id = ?
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("querying windows: %w", err)
	}
	defer rows.Close()

	windows := []*Window{}
	for rows.Next() {
		window := &Window{}
		var payloadJSON, createdStr string

		if err := rows.Scan(&window.ID, &window.ChatID, &window.Kind, &payloadJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning window row: %w", err)
		}
		if window.Payload, err = decodeMap(payloadJSON); err != nil {
			return nil, fmt.Errorf("decoding payload: %w", err)
		}
		if window.CreatedAt, err = parseTimestamp(createdStr); err != nil {
			return nil, err
		}
		windows = append(windows, window)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating window rows: %w", err)
	}
	return windows, nil
}
