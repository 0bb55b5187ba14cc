// ABOUTME: Tests for window storage
// ABOUTME: Covers worker-side writes, client-side reads, and not-found behavior

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindows_AppendAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestChat(t, store, "chat-1")

	window, err := store.AppendWindow(ctx, "chat-1", "simulation", map[string]any{
		"artifact": "orbits.html",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, window.ID)
	assert.Equal(t, "simulation", window.Kind)

	windows, err := store.ListWindows(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, window.ID, windows[0].ID)
	assert.Equal(t, map[string]any{"artifact": "orbits.html"}, windows[0].Payload)
}

func TestWindows_UnknownChat(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.AppendWindow(ctx, "ghost", "simulation", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.ListWindows(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWindows_EmptyChatYieldsEmptySlice(t *testing.T) {
	store := setupTestStore(t)
	createTestChat(t, store, "chat-none")

	windows, err := store.ListWindows(context.Background(), "chat-none")
	require.NoError(t, err)
	assert.NotNil(t, windows)
	assert.Empty(t, windows)
}

func TestWindows_NilPayloadBecomesEmptyMap(t *testing.T) {
	store := setupTestStore(t)
	createTestChat(t, store, "chat-nil")

	window, err := store.AppendWindow(context.Background(), "chat-nil", "scratch", nil)
	require.NoError(t, err)
	require.NotNil(t, window.Payload)
	assert.Empty(t, window.Payload)
}
