// ABOUTME: Tests for the in-memory mock store
// ABOUTME: Verifies the mock honors the same contract the SQLite store does

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_EventContract(t *testing.T) {
	mock := NewMockStore()
	ctx := context.Background()

	_, err := mock.AppendEvent(ctx, "ghost", EventTypeUserInput, "hi", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = mock.ListEvents(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.CreateChat(ctx, &Chat{ID: "c1", CreatedAt: time.Now(), UpdatedAt: time.Now()}))

	first, err := mock.AppendEvent(ctx, "c1", EventTypeUserInput, "a", nil)
	require.NoError(t, err)
	second, err := mock.AppendEvent(ctx, "c1", EventTypeModelResponse, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)

	events, err := mock.ListEvents(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Content)
	assert.Equal(t, "b", events[1].Content)
	assert.NotNil(t, events[0].Metadata)
}

func TestMockStore_WindowContract(t *testing.T) {
	mock := NewMockStore()
	ctx := context.Background()

	require.NoError(t, mock.CreateChat(ctx, &Chat{ID: "c1", CreatedAt: time.Now(), UpdatedAt: time.Now()}))

	_, err := mock.AppendWindow(ctx, "c1", "simulation", map[string]any{"url": "x"})
	require.NoError(t, err)

	windows, err := mock.ListWindows(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, windows, 1)
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	mock := NewMockStore()
	ctx := context.Background()

	require.NoError(t, mock.CreateChat(ctx, &Chat{ID: "c1", Title: "orig", CreatedAt: time.Now(), UpdatedAt: time.Now()}))

	chat, err := mock.GetChat(ctx, "c1")
	require.NoError(t, err)
	chat.Title = "mutated"

	again, err := mock.GetChat(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "orig", again.Title)
}

func TestMockStore_AppendEventErr(t *testing.T) {
	mock := NewMockStore()
	ctx := context.Background()

	require.NoError(t, mock.CreateChat(ctx, &Chat{ID: "c1", CreatedAt: time.Now(), UpdatedAt: time.Now()}))
	mock.AppendEventErr = assert.AnError

	_, err := mock.AppendEvent(ctx, "c1", EventTypeUserInput, "hi", nil)
	assert.ErrorIs(t, err, assert.AnError)
}
