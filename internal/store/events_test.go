// ABOUTME: Tests for the append-only event log
// ABOUTME: Covers ordering, isolation between chats, concurrency, and read idempotence

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents_AppendAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestChat(t, store, "chat-1")

	event, err := store.AppendEvent(ctx, "chat-1", EventTypeUserInput, "hello", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, int64(1), event.Seq)
	assert.Equal(t, EventTypeUserInput, event.Type)
	assert.Equal(t, "hello", event.Content)
	require.NotNil(t, event.Metadata)
	assert.Empty(t, event.Metadata, "nil metadata is stored as an empty mapping")

	events, err := store.ListEvents(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, "hello", events[0].Content)
}

func TestEvents_AppendToUnknownChat(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.AppendEvent(context.Background(), "ghost", EventTypeUserInput, "hi", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvents_ListUnknownChat(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.ListEvents(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvents_EmptyChatYieldsEmptySlice(t *testing.T) {
	store := setupTestStore(t)
	createTestChat(t, store, "chat-empty")

	events, err := store.ListEvents(context.Background(), "chat-empty")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestEvents_SequentialOrdering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestChat(t, store, "chat-seq")

	for i := 0; i < 10; i++ {
		event, err := store.AppendEvent(ctx, "chat-seq", EventTypeUserInput, fmt.Sprintf("msg-%d", i), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), event.Seq)
	}

	events, err := store.ListEvents(ctx, "chat-seq")
	require.NoError(t, err)
	require.Len(t, events, 10)
	for i, event := range events {
		assert.Equal(t, int64(i+1), event.Seq)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), event.Content)
	}
}

func TestEvents_MetadataRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestChat(t, store, "chat-meta")

	metadata := map[string]any{"tool": "render", "args": map[string]any{"fps": float64(60)}}
	_, err := store.AppendEvent(ctx, "chat-meta", EventTypeToolCall, "render()", metadata)
	require.NoError(t, err)

	events, err := store.ListEvents(ctx, "chat-meta")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, metadata, events[0].Metadata)
}

func TestEvents_IsolationBetweenChats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestChat(t, store, "chat-a")
	createTestChat(t, store, "chat-b")

	_, err := store.AppendEvent(ctx, "chat-a", EventTypeUserInput, "only in a", nil)
	require.NoError(t, err)

	eventsB, err := store.ListEvents(ctx, "chat-b")
	require.NoError(t, err)
	assert.Empty(t, eventsB)

	// Seq restarts per chat
	event, err := store.AppendEvent(ctx, "chat-b", EventTypeUserInput, "first in b", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), event.Seq)
}

func TestEvents_RepeatedReadsIdentical(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestChat(t, store, "chat-idem")
	_, err := store.AppendEvent(ctx, "chat-idem", EventTypeUserInput, "a", nil)
	require.NoError(t, err)
	_, err = store.AppendEvent(ctx, "chat-idem", EventTypeModelResponse, "b", nil)
	require.NoError(t, err)

	first, err := store.ListEvents(ctx, "chat-idem")
	require.NoError(t, err)
	second, err := store.ListEvents(ctx, "chat-idem")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEvents_ConcurrentAppends(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestChat(t, store, "chat-race")

	// Enough writers to contend on the write lock, not just the seq index
	const writers = 16
	const perWriter = 20

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(writer int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := store.AppendEvent(ctx, "chat-race", EventTypeUserInput,
					fmt.Sprintf("w%d-%d", writer, i), nil)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	events, err := store.ListEvents(ctx, "chat-race")
	require.NoError(t, err)
	require.Len(t, events, writers*perWriter)

	// Total order: seq values are exactly 1..N with no gaps or duplicates
	for i, event := range events {
		assert.Equal(t, int64(i+1), event.Seq)
	}

	// Per-writer order preserved: each writer's messages appear in its own send order
	lastIndex := make(map[int]int)
	position := make(map[string]int)
	for i, event := range events {
		position[event.Content] = i
	}
	for w := 0; w < writers; w++ {
		for i := 0; i < perWriter; i++ {
			pos, ok := position[fmt.Sprintf("w%d-%d", w, i)]
			require.True(t, ok)
			if i > 0 {
				assert.Greater(t, pos, lastIndex[w],
					"writer %d message %d appeared before its predecessor", w, i)
			}
			lastIndex[w] = pos
		}
	}
}
