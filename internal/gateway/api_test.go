// ABOUTME: Tests for the gateway HTTP API
// ABOUTME: Covers auth rejection, message submission, polling reads, and worker paths

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphlabs/morph-gateway/internal/auth"
	"github.com/morphlabs/morph-gateway/internal/conversation"
	"github.com/morphlabs/morph-gateway/internal/dispatch"
	"github.com/morphlabs/morph-gateway/internal/store"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []*dispatch.Payload
	err      error
}

func (f *fakeDispatcher) Submit(ctx context.Context, payload *dispatch.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

type testGateway struct {
	gateway    *Gateway
	mock       *store.MockStore
	dispatcher *fakeDispatcher
	token      string
}

func setupGateway(t *testing.T) *testGateway {
	t.Helper()

	mock := store.NewMockStore()
	dispatcher := &fakeDispatcher{}
	service := conversation.New(conversation.NewRegistry(mock), mock, dispatcher, nil)
	verifier := auth.NewJWTVerifier([]byte("test-secret"))

	token, err := verifier.Generate("user-1", auth.RoleUser, time.Hour)
	require.NoError(t, err)

	g := New(Options{
		Addr:     ":0",
		Store:    mock,
		Service:  service,
		Verifier: verifier,
	})

	return &testGateway{gateway: g, mock: mock, dispatcher: dispatcher, token: token}
}

func (tg *testGateway) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+tg.token)
	rec := httptest.NewRecorder()
	tg.gateway.Handler().ServeHTTP(rec, req)
	return rec
}

func (tg *testGateway) createChat(t *testing.T, id, moduleName string) {
	t.Helper()
	ctx := context.Background()
	moduleID := ""
	if moduleName != "" {
		moduleID = "mod-" + moduleName
		require.NoError(t, tg.mock.UpsertModule(ctx, &store.Module{
			ID:        moduleID,
			Name:      moduleName,
			CreatedAt: time.Now(),
		}))
	}
	require.NoError(t, tg.mock.CreateChat(ctx, &store.Chat{
		ID:        id,
		ModuleID:  moduleID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}))
}

func TestAPI_RequiresAuth(t *testing.T) {
	tg := setupGateway(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/chats"},
		{http.MethodGet, "/api/chats/C1/events"},
		{http.MethodPost, "/api/chats/C1/messages"},
		{http.MethodGet, "/api/modules"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		rec := httptest.NewRecorder()
		tg.gateway.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestAPI_HealthNeedsNoAuth(t *testing.T) {
	tg := setupGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	tg.gateway.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_SendMessage(t *testing.T) {
	tg := setupGateway(t)
	tg.createChat(t, "C1", "physics")

	rec := tg.do(t, http.MethodPost, "/api/chats/C1/messages", SendMessageRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Dispatched)
	assert.Equal(t, "user_input", resp.Event.EventType)
	assert.Equal(t, "hello", resp.Event.Content)
	assert.Equal(t, int64(1), resp.Event.Seq)

	require.Len(t, tg.dispatcher.payloads, 1)
	payload := tg.dispatcher.payloads[0]
	assert.Equal(t, "physics", payload.Module)
	assert.Equal(t, "C1", payload.ChatID)
}

func TestAPI_SendMessage_UnknownChat(t *testing.T) {
	tg := setupGateway(t)

	rec := tg.do(t, http.MethodPost, "/api/chats/ghost/messages", SendMessageRequest{Message: "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SendMessage_EmptyMessage(t *testing.T) {
	tg := setupGateway(t)
	tg.createChat(t, "C1", "")

	rec := tg.do(t, http.MethodPost, "/api/chats/C1/messages", SendMessageRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SendMessage_DispatchRejected(t *testing.T) {
	tg := setupGateway(t)
	tg.createChat(t, "C1", "")
	tg.dispatcher.err = fmt.Errorf("%w: down", dispatch.ErrRejected)

	rec := tg.do(t, http.MethodPost, "/api/chats/C1/messages", SendMessageRequest{Message: "hello"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Dispatched)
	assert.Equal(t, "hello", resp.Event.Content, "the persisted event travels with the error response")

	// The event survived in the store
	events, err := tg.mock.ListEvents(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestAPI_RetryDispatch(t *testing.T) {
	tg := setupGateway(t)
	tg.createChat(t, "C1", "")

	tg.dispatcher.err = fmt.Errorf("%w: down", dispatch.ErrRejected)
	rec := tg.do(t, http.MethodPost, "/api/chats/C1/messages", SendMessageRequest{Message: "hello"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	tg.dispatcher.err = nil
	rec = tg.do(t, http.MethodPost, "/api/chats/C1/dispatch", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, tg.dispatcher.payloads, 1)
	assert.Equal(t, "hello", tg.dispatcher.payloads[0].Message)
}

func TestAPI_RetryDispatch_NoUserInput(t *testing.T) {
	tg := setupGateway(t)
	tg.createChat(t, "C1", "")

	rec := tg.do(t, http.MethodPost, "/api/chats/C1/dispatch", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_ListEvents_Polling(t *testing.T) {
	tg := setupGateway(t)
	tg.createChat(t, "C1", "")

	rec := tg.do(t, http.MethodGet, "/api/chats/C1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty []EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty)

	tg.do(t, http.MethodPost, "/api/chats/C1/messages", SendMessageRequest{Message: "a"})
	tg.do(t, http.MethodPost, "/api/chats/C1/messages", SendMessageRequest{Message: "b"})

	rec = tg.do(t, http.MethodGet, "/api/chats/C1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Content)
	assert.Equal(t, "b", events[1].Content)

	// Identical on repeat
	rec2 := tg.do(t, http.MethodGet, "/api/chats/C1/events", nil)
	assert.JSONEq(t, rec.Body.String(), rec2.Body.String())
}

func TestAPI_WorkerAppendsEvent(t *testing.T) {
	tg := setupGateway(t)
	tg.createChat(t, "C1", "")

	rec := tg.do(t, http.MethodPost, "/api/chats/C1/events", AppendEventRequest{
		EventType: "model_response",
		Content:   "gravity pulls",
		Metadata:  map[string]any{"model": "opus"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var event EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
	assert.Equal(t, "model_response", event.EventType)
	assert.Equal(t, int64(1), event.Seq)
}

func TestAPI_WorkerCannotAppendUserInput(t *testing.T) {
	tg := setupGateway(t)
	tg.createChat(t, "C1", "")

	rec := tg.do(t, http.MethodPost, "/api/chats/C1/events", AppendEventRequest{
		EventType: "user_input",
		Content:   "fake user",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Windows(t *testing.T) {
	tg := setupGateway(t)
	tg.createChat(t, "C1", "")

	rec := tg.do(t, http.MethodPost, "/api/chats/C1/windows", AppendWindowRequest{
		Kind:    "simulation",
		Payload: map[string]any{"artifact": "orbits.html"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = tg.do(t, http.MethodGet, "/api/chats/C1/windows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var windows []WindowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &windows))
	require.Len(t, windows, 1)
	assert.Equal(t, "simulation", windows[0].Kind)

	rec = tg.do(t, http.MethodGet, "/api/chats/ghost/windows", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateChatAndListModules(t *testing.T) {
	tg := setupGateway(t)
	require.NoError(t, tg.mock.UpsertModule(context.Background(), &store.Module{
		ID:        "mod-1",
		Name:      "physics",
		Title:     "Physics Engine",
		Tags:      []string{"Gravity"},
		CreatedAt: time.Now(),
	}))

	rec := tg.do(t, http.MethodPost, "/api/chats", CreateChatRequest{
		Title:  "Orbits",
		Module: "physics",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var chat ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	assert.NotEmpty(t, chat.ID)
	assert.Equal(t, "physics", chat.Module)
	assert.NotNil(t, chat.Settings)

	rec = tg.do(t, http.MethodPost, "/api/chats", CreateChatRequest{Module: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	tg.mock.CreateChatErr = store.ErrDuplicateChat
	rec = tg.do(t, http.MethodPost, "/api/chats", CreateChatRequest{Title: "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	tg.mock.CreateChatErr = nil

	rec = tg.do(t, http.MethodGet, "/api/modules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var modules []ModuleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &modules))
	require.Len(t, modules, 1)
	assert.Equal(t, "physics", modules[0].Name)
}
