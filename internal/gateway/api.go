// ABOUTME: HTTP API handlers for the conversation pipeline
// ABOUTME: Message submission, event polling, window reads, and worker write paths

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morphlabs/morph-gateway/internal/conversation"
	"github.com/morphlabs/morph-gateway/internal/store"
)

// CreateChatRequest is the JSON request body for POST /api/chats.
type CreateChatRequest struct {
	Title    string         `json:"title,omitempty"`
	Module   string         `json:"module,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// ChatResponse is the JSON shape for a chat.
type ChatResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Module    string         `json:"module,omitempty"`
	Settings  map[string]any `json:"settings"`
	CreatedAt string         `json:"created_at"`
}

// SendMessageRequest is the JSON request body for POST /api/chats/{id}/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessageResponse is the JSON response for message submission. Dispatched
// reports whether the agent job was accepted; when false the event is still
// durably recorded and the client may retry the dispatch.
type SendMessageResponse struct {
	Event      EventResponse `json:"event"`
	Dispatched bool          `json:"dispatched"`
	Error      string        `json:"error,omitempty"`
}

// AppendEventRequest is the JSON request body for the worker append path.
type AppendEventRequest struct {
	EventType string         `json:"event_type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventResponse is the JSON shape for one event.
type EventResponse struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chat_id"`
	Seq       int64          `json:"seq"`
	EventType string         `json:"event_type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

// AppendWindowRequest is the JSON request body for the worker window path.
type AppendWindowRequest struct {
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// WindowResponse is the JSON shape for one window.
type WindowResponse struct {
	ID        string         `json:"id"`
	ChatID    string         `json:"chat_id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload"`
	CreatedAt string         `json:"created_at"`
}

// ModuleResponse is the JSON shape for one module profile.
type ModuleResponse struct {
	Name   string   `json:"name"`
	Title  string   `json:"title"`
	Tags   []string `json:"tags"`
	Prompt string   `json:"prompt"`
}

// handleChats handles GET and POST /api/chats.
func (g *Gateway) handleChats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListChats(w, r)
	case http.MethodPost:
		g.handleCreateChat(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleChatRoutes dispatches /api/chats/{id}/... sub-routes.
func (g *Gateway) handleChatRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	parts := strings.SplitN(rest, "/", 2)
	chatID := parts[0]
	if chatID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "chat id is required")
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		g.handleGetChat(w, r, chatID)
	case sub == "messages" && r.Method == http.MethodPost:
		g.handleSendMessage(w, r, chatID)
	case sub == "dispatch" && r.Method == http.MethodPost:
		g.handleRetryDispatch(w, r, chatID)
	case sub == "events" && r.Method == http.MethodGet:
		g.handleListEvents(w, r, chatID)
	case sub == "events" && r.Method == http.MethodPost:
		g.handleAppendEvent(w, r, chatID)
	case sub == "windows" && r.Method == http.MethodGet:
		g.handleListWindows(w, r, chatID)
	case sub == "windows" && r.Method == http.MethodPost:
		g.handleAppendWindow(w, r, chatID)
	default:
		g.sendJSONError(w, http.StatusNotFound, "unknown route")
	}
}

// handleCreateChat handles POST /api/chats.
func (g *Gateway) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	moduleID := ""
	moduleName := ""
	if req.Module != "" {
		module, err := g.store.GetModuleByName(r.Context(), req.Module)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				g.sendJSONError(w, http.StatusNotFound, "module not found")
				return
			}
			g.internalError(w, "looking up module", err)
			return
		}
		moduleID = module.ID
		moduleName = module.Name
	}

	now := time.Now().UTC()
	chat := &store.Chat{
		ID:        uuid.New().String(),
		Title:     req.Title,
		ModuleID:  moduleID,
		Settings:  req.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.store.CreateChat(r.Context(), chat); err != nil {
		if errors.Is(err, store.ErrDuplicateChat) {
			g.sendJSONError(w, http.StatusConflict, "chat already exists")
			return
		}
		g.internalError(w, "creating chat", err)
		return
	}

	g.sendJSON(w, http.StatusCreated, chatToResponse(chat, moduleName))
}

// handleListChats handles GET /api/chats.
func (g *Gateway) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := g.store.ListChats(r.Context(), 100)
	if err != nil {
		g.internalError(w, "listing chats", err)
		return
	}

	response := make([]ChatResponse, 0, len(chats))
	for _, chat := range chats {
		moduleName := ""
		if chat.ModuleID != "" {
			if module, err := g.store.GetModule(r.Context(), chat.ModuleID); err == nil {
				moduleName = module.Name
			}
		}
		response = append(response, chatToResponse(chat, moduleName))
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleGetChat handles GET /api/chats/{id}.
func (g *Gateway) handleGetChat(w http.ResponseWriter, r *http.Request, chatID string) {
	chat, err := g.store.GetChat(r.Context(), chatID)
	if err != nil {
		g.chatError(w, err)
		return
	}

	moduleName := ""
	if chat.ModuleID != "" {
		if module, err := g.store.GetModule(r.Context(), chat.ModuleID); err == nil {
			moduleName = module.Name
		}
	}
	g.sendJSON(w, http.StatusOK, chatToResponse(chat, moduleName))
}

// handleSendMessage handles POST /api/chats/{id}/messages.
//
// The recorded-but-undispatched case maps to 502: the body still carries the
// persisted event with dispatched=false so the client can acknowledge the
// message and offer a retry-dispatch action instead of re-sending it.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request, chatID string) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		g.sendJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	event, err := g.service.SendMessage(r.Context(), chatID, req.Message)
	if err != nil {
		if errors.Is(err, conversation.ErrDispatchRejected) && event != nil {
			g.logger.Warn("message recorded but dispatch rejected", "chat_id", chatID, "error", err)
			g.sendJSON(w, http.StatusBadGateway, SendMessageResponse{
				Event:      eventToResponse(event),
				Dispatched: false,
				Error:      "dispatch rejected",
			})
			return
		}
		g.chatError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, SendMessageResponse{
		Event:      eventToResponse(event),
		Dispatched: true,
	})
}

// handleRetryDispatch handles POST /api/chats/{id}/dispatch.
func (g *Gateway) handleRetryDispatch(w http.ResponseWriter, r *http.Request, chatID string) {
	if err := g.service.RetryDispatch(r.Context(), chatID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			g.sendJSONError(w, http.StatusNotFound, "chat not found")
		case errors.Is(err, conversation.ErrNoUserInput):
			g.sendJSONError(w, http.StatusConflict, "chat has no user input to dispatch")
		case errors.Is(err, conversation.ErrDispatchRejected):
			g.sendJSONError(w, http.StatusBadGateway, "dispatch rejected")
		default:
			g.internalError(w, "retrying dispatch", err)
		}
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]bool{"dispatched": true})
}

// handleListEvents handles GET /api/chats/{id}/events.
// This is the polling read: side-effect free and idempotent.
func (g *Gateway) handleListEvents(w http.ResponseWriter, r *http.Request, chatID string) {
	events, err := g.service.GetEvents(r.Context(), chatID)
	if err != nil {
		g.chatError(w, err)
		return
	}

	response := make([]EventResponse, len(events))
	for i, event := range events {
		response[i] = eventToResponse(event)
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleAppendEvent handles POST /api/chats/{id}/events, the worker's path
// for appending result events.
func (g *Gateway) handleAppendEvent(w http.ResponseWriter, r *http.Request, chatID string) {
	var req AppendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventType == "" {
		g.sendJSONError(w, http.StatusBadRequest, "event_type is required")
		return
	}
	if req.EventType == store.EventTypeUserInput {
		g.sendJSONError(w, http.StatusBadRequest, "user_input events go through the messages endpoint")
		return
	}

	event, err := g.store.AppendEvent(r.Context(), chatID, req.EventType, req.Content, req.Metadata)
	if err != nil {
		g.chatError(w, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, eventToResponse(event))
}

// handleListWindows handles GET /api/chats/{id}/windows.
func (g *Gateway) handleListWindows(w http.ResponseWriter, r *http.Request, chatID string) {
	windows, err := g.service.GetWindows(r.Context(), chatID)
	if err != nil {
		g.chatError(w, err)
		return
	}

	response := make([]WindowResponse, len(windows))
	for i, window := range windows {
		response[i] = WindowResponse{
			ID:        window.ID,
			ChatID:    window.ChatID,
			Kind:      window.Kind,
			Payload:   window.Payload,
			CreatedAt: window.CreatedAt.Format(time.RFC3339Nano),
		}
	}
	g.sendJSON(w, http.StatusOK, response)
}

// handleAppendWindow handles POST /api/chats/{id}/windows, the worker's path
// for publishing auxiliary state.
func (g *Gateway) handleAppendWindow(w http.ResponseWriter, r *http.Request, chatID string) {
	var req AppendWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	window, err := g.store.AppendWindow(r.Context(), chatID, req.Kind, req.Payload)
	if err != nil {
		g.chatError(w, err)
		return
	}
	g.sendJSON(w, http.StatusCreated, WindowResponse{
		ID:        window.ID,
		ChatID:    window.ChatID,
		Kind:      window.Kind,
		Payload:   window.Payload,
		CreatedAt: window.CreatedAt.Format(time.RFC3339Nano),
	})
}

// handleListModules handles GET /api/modules.
func (g *Gateway) handleListModules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	modules, err := g.store.ListModules(r.Context())
	if err != nil {
		g.internalError(w, "listing modules", err)
		return
	}

	response := make([]ModuleResponse, len(modules))
	for i, module := range modules {
		response[i] = ModuleResponse{
			Name:   module.Name,
			Title:  module.Title,
			Tags:   module.Tags,
			Prompt: module.Prompt,
		}
	}
	g.sendJSON(w, http.StatusOK, response)
}

func chatToResponse(chat *store.Chat, moduleName string) ChatResponse {
	settings := chat.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	return ChatResponse{
		ID:        chat.ID,
		Title:     chat.Title,
		Module:    moduleName,
		Settings:  settings,
		CreatedAt: chat.CreatedAt.Format(time.RFC3339Nano),
	}
}

func eventToResponse(event *store.Event) EventResponse {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return EventResponse{
		ID:        event.ID,
		ChatID:    event.ChatID,
		Seq:       event.Seq,
		EventType: event.Type,
		Content:   event.Content,
		Metadata:  metadata,
		CreatedAt: event.CreatedAt.Format(time.RFC3339Nano),
	}
}

// chatError maps store lookup failures to HTTP status codes.
func (g *Gateway) chatError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "chat not found")
		return
	}
	g.internalError(w, "storage", err)
}

func (g *Gateway) internalError(w http.ResponseWriter, op string, err error) {
	g.logger.Error("request failed", "op", op, "error", err)
	g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, msg string) {
	g.sendJSON(w, status, map[string]string{"error": msg})
}
