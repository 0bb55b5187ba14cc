// ABOUTME: Store interface and data types for morph-gateway persistence
// ABOUTME: Defines Chat, Module, Event, Window structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateChat is returned when trying to create a chat that already exists
var ErrDuplicateChat = errors.New("chat already exists")

// EventType constants for the event kinds the gateway itself knows about.
// Workers may append additional kinds; the store treats the type as opaque.
const (
	EventTypeUserInput     = "user_input"     // User-submitted message
	EventTypeModelResponse = "model_response" // Worker-produced reply text
	EventTypeToolCall      = "tool_call"      // Worker tool invocation
	EventTypeToolResult    = "tool_result"    // Worker tool result
)

// Chat represents a conversation and its configuration
type Chat struct {
	ID        string
	Title     string // empty means untitled; display fallback is the caller's concern
	ModuleID  string // optional reference to a behavior module
	Settings  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Module represents a behavior profile a chat can be bound to
type Module struct {
	ID        string
	Name      string // unique short name, e.g. "physics"
	Title     string
	Tags      []string
	Prompt    string
	CreatedAt time.Time
}

// Event is one immutable entry in a chat's ordered event log.
// Seq is the per-chat ordering key, assigned by the store at append time and
// strictly increasing within a chat. Events are never updated or deleted.
type Event struct {
	ID        string
	ChatID    string
	Seq       int64
	Type      string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Window is an auxiliary worker-produced record attached to a chat.
// Windows carry no ordering contract relative to events or each other.
type Window struct {
	ID        string
	ChatID    string
	Kind      string
	Payload   map[string]any
	CreatedAt time.Time
}

// Store defines the interface for chat, module, event, and window persistence
type Store interface {
	// Chats
	CreateChat(ctx context.Context, chat *Chat) error
	GetChat(ctx context.Context, id string) (*Chat, error)
	ListChats(ctx context.Context, limit int) ([]*Chat, error)

	// Modules
	UpsertModule(ctx context.Context, module *Module) error
	GetModule(ctx context.Context, id string) (*Module, error)
	GetModuleByName(ctx context.Context, name string) (*Module, error)
	ListModules(ctx context.Context) ([]*Module, error)

	// Events (the ordered conversation log; see events.go)
	AppendEvent(ctx context.Context, chatID, eventType, content string, metadata map[string]any) (*Event, error)
	ListEvents(ctx context.Context, chatID string) ([]*Event, error)

	// Windows (worker-written auxiliary state; see windows.go)
	AppendWindow(ctx context.Context, chatID, kind string, payload map[string]any) (*Window, error)
	ListWindows(ctx context.Context, chatID string) ([]*Window, error)

	// Close releases any resources held by the store
	Close() error
}
