// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	chats         map[string]*Chat     // keyed by chat ID
	modules       map[string]*Module   // keyed by module ID
	moduleByName  map[string]string    // module name -> module ID
	events        map[string][]*Event  // keyed by chat ID, append order
	windows       map[string][]*Window // keyed by chat ID

	// CreateChatErr, when set, is returned by CreateChat to simulate a
	// conflicting or failing write.
	CreateChatErr error

	// AppendEventErr, when set, is returned by AppendEvent to simulate an
	// unavailable store.
	AppendEventErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		chats:        make(map[string]*Chat),
		modules:      make(map[string]*Module),
		moduleByName: make(map[string]string),
		events:       make(map[string][]*Event),
		windows:      make(map[string][]*Window),
	}
}

// CreateChat stores a new chat.
func (m *MockStore) CreateChat(ctx context.Context, chat *Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateChatErr != nil {
		return m.CreateChatErr
	}
	if _, exists := m.chats[chat.ID]; exists {
		return ErrDuplicateChat
	}

	c := *chat
	if c.Settings == nil {
		c.Settings = map[string]any{}
	}
	m.chats[c.ID] = &c
	return nil
}

// GetChat retrieves a chat by ID.
func (m *MockStore) GetChat(ctx context.Context, id string) (*Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *chat
	return &c, nil
}

// ListChats retrieves chats sorted by update time, newest first.
func (m *MockStore) ListChats(ctx context.Context, limit int) ([]*Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	chats := make([]*Chat, 0, len(m.chats))
	for _, chat := range m.chats {
		c := *chat
		chats = append(chats, &c)
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	if len(chats) > limit {
		chats = chats[:limit]
	}
	return chats, nil
}

// UpsertModule stores a module, replacing any existing module with the same name.
func (m *MockStore) UpsertModule(ctx context.Context, module *Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.moduleByName[module.Name]; ok {
		existing := m.modules[existingID]
		existing.Title = module.Title
		existing.Tags = append([]string(nil), module.Tags...)
		existing.Prompt = module.Prompt
		return nil
	}

	mod := *module
	m.modules[mod.ID] = &mod
	m.moduleByName[mod.Name] = mod.ID
	return nil
}

// GetModule retrieves a module by ID.
func (m *MockStore) GetModule(ctx context.Context, id string) (*Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	module, ok := m.modules[id]
	if !ok {
		return nil, ErrNotFound
	}
	mod := *module
	return &mod, nil
}

// GetModuleByName retrieves a module by its unique name.
func (m *MockStore) GetModuleByName(ctx context.Context, name string) (*Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.moduleByName[name]
	if !ok {
		return nil, ErrNotFound
	}
	mod := *m.modules[id]
	return &mod, nil
}

// ListModules retrieves all modules sorted by name.
func (m *MockStore) ListModules(ctx context.Context) ([]*Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	modules := make([]*Module, 0, len(m.modules))
	for _, module := range m.modules {
		mod := *module
		modules = append(modules, &mod)
	}
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Name < modules[j].Name
	})
	return modules, nil
}

// AppendEvent appends an event to a chat's log in arrival order.
func (m *MockStore) AppendEvent(ctx context.Context, chatID, eventType, content string, metadata map[string]any) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendEventErr != nil {
		return nil, m.AppendEventErr
	}
	if _, ok := m.chats[chatID]; !ok {
		return nil, ErrNotFound
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	event := &Event{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Seq:       int64(len(m.events[chatID])) + 1,
		Type:      eventType,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	m.events[chatID] = append(m.events[chatID], event)

	e := *event
	return &e, nil
}

// ListEvents returns a chat's events in sequence order.
func (m *MockStore) ListEvents(ctx context.Context, chatID string) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.chats[chatID]; !ok {
		return nil, ErrNotFound
	}

	events := make([]*Event, 0, len(m.events[chatID]))
	for _, event := range m.events[chatID] {
		e := *event
		events = append(events, &e)
	}
	return events, nil
}

// AppendWindow records a window for a chat.
func (m *MockStore) AppendWindow(ctx context.Context, chatID, kind string, payload map[string]any) (*Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[chatID]; !ok {
		return nil, ErrNotFound
	}

	if payload == nil {
		payload = map[string]any{}
	}
	window := &Window{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	m.windows[chatID] = append(m.windows[chatID], window)

	w := *window
	return &w, nil
}

// ListWindows returns a chat's windows.
func (m *MockStore) ListWindows(ctx context.Context, chatID string) ([]*Window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.chats[chatID]; !ok {
		return nil, ErrNotFound
	}

	windows := make([]*Window, 0, len(m.windows[chatID]))
	for _, window := range m.windows[chatID] {
		w := *window
		windows = append(windows, &w)
	}
	return windows, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
