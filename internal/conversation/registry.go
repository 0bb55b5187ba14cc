// ABOUTME: Registry resolves a chat ID into the configuration dispatch needs
// ABOUTME: Pure lookup with defaulting; never mutates chat configuration

package conversation

import (
	"context"
	"fmt"

	"github.com/morphlabs/morph-gateway/internal/store"
)

// ChatConfig is the conversation-level metadata needed to construct a
// dispatch request.
type ChatConfig struct {
	Title      string
	ModuleName string         // empty when the chat has no module
	Settings   map[string]any // never nil
}

// ChatStore defines what the registry needs from storage
type ChatStore interface {
	GetChat(ctx context.Context, id string) (*store.Chat, error)
	GetModule(ctx context.Context, id string) (*store.Module, error)
}

// Registry resolves chat configuration. It is read-only: chat creation and
// configuration changes happen elsewhere.
type Registry struct {
	store ChatStore
}

// NewRegistry creates a registry backed by the given store.
func NewRegistry(store ChatStore) *Registry {
	return &Registry{store: store}
}

// Resolve looks up a chat and returns its configuration with defaults
// applied: missing settings become an empty mapping, a missing module becomes
// an empty module name. Returns store.ErrNotFound when the chat is unknown.
func (r *Registry) Resolve(ctx context.Context, chatID string) (*ChatConfig, error) {
	chat, err := r.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	config := &ChatConfig{
		Title:    chat.Title,
		Settings: chat.Settings,
	}
	if config.Settings == nil {
		config.Settings = map[string]any{}
	}

	if chat.ModuleID != "" {
		module, err := r.store.GetModule(ctx, chat.ModuleID)
		if err != nil {
			return nil, fmt.Errorf("resolving module %s: %w", chat.ModuleID, err)
		}
		config.ModuleName = module.Name
	}

	return config, nil
}
