// Package store provides persistent storage for morph-gateway using SQLite.
//
// # Data Models
//
//   - Chat: A conversation and its configuration (title, module, settings)
//   - Module: A behavior profile a chat can be bound to
//   - Event: One immutable entry in a chat's ordered event log
//   - Window: Worker-produced auxiliary state attached to a chat
//
// The event log is the sole source of truth for conversation history. Events
// carry a per-chat sequence number assigned at append time; ListEvents returns
// them in sequence order and that order is what gets handed to the agent
// worker on every dispatch.
//
// # Ordering
//
// AppendEvent assigns seq = max(seq)+1 for the chat inside the insert
// transaction. A unique (chat_id, seq) index makes concurrent appends to the
// same chat collide; the loser retries, so ties resolve by arrival order at
// the store rather than by wall-clock precision. Appends to different chats
// do not contend beyond SQLite's own write serialization.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateChat: Chat already exists
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests; it implements the full Store interface
// in memory. Use NewSQLiteStore with a t.TempDir() path for integration tests
// with real SQLite.
package store
