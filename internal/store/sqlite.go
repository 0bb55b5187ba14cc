// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides chat/module persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Wait for a held write lock instead of failing with SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// SQLite allows a single writer. Funnel all statements through one
	// connection so in-process writers queue instead of racing the lock.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS modules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			prompt TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			module_id TEXT,
			settings_json TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (module_id) REFERENCES modules(id)
		);

		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			FOREIGN KEY (chat_id) REFERENCES chats(id)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_events_chat_seq
			ON events(chat_id, seq);

		CREATE TABLE IF NOT EXISTS windows (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			payload_json TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			FOREIGN KEY (chat_id) REFERENCES chats(id)
		);

		CREATE INDEX IF NOT EXISTS idx_windows_chat_id
			ON windows(chat_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close releases the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateChat inserts a new chat row
func (s *SQLiteStore) CreateChat(ctx context.Context, chat *Chat) error {
	settings, err := encodeMap(chat.Settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	var moduleID any
	if chat.ModuleID != "" {
		moduleID = chat.ModuleID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, module_id, settings_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, chat.ID, chat.Title, moduleID, settings,
		chat.CreatedAt.UTC().Format(time.RFC3339Nano),
		chat.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateChat
		}
		return fmt.Errorf("inserting chat: %w", err)
	}

	s.logger.Debug("chat created", "chat_id", chat.ID, "module_id", chat.ModuleID)
	return nil
}

// GetChat retrieves a chat by ID
func (s *SQLiteStore) GetChat(ctx context.Context, id string) (*Chat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, module_id, settings_json, created_at, updated_at
		FROM chats WHERE id = ?
	`, id)
	return scanChat(row)
}

// ListChats retrieves the most recently updated chats
func (s *SQLiteStore) ListChats(ctx context.Context, limit int) ([]*Chat, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, module_id, settings_json, created_at, updated_at
		FROM chats ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying chats: %w", err)
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat rows: %w", err)
	}
	return chats, nil
}

// UpsertModule inserts a module or replaces the existing row with the same name
func (s *SQLiteStore) UpsertModule(ctx context.Context, module *Module) error {
	tags, err := json.Marshal(module.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO modules (id, name, title, tags, prompt, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET title=excluded.title, tags=excluded.tags, prompt=excluded.prompt
	`, module.ID, module.Name, module.Title, string(tags), module.Prompt,
		module.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upserting module: %w", err)
	}

	s.logger.Debug("module upserted", "name", module.Name)
	return nil
}

// GetModule retrieves a module by ID
func (s *SQLiteStore) GetModule(ctx context.Context, id string) (*Module, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, title, tags, prompt, created_at
		FROM modules WHERE id = ?
	`, id)
	return scanModule(row)
}

// GetModuleByName retrieves a module by its unique name
func (s *SQLiteStore) GetModuleByName(ctx context.Context, name string) (*Module, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, title, tags, prompt, created_at
		FROM modules WHERE name = ?
	`, name)
	return scanModule(row)
}

// ListModules retrieves all modules ordered by name
func (s *SQLiteStore) ListModules(ctx context.Context) ([]*Module, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, title, tags, prompt, created_at
		FROM modules ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying modules: %w", err)
	}
	defer rows.Close()

	var modules []*Module
	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating module rows: %w", err)
	}
	return modules, nil
}

// chatExists reports whether a chat row exists, inside an optional transaction
func (s *SQLiteStore) chatExists(ctx context.Context, q queryer, chatID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM chats WHERE id = ?`, chatID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking chat existence: %w", err)
	}
	return nil
}

// queryer abstracts *sql.DB and *sql.Tx for existence checks
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner abstracts *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (*Chat, error) {
	chat := &Chat{}
	var moduleID sql.NullString
	var settingsJSON, createdStr, updatedStr string

	err := row.Scan(&chat.ID, &chat.Title, &moduleID, &settingsJSON, &createdStr, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chat row: %w", err)
	}

	if moduleID.Valid {
		chat.ModuleID = moduleID.String
	}
	if chat.Settings, err = decodeMap(settingsJSON); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if chat.CreatedAt, err = parseTimestamp(createdStr); err != nil {
		return nil, err
	}
	if chat.UpdatedAt, err = parseTimestamp(updatedStr); err != nil {
		return nil, err
	}
	return chat, nil
}

func scanModule(row rowScanner) (*Module, error) {
	module := &Module{}
	var tagsJSON, createdStr string

	err := row.Scan(&module.ID, &module.Name, &module.Title, &tagsJSON, &module.Prompt, &createdStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning module row: %w", err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &module.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if module.CreatedAt, err = parseTimestamp(createdStr); err != nil {
		return nil, err
	}
	return module, nil
}

// encodeMap serializes a string-keyed map to JSON, treating nil as empty
func encodeMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeMap deserializes a JSON object, always returning a non-nil map
func decodeMap(data string) (map[string]any, error) {
	m := map[string]any{}
	if data == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return t, nil
}
