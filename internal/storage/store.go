package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Gabrielc476/dashboard-crypto/internal/event"
	"github.com/google/uuid"

	_ "github.com/glebarez/go-sqlite"
)

// Namespaced keys of the persisted preferences.
const (
	KeyFavorites     = "crypto-favorites"
	KeyTheme         = "crypto-theme"
	KeySettings      = "crypto-settings"
	KeySearchHistory = "crypto-search-history"
)

// ErrInvalidJSON is returned by Set when the value is not a JSON document.
var ErrInvalidJSON = errors.New("value is not valid JSON")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is a durable string -> JSON key/value store with change notifications.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)

	// ApplyRemote stores a change written by another instance.
	// Older changes than the stored value are ignored.
	ApplyRemote(ctx context.Context, ev event.StorageChangeEvent) error

	// Watch calls fn after every change of key, local or remote.
	Watch(key string, fn func(event.StorageChangeEvent)) (cancel func())
	// WatchAll calls fn after every change.
	WatchAll(fn func(event.StorageChangeEvent)) (cancel func())

	InstanceID() string
	Close() error
}

// notifier is the change fan-out shared by the Store implementations.
type notifier struct {
	bus        *event.Bus
	instanceID string
}

func newNotifier(bus *event.Bus) notifier {
	if bus == nil {
		bus = event.NewBus(nil)
	}
	return notifier{bus: bus, instanceID: uuid.NewString()}
}

func (n notifier) InstanceID() string { return n.instanceID }

func (n notifier) local(key string, value json.RawMessage) event.StorageChangeEvent {
	return event.StorageChangeEvent{
		BaseEvent: n.bus.Stamp(),
		Key:       key,
		Value:     value,
		Origin:    n.instanceID,
	}
}

func (n notifier) publish(ev event.StorageChangeEvent) {
	n.bus.Publish(ev)
}

func (n notifier) Watch(key string, fn func(event.StorageChangeEvent)) func() {
	return n.bus.Subscribe(func(ev event.Event) {
		if change, ok := ev.(event.StorageChangeEvent); ok && change.Key == key {
			fn(change)
		}
	}, event.EvStorageChange)
}

func (n notifier) WatchAll(fn func(event.StorageChangeEvent)) func() {
	return n.bus.Subscribe(func(ev event.Event) {
		if change, ok := ev.(event.StorageChangeEvent); ok {
			fn(change)
		}
	}, event.EvStorageChange)
}

// SQLiteStore persists values in the metadata table of a SQLite database.
type SQLiteStore struct {
	notifier
	db *sql.DB
	mu sync.Mutex // Serializes read-compare-write in ApplyRemote
}

// NewSQLiteStore opens (or creates) the database at dbPath with WAL mode enabled.
// Changes are published on bus; a nil bus gets a private one.
func NewSQLiteStore(dbPath string, bus *event.Bus) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer keeps WAL pragmas on the same connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &SQLiteStore{notifier: newNotifier(bus), db: db}, nil
}

// Get returns the stored value of key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

// Set upserts key and notifies watchers.
func (s *SQLiteStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("set %s: %w", key, ErrInvalidJSON)
	}
	ev := s.local(key, value)
	if err := s.upsert(ctx, key, value, ev.Ts); err != nil {
		return err
	}
	s.publish(ev)
	return nil
}

func (s *SQLiteStore) upsert(ctx context.Context, key string, value json.RawMessage, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, string(value), ts,
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Remove deletes key and notifies watchers. Removing a missing key is not an error.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM metadata WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	s.publish(s.local(key, nil))
	return nil
}

// Clear deletes every key, notifying watchers once per key.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	for _, k := range keys {
		s.publish(s.local(k, nil))
	}
	return nil
}

// Keys lists stored keys in lexical order.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM metadata ORDER BY key ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return keys, nil
}

// ApplyRemote stores ev unless the local copy is newer, then notifies watchers.
func (s *SQLiteStore) ApplyRemote(ctx context.Context, ev event.StorageChangeEvent) error {
	if ev.Origin == s.instanceID {
		return nil
	}
	if ev.Value != nil && !json.Valid(ev.Value) {
		return fmt.Errorf("remote %s: %w", ev.Key, ErrInvalidJSON)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updatedAt int64
	err := s.db.QueryRowContext(ctx, "SELECT updated_at FROM metadata WHERE key = ?", ev.Key).Scan(&updatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", ev.Key, err)
	case updatedAt > ev.Ts:
		slog.Debug("Ignoring stale remote change",
			slog.String("key", ev.Key),
			slog.String("origin", ev.Origin))
		return nil
	}

	if ev.Value == nil {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM metadata WHERE key = ?", ev.Key); err != nil {
			return fmt.Errorf("failed to remove %s: %w", ev.Key, err)
		}
	} else if err := s.upsert(ctx, ev.Key, ev.Value, ev.Ts); err != nil {
		return err
	}

	ev.Remote = true
	s.publish(ev)
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
