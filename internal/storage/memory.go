package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/Gabrielc476/dashboard-crypto/internal/event"
)

type memoryEntry struct {
	value     json.RawMessage
	updatedAt int64
}

// MemoryStore is a Store kept in process memory. Used by tests and --ephemeral runs.
type MemoryStore struct {
	notifier
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool

	// FailWrites makes every write fail, for exercising persistence errors.
	FailWrites error
}

// NewMemoryStore creates an empty store publishing on bus (nil: a private bus).
func NewMemoryStore(bus *event.Bus) *MemoryStore {
	return &MemoryStore{notifier: newNotifier(bus), entries: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(e.value), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("set %s: %w", key, ErrInvalidJSON)
	}
	ev := m.local(key, slices.Clone(value))

	m.mu.Lock()
	if err := m.writable(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.entries[key] = memoryEntry{value: ev.Value, updatedAt: ev.Ts}
	m.mu.Unlock()

	m.publish(ev)
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	if err := m.writable(); err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.entries, key)
	m.mu.Unlock()

	m.publish(m.local(key, nil))
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	if err := m.writable(); err != nil {
		m.mu.Unlock()
		return err
	}
	keys := m.sortedKeys()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()

	for _, k := range keys {
		m.publish(m.local(k, nil))
	}
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.sortedKeys(), nil
}

func (m *MemoryStore) ApplyRemote(_ context.Context, ev event.StorageChangeEvent) error {
	if ev.Origin == m.instanceID {
		return nil
	}
	if ev.Value != nil && !json.Valid(ev.Value) {
		return fmt.Errorf("remote %s: %w", ev.Key, ErrInvalidJSON)
	}

	m.mu.Lock()
	if err := m.writable(); err != nil {
		m.mu.Unlock()
		return err
	}
	if cur, ok := m.entries[ev.Key]; ok && cur.updatedAt > ev.Ts {
		m.mu.Unlock()
		return nil
	}
	if ev.Value == nil {
		delete(m.entries, ev.Key)
	} else {
		m.entries[ev.Key] = memoryEntry{value: slices.Clone(ev.Value), updatedAt: ev.Ts}
	}
	m.mu.Unlock()

	ev.Remote = true
	m.publish(ev)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// writable must be called with the mutex held.
func (m *MemoryStore) writable() error {
	if m.closed {
		return ErrClosed
	}
	return m.FailWrites
}

func (m *MemoryStore) sortedKeys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
