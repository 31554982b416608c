package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Gabrielc476/dashboard-crypto/internal/event"
	"github.com/Gabrielc476/dashboard-crypto/internal/storage"
)

// Value is one JSON document persisted under a storage key and mirrored in memory.
// Writes go to the store first; memory changes only after the write succeeded.
// Changes made elsewhere (another Value on the same key, a peer instance) are
// picked up through the store's watch and replace the in-memory copy.
type Value[T any] struct {
	store storage.Store
	key   string
	def   func() T
	clean func(T) T // Applied to every loaded value; nil keeps it as is

	writeMu sync.Mutex // Serializes Update and Reset
	mu      sync.RWMutex
	cur     T
	pending json.RawMessage // Bytes of the write in progress
	dirty   bool            // Another writer changed the key during that write

	listenMu  sync.Mutex
	listeners []func(T)
	unwatch   func()
}

// NewValue loads key from store, falling back to def() when it is missing or unreadable.
func NewValue[T any](ctx context.Context, store storage.Store, key string, def func() T, clean func(T) T) (*Value[T], error) {
	v := &Value[T]{store: store, key: key, def: def, clean: clean}

	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	v.cur = v.decode(raw, ok)
	v.unwatch = store.Watch(key, v.resync)
	return v, nil
}

// Get returns the current value. Callers must not mutate slices or maps in it.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Update computes the next value from the current one and persists it.
// fn returns false to leave everything untouched. On a store error the
// in-memory value is unchanged and the error is returned.
func (v *Value[T]) Update(ctx context.Context, fn func(cur T) (T, bool)) (T, bool, error) {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	cur := v.Get()
	next, changed := fn(cur)
	if !changed {
		return cur, false, nil
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return cur, false, fmt.Errorf("encode %s: %w", v.key, err)
	}
	next, err = v.write(ctx, raw, func() error { return v.store.Set(ctx, v.key, raw) }, next)
	if err != nil {
		slog.Error("Failed to persist preference", slog.String("key", v.key), slog.Any("error", err))
		return cur, false, err
	}
	return next, true, nil
}

// Reset removes the key and restores the default.
func (v *Value[T]) Reset(ctx context.Context) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	// An empty pending write matches the nil value of the removal event.
	_, err := v.write(ctx, json.RawMessage{}, func() error { return v.store.Remove(ctx, v.key) }, v.def())
	return err
}

// Stored decodes the document currently in the store without cleaning it.
// ok is false when the key is missing or unreadable.
func (v *Value[T]) Stored(ctx context.Context) (stored T, ok bool, err error) {
	raw, found, err := v.store.Get(ctx, v.key)
	if err != nil || !found {
		return stored, false, err
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return stored, false, nil
	}
	return stored, true, nil
}

// write runs op with pending set, then installs next. When another writer
// touched the key meanwhile, the stored document wins over next so memory
// and store end up equal.
func (v *Value[T]) write(ctx context.Context, pending json.RawMessage, op func() error, next T) (T, error) {
	v.mu.Lock()
	v.pending = pending
	v.dirty = false
	v.mu.Unlock()

	err := op()

	v.mu.Lock()
	if err == nil && v.dirty {
		raw, ok, gerr := v.store.Get(ctx, v.key)
		if gerr == nil {
			next = v.decode(raw, ok)
		} else {
			slog.Warn("Failed to reload preference", slog.String("key", v.key), slog.Any("error", gerr))
		}
	}
	v.pending = nil
	v.dirty = false
	if err != nil {
		v.mu.Unlock()
		return next, err
	}
	v.cur = next
	v.mu.Unlock()

	v.notify(next)
	return next, nil
}

// OnChange registers fn to run after every change, local or resynced.
func (v *Value[T]) OnChange(fn func(T)) {
	v.listenMu.Lock()
	v.listeners = append(v.listeners, fn)
	v.listenMu.Unlock()
}

// Close stops following store changes.
func (v *Value[T]) Close() {
	if v.unwatch != nil {
		v.unwatch()
	}
}

func (v *Value[T]) resync(ev event.StorageChangeEvent) {
	v.mu.Lock()
	if v.pending != nil {
		if ev.Remote || !bytes.Equal(v.pending, ev.Value) {
			v.dirty = true
		}
		// The write in progress installs the final value.
		v.mu.Unlock()
		return
	}
	next := v.decode(ev.Value, !ev.Removed())
	v.cur = next
	v.mu.Unlock()

	if ev.Remote {
		slog.Debug("Preference resynced", slog.String("key", v.key), slog.String("origin", ev.Origin))
	}
	v.notify(next)
}

func (v *Value[T]) notify(next T) {
	v.listenMu.Lock()
	listeners := slices.Clone(v.listeners)
	v.listenMu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
}

func (v *Value[T]) decode(raw json.RawMessage, ok bool) T {
	if !ok {
		return v.def()
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.Warn("Ignoring unreadable preference", slog.String("key", v.key), slog.Any("error", err))
		return v.def()
	}
	if v.clean != nil {
		out = v.clean(out)
	}
	return out
}
