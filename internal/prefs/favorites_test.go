package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/event"
	"github.com/Gabrielc476/dashboard-crypto/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFavorites(t *testing.T, store storage.Store, maxFavorites int) *Favorites {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	f, err := NewFavorites(context.Background(), store, maxFavorites, clock)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestFavorites_AddRemoveToggle(t *testing.T) {
	ctx := context.Background()
	f := newFavorites(t, storage.NewMemoryStore(nil), 0)
	assert.Equal(t, DefaultMaxFavorites, f.Max())

	ok, err := f.Add(ctx, "bitcoin")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = f.Add(ctx, "bitcoin")
	assert.True(t, ok, "duplicate add is a successful no-op")
	ok, _ = f.Add(ctx, "  ")
	assert.False(t, ok)
	assert.Equal(t, []string{"bitcoin"}, f.List())

	ok, _ = f.Toggle(ctx, "ethereum")
	assert.True(t, ok)
	assert.True(t, f.IsFavorite("ethereum"))
	ok, _ = f.Toggle(ctx, "ethereum")
	assert.True(t, ok)
	assert.False(t, f.IsFavorite("ethereum"))

	ok, _ = f.Remove(ctx, "dogecoin")
	assert.True(t, ok, "removing an absent id succeeds")
	assert.Equal(t, []string{"bitcoin"}, f.List())
}

func TestFavorites_CapRejectsAdd(t *testing.T) {
	ctx := context.Background()
	f := newFavorites(t, storage.NewMemoryStore(nil), 3)

	for i := 0; i < 3; i++ {
		ok, err := f.Add(ctx, fmt.Sprintf("coin-%d", i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := f.Add(ctx, "coin-3")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, f.List(), 3)
	assert.False(t, f.IsFavorite("coin-3"))

	meta := f.Metadata()
	assert.True(t, meta.IsFull)
	assert.False(t, meta.CanAddMore)
	assert.Equal(t, 0, meta.RemainingSlots)
}

func TestFavorites_ManyAndReorder(t *testing.T) {
	ctx := context.Background()
	f := newFavorites(t, storage.NewMemoryStore(nil), 4)

	_, err := f.AddMany(ctx, []string{"a", "b", "", "a", "c", "d", "e"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, f.List())

	moved, err := f.Reorder(ctx, 0, 2)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"b", "c", "a", "d"}, f.List())

	moved, _ = f.Reorder(ctx, 1, 1)
	assert.False(t, moved)
	moved, _ = f.Reorder(ctx, 0, 9)
	assert.False(t, moved)

	n, err := f.RemoveMany(ctx, []string{"a", "d", "zzz"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"b", "c"}, f.List())

	require.NoError(t, f.Clear(ctx))
	assert.True(t, f.Metadata().IsEmpty)
}

func TestFavorites_ExportImport(t *testing.T) {
	ctx := context.Background()
	f := newFavorites(t, storage.NewMemoryStore(nil), 5)
	_, _ = f.AddMany(ctx, []string{"bitcoin", "ethereum"})

	data, err := f.Export()
	require.NoError(t, err)
	var doc FavoritesExport
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []string{"bitcoin", "ethereum"}, doc.Favorites)
	assert.Equal(t, "1.0", doc.Version)
	assert.Equal(t, 2024, doc.ExportDate.Year())

	t.Run("merge", func(t *testing.T) {
		n, err := f.Import(ctx, []byte(`{"favorites":["solana","bitcoin",3,""]}`), true)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"bitcoin", "ethereum", "solana"}, f.List())
	})

	t.Run("replace", func(t *testing.T) {
		n, err := f.Import(ctx, []byte(`{"favorites":["a","b","a","c","d","e","f"]}`), false)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, f.List())
	})

	t.Run("invalid", func(t *testing.T) {
		before := f.List()
		for _, in := range []string{`{}`, `{"favorites":"x"}`, `not json`} {
			_, err := f.Import(ctx, []byte(in), false)
			assert.True(t, errors.Is(err, ErrInvalidExport), in)
		}
		assert.Equal(t, before, f.List())
	})
}

func TestFavorites_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	f := newFavorites(t, store, 0)
	_, _ = f.Add(ctx, "bitcoin")

	store.FailWrites = errors.New("disk full")
	ok, err := f.Add(ctx, "ethereum")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"bitcoin"}, f.List())

	store.FailWrites = nil
	ok, err = f.Add(ctx, "ethereum")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFavorites_FollowsOtherWriters(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	a := newFavorites(t, store, 0)
	b := newFavorites(t, store, 0)

	var seen [][]string
	a.OnChange(func(ids []string) { seen = append(seen, ids) })
	b.OnChange(func(ids []string) { seen = append(seen, ids) })

	_, err := a.Add(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, []string{"bitcoin"}, b.List())
	assert.Len(t, seen, 2, "each instance notifies once")

	raw, ok, err := store.Get(ctx, storage.KeyFavorites)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["bitcoin"]`, string(raw))
}

func TestFavorites_LoadsPersisted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	require.NoError(t, store.Set(ctx, storage.KeyFavorites, json.RawMessage(`["x","y"]`)))

	f := newFavorites(t, store, 0)
	assert.Equal(t, []string{"x", "y"}, f.List())

	require.NoError(t, store.Set(ctx, storage.KeyFavorites, json.RawMessage(`{"not":"a list"}`)))
	assert.Empty(t, f.List(), "unreadable data falls back to the default")
}

func TestFavorites_Validate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	require.NoError(t, store.Set(ctx, storage.KeyFavorites, json.RawMessage(`["a","","a","b"]`)))
	f := newFavorites(t, store, 0)
	assert.Equal(t, []string{"a", "b"}, f.List(), "memory is clean before Validate")

	n, err := f.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, f.List())

	raw, ok, err := store.Get(ctx, storage.KeyFavorites)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["a","b"]`, string(raw))

	n, err = f.Validate(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFavorites_LoadAndResyncKeepUniqueAndCapped(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	require.NoError(t, store.Set(ctx, storage.KeyFavorites, json.RawMessage(`["bitcoin","bitcoin","ethereum","solana"]`)))

	f := newFavorites(t, store, 2)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, f.List())
	meta := f.Metadata()
	assert.Equal(t, 2, meta.Count)
	assert.True(t, meta.IsFull)
	assert.Zero(t, meta.RemainingSlots)

	ok, err := f.Toggle(ctx, "bitcoin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, f.IsFavorite("bitcoin"), "a single toggle removes the coin")
	assert.Equal(t, []string{"ethereum"}, f.List())

	require.NoError(t, store.ApplyRemote(ctx, event.StorageChangeEvent{
		BaseEvent: event.BaseEvent{Ts: time.Now().UnixMilli()},
		Key:       storage.KeyFavorites,
		Value:     json.RawMessage(`["a","b","a","c","d","e"]`),
		Origin:    "peer",
	}))
	assert.Equal(t, []string{"a", "b"}, f.List())
	assert.Equal(t, 2, f.Metadata().Count)
}
