package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/Gabrielc476/dashboard-crypto/internal/storage"
)

const (
	DefaultMaxFavorites = 50
	exportVersion       = "1.0"
)

// ErrInvalidExport is returned by Import for documents without a favorites array.
var ErrInvalidExport = errors.New("invalid favorites data format")

// FavoritesExport is the backup document written by Export.
type FavoritesExport struct {
	Favorites  []string  `json:"favorites"`
	ExportDate time.Time `json:"exportDate"`
	Version    string    `json:"version"`
}

// FavoritesMetadata summarizes the list for display.
type FavoritesMetadata struct {
	Count          int  `json:"count"`
	MaxCount       int  `json:"maxCount"`
	CanAddMore     bool `json:"canAddMore"`
	RemainingSlots int  `json:"remainingSlots"`
	IsEmpty        bool `json:"isEmpty"`
	IsFull         bool `json:"isFull"`
}

// Favorites is the user's ordered list of unique coin ids, capped at Max.
type Favorites struct {
	v     *Value[[]string]
	max   int
	clock infra.Clock
}

// NewFavorites loads the list stored under storage.KeyFavorites.
func NewFavorites(ctx context.Context, store storage.Store, maxFavorites int, clock infra.Clock) (*Favorites, error) {
	if maxFavorites <= 0 {
		maxFavorites = DefaultMaxFavorites
	}
	if clock == nil {
		clock = infra.NewRealClock()
	}
	v, err := NewValue(ctx, store, storage.KeyFavorites,
		func() []string { return []string{} },
		func(ids []string) []string { return normalizeFavorites(ids, maxFavorites) })
	if err != nil {
		return nil, err
	}
	return &Favorites{v: v, max: maxFavorites, clock: clock}, nil
}

// normalizeFavorites drops blank and repeated ids and keeps the first maxFavorites.
func normalizeFavorites(ids []string, maxFavorites int) []string {
	out := make([]string, 0, min(len(ids), maxFavorites))
	for _, id := range ids {
		if len(out) == maxFavorites {
			break
		}
		if IsValidID(id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// IsValidID reports whether id can be stored.
func IsValidID(id string) bool {
	return strings.TrimSpace(id) != ""
}

// Max returns the cap.
func (f *Favorites) Max() int { return f.max }

// List returns a copy of the ids in their stored order.
func (f *Favorites) List() []string {
	return slices.Clone(f.v.Get())
}

// IsFavorite reports whether id is in the list.
func (f *Favorites) IsFavorite(id string) bool {
	return IsValidID(id) && slices.Contains(f.v.Get(), id)
}

// Add appends id. An id already present is a successful no-op.
// Returns false for an invalid id or when the list is full.
func (f *Favorites) Add(ctx context.Context, id string) (bool, error) {
	if !IsValidID(id) {
		slog.Warn("Invalid coin ID provided to Add")
		return false, nil
	}

	accepted := true
	_, _, err := f.v.Update(ctx, func(cur []string) ([]string, bool) {
		if slices.Contains(cur, id) {
			return cur, false
		}
		if len(cur) >= f.max {
			slog.Warn("Favorites limit reached", slog.Int("max", f.max))
			accepted = false
			return cur, false
		}
		return append(slices.Clone(cur), id), true
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// Remove drops id. Removing an id that is not present succeeds.
func (f *Favorites) Remove(ctx context.Context, id string) (bool, error) {
	if !IsValidID(id) {
		return false, nil
	}
	_, _, err := f.v.Update(ctx, func(cur []string) ([]string, bool) {
		i := slices.Index(cur, id)
		if i < 0 {
			return cur, false
		}
		return slices.Delete(slices.Clone(cur), i, i+1), true
	})
	return err == nil, err
}

// Toggle adds id when absent and removes it when present.
// The bool is the result of the underlying Add or Remove.
func (f *Favorites) Toggle(ctx context.Context, id string) (bool, error) {
	if !IsValidID(id) {
		return false, nil
	}
	if f.IsFavorite(id) {
		return f.Remove(ctx, id)
	}
	return f.Add(ctx, id)
}

// Clear empties the list.
func (f *Favorites) Clear(ctx context.Context) error {
	_, _, err := f.v.Update(ctx, func(cur []string) ([]string, bool) {
		return []string{}, len(cur) > 0
	})
	return err
}

// AddMany appends the valid ids not yet present, then trims the list to Max.
func (f *Favorites) AddMany(ctx context.Context, ids []string) (bool, error) {
	if ids == nil {
		return false, nil
	}
	_, _, err := f.v.Update(ctx, func(cur []string) ([]string, bool) {
		next := slices.Clone(cur)
		for _, id := range ids {
			if IsValidID(id) && !slices.Contains(next, id) {
				next = append(next, id)
			}
		}
		if len(next) == len(cur) {
			return cur, false
		}
		if len(next) > f.max {
			slog.Warn("Trimming favorites", slog.Int("max", f.max))
			next = next[:f.max]
		}
		return next, true
	})
	return err == nil, err
}

// RemoveMany drops every listed id and returns how many were removed.
func (f *Favorites) RemoveMany(ctx context.Context, ids []string) (int, error) {
	removed := 0
	_, _, err := f.v.Update(ctx, func(cur []string) ([]string, bool) {
		next := slices.DeleteFunc(slices.Clone(cur), func(id string) bool {
			return slices.Contains(ids, id)
		})
		removed = len(cur) - len(next)
		return next, removed > 0
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Reorder moves the item at oldIndex to newIndex, shifting the others.
// Equal or out-of-range indices leave the list untouched and return false.
func (f *Favorites) Reorder(ctx context.Context, oldIndex, newIndex int) (bool, error) {
	if oldIndex == newIndex {
		return false, nil
	}
	moved := false
	_, _, err := f.v.Update(ctx, func(cur []string) ([]string, bool) {
		n := len(cur)
		if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
			slog.Warn("Invalid indices provided to Reorder",
				slog.Int("old", oldIndex),
				slog.Int("new", newIndex),
				slog.Int("len", n))
			return cur, false
		}
		next := slices.Clone(cur)
		item := next[oldIndex]
		next = slices.Delete(next, oldIndex, oldIndex+1)
		next = slices.Insert(next, newIndex, item)
		moved = true
		return next, true
	})
	if err != nil {
		return false, err
	}
	return moved, nil
}

// Validate rewrites the stored list without blank, duplicate or over-cap
// entries and returns how many were removed. The in-memory list is cleaned on
// load already; this brings the stored document in line with it.
func (f *Favorites) Validate(ctx context.Context) (int, error) {
	stored, ok, err := f.v.Stored(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	removed := len(stored) - len(normalizeFavorites(stored, f.max))
	if removed == 0 {
		return 0, nil
	}
	_, _, err = f.v.Update(ctx, func(cur []string) ([]string, bool) {
		return slices.Clone(cur), true
	})
	if err != nil {
		return 0, err
	}
	slog.Info("Cleaned up invalid favorites", slog.Int("removed", removed))
	return removed, nil
}

// Export encodes the list as a backup document.
func (f *Favorites) Export() ([]byte, error) {
	return json.Marshal(FavoritesExport{
		Favorites:  f.List(),
		ExportDate: f.clock.Now().UTC(),
		Version:    exportVersion,
	})
}

// Import loads a document produced by Export and returns the number of valid ids in it.
// With merge the ids are added via AddMany; otherwise they replace the list, trimmed to Max.
func (f *Favorites) Import(ctx context.Context, data []byte, merge bool) (int, error) {
	var doc struct {
		Favorites []any `json:"favorites"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	if doc.Favorites == nil {
		return 0, ErrInvalidExport
	}

	valid := make([]string, 0, len(doc.Favorites))
	for _, raw := range doc.Favorites {
		if id, ok := raw.(string); ok && IsValidID(id) {
			valid = append(valid, id)
		}
	}

	if merge {
		if _, err := f.AddMany(ctx, valid); err != nil {
			return 0, err
		}
	} else {
		next := make([]string, 0, len(valid))
		for _, id := range valid {
			if !slices.Contains(next, id) {
				next = append(next, id)
			}
		}
		if len(next) > f.max {
			next = next[:f.max]
		}
		if _, _, err := f.v.Update(ctx, func([]string) ([]string, bool) { return next, true }); err != nil {
			return 0, err
		}
	}

	slog.Info("Imported favorites", slog.Int("count", len(valid)), slog.Bool("merge", merge))
	return len(valid), nil
}

// Metadata summarizes the list.
func (f *Favorites) Metadata() FavoritesMetadata {
	n := len(f.v.Get())
	return FavoritesMetadata{
		Count:          n,
		MaxCount:       f.max,
		CanAddMore:     n < f.max,
		RemainingSlots: max(0, f.max-n),
		IsEmpty:        n == 0,
		IsFull:         n >= f.max,
	}
}

// OnChange registers fn to run with the new list after every change.
func (f *Favorites) OnChange(fn func([]string)) {
	f.v.OnChange(func(ids []string) { fn(slices.Clone(ids)) })
}

// Close stops following store changes.
func (f *Favorites) Close() { f.v.Close() }
