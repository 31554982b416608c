package prefs

import (
	"context"
	"slices"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/Gabrielc476/dashboard-crypto/internal/storage"
)

const DefaultHistorySize = 20

// History is the most-recent-first list of coins picked from search, one entry per coin.
type History struct {
	v     *Value[[]domain.SearchHistoryEntry]
	size  int
	clock infra.Clock
}

// NewHistory loads the list stored under storage.KeySearchHistory.
func NewHistory(ctx context.Context, store storage.Store, size int, clock infra.Clock) (*History, error) {
	if size <= 0 {
		size = DefaultHistorySize
	}
	if clock == nil {
		clock = infra.NewRealClock()
	}
	v, err := NewValue(ctx, store, storage.KeySearchHistory,
		func() []domain.SearchHistoryEntry { return []domain.SearchHistoryEntry{} },
		func(entries []domain.SearchHistoryEntry) []domain.SearchHistoryEntry {
			out := make([]domain.SearchHistoryEntry, 0, min(len(entries), size))
			for _, e := range entries {
				if len(out) == size {
					break
				}
				if IsValidID(e.ID) && !slices.ContainsFunc(out, func(o domain.SearchHistoryEntry) bool { return o.ID == e.ID }) {
					out = append(out, e)
				}
			}
			return out
		})
	if err != nil {
		return nil, err
	}
	return &History{v: v, size: size, clock: clock}, nil
}

// Add records a pick. An older entry for the same coin is replaced and the list is trimmed to size.
func (h *History) Add(ctx context.Context, s domain.Suggestion) error {
	if !IsValidID(s.ID) {
		return nil
	}
	entry := domain.SearchHistoryEntry{
		ID:         s.ID,
		Name:       s.Name,
		Symbol:     s.Symbol,
		Thumb:      s.Thumb,
		SearchedAt: h.clock.Now(),
	}
	_, _, err := h.v.Update(ctx, func(cur []domain.SearchHistoryEntry) ([]domain.SearchHistoryEntry, bool) {
		next := make([]domain.SearchHistoryEntry, 0, min(len(cur)+1, h.size))
		next = append(next, entry)
		for _, e := range cur {
			if len(next) == h.size {
				break
			}
			if e.ID != entry.ID {
				next = append(next, e)
			}
		}
		return next, true
	})
	return err
}

// Remove drops the entry of coin id.
func (h *History) Remove(ctx context.Context, id string) error {
	_, _, err := h.v.Update(ctx, func(cur []domain.SearchHistoryEntry) ([]domain.SearchHistoryEntry, bool) {
		next := slices.DeleteFunc(slices.Clone(cur), func(e domain.SearchHistoryEntry) bool { return e.ID == id })
		return next, len(next) != len(cur)
	})
	return err
}

// Clear empties the history.
func (h *History) Clear(ctx context.Context) error {
	_, _, err := h.v.Update(ctx, func(cur []domain.SearchHistoryEntry) ([]domain.SearchHistoryEntry, bool) {
		return []domain.SearchHistoryEntry{}, len(cur) > 0
	})
	return err
}

// List returns a copy of every entry, newest first.
func (h *History) List() []domain.SearchHistoryEntry {
	return slices.Clone(h.v.Get())
}

// Recent returns up to n entries, newest first.
func (h *History) Recent(n int) []domain.SearchHistoryEntry {
	cur := h.v.Get()
	if n > len(cur) {
		n = len(cur)
	}
	if n < 0 {
		n = 0
	}
	return slices.Clone(cur[:n])
}

// Close stops following store changes.
func (h *History) Close() { h.v.Close() }
