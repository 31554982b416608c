package engine

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/event"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
)

// Number of history entries shown before the user types.
const recentHistoryShown = 5

// Key is a navigation key delivered to the search box.
type Key int

const (
	KeyDown Key = iota + 1
	KeyUp
	KeyEnter
	KeyEscape
)

// SearchSource is the part of the API client used for suggestions.
type SearchSource interface {
	SearchCoins(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// HistoryRecorder stores picked suggestions. prefs.History implements it.
type HistoryRecorder interface {
	Add(ctx context.Context, s domain.Suggestion) error
	Recent(n int) []domain.SearchHistoryEntry
}

// SearchOptions configures a Searcher.
type SearchOptions struct {
	Debounce       time.Duration
	MinLength      int
	MaxSuggestions int
	History        HistoryRecorder // nil disables history
	Clock          infra.Clock
	Bus            *event.Bus
}

// SearchOptionsFromConfig maps the search section of cfg.
func SearchOptionsFromConfig(cfg *infra.Config, history HistoryRecorder, clock infra.Clock, bus *event.Bus) SearchOptions {
	opts := SearchOptions{
		Debounce:       cfg.Search.Debounce,
		MinLength:      cfg.Search.MinLength,
		MaxSuggestions: cfg.Search.MaxSuggestions,
		Clock:          clock,
		Bus:            bus,
	}
	if cfg.Search.History {
		opts.History = history
	}
	return opts
}

// SearchState is a snapshot of the search box.
type SearchState struct {
	Query           string
	Suggestions     []domain.Suggestion // What the dropdown shows
	SelectedIndex   int                 // -1 when nothing is highlighted
	ShowSuggestions bool
	IsSearching     bool
	Err             error
	ErrMessage      string
}

// SearchStats counts searcher activity.
type SearchStats struct {
	Searches    int // Requests sent
	Completed   int
	Failed      int
	Discarded   int // Results dropped because a newer query superseded them
	Selections  int
	LastQuery   string
	LastResults int
}

// Searcher turns keystrokes into debounced suggestion lookups.
// Only the latest query's results are ever shown.
type Searcher struct {
	src  SearchSource
	opts SearchOptions

	root       context.Context
	rootCancel context.CancelFunc
	debounce   *Debouncer

	mu        sync.Mutex
	query     string
	results   []domain.Suggestion
	selected  int
	show      bool
	searching bool
	err       error
	gen       uint64
	cancel    context.CancelFunc
	alive     bool
	stats     SearchStats
	listeners []func(SearchState)

	wg sync.WaitGroup
}

// NewSearcher creates a Searcher.
func NewSearcher(src SearchSource, opts SearchOptions) *Searcher {
	if opts.Clock == nil {
		opts.Clock = infra.NewRealClock()
	}
	if opts.MinLength <= 0 {
		opts.MinLength = 2
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = 10
	}
	root, cancel := context.WithCancel(context.Background())
	return &Searcher{
		src:        src,
		opts:       opts,
		root:       root,
		rootCancel: cancel,
		debounce:   NewDebouncer(opts.Clock, opts.Debounce),
		selected:   -1,
		alive:      true,
	}
}

// UpdateQuery stores q. A blank query clears the suggestions at once; a
// query shorter than the minimum clears them without a request; anything
// else is searched once the debounce delay passes without another call.
func (s *Searcher) UpdateQuery(q string) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.query = q
	s.selected = -1
	s.err = nil
	s.searching = false
	s.cancelLocked()
	s.debounce.Cancel()
	trimmed := strings.TrimSpace(q)

	schedule := false
	switch {
	case trimmed == "":
		s.results = nil
		s.show = false
	case utf8.RuneCountInString(trimmed) < s.opts.MinLength:
		s.results = nil
		s.show = true
	default:
		s.show = true
		schedule = true
	}
	scheduled := s.gen
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	if schedule {
		s.debounce.Trigger(func() { s.run(trimmed, scheduled) })
	}
}

// run searches q unless a later query, selection or clear superseded the
// UpdateQuery call that scheduled it at generation scheduled.
func (s *Searcher) run(q string, scheduled uint64) {
	s.mu.Lock()
	if !s.alive || scheduled != s.gen {
		s.mu.Unlock()
		return
	}
	s.cancelLocked()
	gen := s.gen
	ctx, cancel := context.WithCancel(s.root)
	s.cancel = cancel
	s.searching = true
	s.stats.Searches++
	s.stats.LastQuery = q
	s.wg.Add(1)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	defer s.wg.Done()
	defer cancel()
	s.notify(snap)

	results, err := s.src.SearchCoins(ctx, q)

	s.mu.Lock()
	if !s.alive || gen != s.gen {
		s.stats.Discarded++
		s.mu.Unlock()
		return
	}
	s.cancel = nil
	s.searching = false
	switch {
	case err != nil && domain.IsCancelled(err):
	case err != nil:
		s.stats.Failed++
		s.err = err
		s.results = nil
		slog.Warn("Search failed", slog.String("query", q), slog.Any("error", err))
	default:
		s.stats.Completed++
		s.stats.LastResults = len(results)
		s.results = toSuggestions(results, s.opts.MaxSuggestions)
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func toSuggestions(results []domain.SearchResult, n int) []domain.Suggestion {
	out := make([]domain.Suggestion, 0, min(len(results), n))
	for _, r := range results {
		if len(out) == n {
			break
		}
		out = append(out, domain.Suggestion{
			ID:            r.ID,
			Name:          r.Name,
			Symbol:        r.Symbol,
			Thumb:         r.Thumb,
			MarketCapRank: r.MarketCapRank,
			IsPopular:     domain.IsPopularCoin(r.ID),
		})
	}
	return out
}

// HandleKey applies a navigation key and reports whether it was used.
func (s *Searcher) HandleKey(ctx context.Context, k Key) bool {
	s.mu.Lock()
	if !s.alive || !s.show {
		s.mu.Unlock()
		return false
	}
	list := s.displayLocked()

	switch k {
	case KeyDown:
		if len(list) == 0 {
			s.mu.Unlock()
			return false
		}
		s.selected = min(s.selected+1, len(list)-1)
	case KeyUp:
		if len(list) == 0 {
			s.mu.Unlock()
			return false
		}
		s.selected = max(s.selected-1, -1)
	case KeyEnter:
		if s.selected < 0 || s.selected >= len(list) {
			s.mu.Unlock()
			return false
		}
		picked := list[s.selected]
		s.mu.Unlock()
		s.SelectSuggestion(ctx, picked)
		return true
	case KeyEscape:
		s.show = false
		s.selected = -1
	default:
		s.mu.Unlock()
		return false
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return true
}

// SelectSuggestion commits sug: the query becomes its name, the dropdown
// closes and the pick is added to the history.
func (s *Searcher) SelectSuggestion(ctx context.Context, sug domain.Suggestion) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.debounce.Cancel()
	s.cancelLocked()
	s.query = sug.Name
	s.results = nil
	s.show = false
	s.selected = -1
	s.searching = false
	s.stats.Selections++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.opts.History != nil && sug.ID != "" {
		if err := s.opts.History.Add(ctx, sug); err != nil {
			slog.Warn("Failed to record search history", slog.String("id", sug.ID), slog.Any("error", err))
		}
	}
	s.notify(snap)
}

// ClearSearch empties the query and the suggestions.
func (s *Searcher) ClearSearch() {
	s.UpdateQuery("")
}

// HideSuggestions closes the dropdown.
func (s *Searcher) HideSuggestions() { s.setShow(false) }

// ShowSuggestions opens the dropdown.
func (s *Searcher) ShowSuggestions() { s.setShow(true) }

func (s *Searcher) setShow(show bool) {
	s.mu.Lock()
	if !s.alive || s.show == show {
		s.mu.Unlock()
		return
	}
	s.show = show
	s.selected = -1
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// State returns a snapshot.
func (s *Searcher) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Stats returns activity counters.
func (s *Searcher) Stats() SearchStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// OnUpdate registers fn to receive a snapshot after every change.
func (s *Searcher) OnUpdate(fn func(SearchState)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Close cancels the pending and in-flight searches and waits for them.
func (s *Searcher) Close() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	s.mu.Unlock()

	s.debounce.Stop()
	s.rootCancel()
	s.wg.Wait()
}

// displayLocked is the list the dropdown shows: recent history then popular
// coins for an empty query, search results otherwise.
func (s *Searcher) displayLocked() []domain.Suggestion {
	if strings.TrimSpace(s.query) != "" {
		return s.results
	}
	out := make([]domain.Suggestion, 0, s.opts.MaxSuggestions)
	if s.opts.History != nil {
		for _, e := range s.opts.History.Recent(recentHistoryShown) {
			out = append(out, domain.Suggestion{
				ID:          e.ID,
				Name:        e.Name,
				Symbol:      e.Symbol,
				Thumb:       e.Thumb,
				IsPopular:   domain.IsPopularCoin(e.ID),
				FromHistory: true,
			})
		}
	}
	for _, p := range domain.PopularSuggestions(s.opts.MaxSuggestions) {
		if len(out) == s.opts.MaxSuggestions {
			break
		}
		if !slices.ContainsFunc(out, func(x domain.Suggestion) bool { return x.ID == p.ID }) {
			out = append(out, p)
		}
	}
	return out
}

// cancelLocked drops the in-flight search, if any.
func (s *Searcher) cancelLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Searcher) snapshotLocked() SearchState {
	st := SearchState{
		Query:           s.query,
		Suggestions:     slices.Clone(s.displayLocked()),
		SelectedIndex:   s.selected,
		ShowSuggestions: s.show,
		IsSearching:     s.searching,
		Err:             s.err,
	}
	if s.err != nil {
		st.ErrMessage = domain.MsgSearch
	}
	return st
}

func (s *Searcher) notify(st SearchState) {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
	if s.opts.Bus != nil {
		ev := event.SearchUpdateEvent{
			BaseEvent:       s.opts.Bus.Stamp(),
			Query:           st.Query,
			SuggestionCount: len(st.Suggestions),
			SelectedIndex:   st.SelectedIndex,
			IsSearching:     st.IsSearching,
			Error:           st.ErrMessage,
		}
		s.opts.Bus.Publish(ev)
	}
}
