package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra/coingecko"
	"github.com/Gabrielc476/dashboard-crypto/internal/prefs"
	"github.com/Gabrielc476/dashboard-crypto/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	results []domain.SearchResult
	err     error
}

func (f *fakeSearch) SearchCoins(_ context.Context, q string) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.results, f.err
}

func (f *fakeSearch) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

var searchHits = []domain.SearchResult{
	{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", MarketCapRank: 1},
	{ID: "bitcoin-cash", Name: "Bitcoin Cash", Symbol: "BCH", MarketCapRank: 20},
	{ID: "wrapped-bitcoin", Name: "Wrapped Bitcoin", Symbol: "WBTC", MarketCapRank: 15},
}

func newSearcher(t *testing.T, src SearchSource, clock infra.Clock, history HistoryRecorder) *Searcher {
	t.Helper()
	s := NewSearcher(src, SearchOptions{
		Debounce:       300 * time.Millisecond,
		MinLength:      2,
		MaxSuggestions: 10,
		History:        history,
		Clock:          clock,
	})
	t.Cleanup(s.Close)
	return s
}

func TestSearcher_DebounceRunsLastQueryOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSearch{results: searchHits}
	s := newSearcher(t, src, clock, nil)

	for _, q := range []string{"bi", "bit", "bitc", "bitco", "bitcoin"} {
		s.UpdateQuery(q)
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, src.Queries(), "nothing runs inside the quiet window")

	clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return s.Stats().Completed == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"bitcoin"}, src.Queries())

	st := s.State()
	assert.Equal(t, "bitcoin", st.Query)
	assert.True(t, st.ShowSuggestions)
	assert.False(t, st.IsSearching)
	require.Len(t, st.Suggestions, 3)
	assert.True(t, st.Suggestions[0].IsPopular)
	assert.False(t, st.Suggestions[2].IsPopular)
}

func TestSearcher_SupersededRunIsSkipped(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSearch{results: searchHits}
	s := newSearcher(t, src, clock, nil)

	s.UpdateQuery("bit")
	s.mu.Lock()
	stale := s.gen
	s.mu.Unlock()
	s.UpdateQuery("bitc")

	// A timer for "bit" that fired just before the newer query arrived.
	s.run("bit", stale)
	assert.Empty(t, src.Queries())
	assert.Zero(t, s.Stats().Searches)

	clock.Advance(300 * time.Millisecond)
	require.Eventually(t, func() bool { return s.Stats().Completed == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"bitc"}, src.Queries())
	assert.Equal(t, "bitc", s.State().Query)
}

func TestSearcher_ShortAndBlankQueries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSearch{results: searchHits}
	s := newSearcher(t, src, clock, nil)

	s.UpdateQuery("b")
	clock.Advance(time.Second)
	st := s.State()
	assert.True(t, st.ShowSuggestions)
	assert.Empty(t, st.Suggestions)

	s.UpdateQuery("bitcoin")
	s.UpdateQuery("   ")
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, src.Queries(), "blank and short queries never reach the API")
	assert.False(t, s.State().ShowSuggestions)
	assert.Equal(t, -1, s.State().SelectedIndex)
}

func TestSearcher_KeyboardNavigation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSearch{results: searchHits}
	history, err := prefs.NewHistory(context.Background(), storage.NewMemoryStore(nil), 0, clock)
	require.NoError(t, err)
	defer history.Close()
	s := newSearcher(t, src, clock, history)
	ctx := context.Background()

	s.UpdateQuery("bitcoin")
	clock.Advance(300 * time.Millisecond)
	require.Eventually(t, func() bool { return len(s.State().Suggestions) == 3 }, time.Second, time.Millisecond)

	assert.True(t, s.HandleKey(ctx, KeyDown))
	assert.True(t, s.HandleKey(ctx, KeyDown))
	assert.True(t, s.HandleKey(ctx, KeyDown))
	assert.True(t, s.HandleKey(ctx, KeyDown))
	assert.Equal(t, 2, s.State().SelectedIndex, "down stops at the last row")

	s.HandleKey(ctx, KeyUp)
	s.HandleKey(ctx, KeyUp)
	s.HandleKey(ctx, KeyUp)
	assert.Equal(t, -1, s.State().SelectedIndex, "up stops above the first row")
	assert.False(t, s.HandleKey(ctx, KeyEnter), "enter without a highlight does nothing")

	s.HandleKey(ctx, KeyDown)
	s.HandleKey(ctx, KeyDown)
	assert.True(t, s.HandleKey(ctx, KeyEnter))

	st := s.State()
	assert.Equal(t, "Bitcoin Cash", st.Query)
	assert.False(t, st.ShowSuggestions)
	assert.Equal(t, 1, s.Stats().Selections)
	require.Len(t, history.List(), 1)
	assert.Equal(t, "bitcoin-cash", history.List()[0].ID)

	s.ShowSuggestions()
	assert.True(t, s.HandleKey(ctx, KeyEscape))
	assert.False(t, s.State().ShowSuggestions)
	assert.False(t, s.HandleKey(ctx, KeyDown), "keys are ignored while hidden")
}

func TestSearcher_EmptyQueryShowsHistoryThenPopular(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	history, err := prefs.NewHistory(ctx, storage.NewMemoryStore(nil), 0, clock)
	require.NoError(t, err)
	defer history.Close()
	require.NoError(t, history.Add(ctx, domain.Suggestion{ID: "pepe", Name: "Pepe", Symbol: "PEPE"}))
	require.NoError(t, history.Add(ctx, domain.Suggestion{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC"}))

	s := newSearcher(t, &fakeSearch{}, clock, history)
	s.ShowSuggestions()

	st := s.State()
	require.Len(t, st.Suggestions, 10)
	assert.Equal(t, "bitcoin", st.Suggestions[0].ID)
	assert.True(t, st.Suggestions[0].FromHistory)
	assert.Equal(t, "pepe", st.Suggestions[1].ID)
	assert.Equal(t, "ethereum", st.Suggestions[2].ID, "popular coins follow, without repeats")
	assert.True(t, st.Suggestions[2].IsPlaceholder)
}

func TestSearcher_FailureIsState(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSearch{err: domain.ErrorFromStatus("/search", http.StatusInternalServerError, "")}
	s := newSearcher(t, src, clock, nil)

	s.UpdateQuery("doge")
	clock.Advance(300 * time.Millisecond)
	require.Eventually(t, func() bool { return s.Stats().Failed == 1 }, time.Second, time.Millisecond)

	st := s.State()
	assert.Error(t, st.Err)
	assert.Equal(t, domain.MsgSearch, st.ErrMessage)
	assert.Empty(t, st.Suggestions)

	s.ClearSearch()
	assert.NoError(t, s.State().Err)
}

func TestSearcher_CloseStopsPendingSearch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &fakeSearch{results: searchHits}
	s := NewSearcher(src, SearchOptions{Debounce: 300 * time.Millisecond, Clock: clock})

	s.UpdateQuery("bitcoin")
	s.Close()
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, src.Queries())
	s.Close()
}

// End to end through the real client: "bit" then "bitc" inside the debounce
// window must reach the API once, for "bitc".
func TestSearcher_DebouncedSearchAgainstAPI(t *testing.T) {
	var hits atomic.Int32
	var lastQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		hits.Add(1)
		lastQuery.Store(r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"coins":[{"id":"bitcoin","name":"Bitcoin","symbol":"btc","market_cap_rank":1}]}`))
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	client := coingecko.New(coingecko.Options{BaseURL: srv.URL, Clock: clock})
	s := newSearcher(t, client, clock, nil)

	s.UpdateQuery("bit")
	clock.Advance(100 * time.Millisecond)
	s.UpdateQuery("bitc")
	clock.Advance(300 * time.Millisecond)

	require.Eventually(t, func() bool { return s.Stats().Completed == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "bitc", lastQuery.Load())

	st := s.State()
	require.Len(t, st.Suggestions, 1)
	assert.Equal(t, "BTC", st.Suggestions[0].Symbol)
}
