package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/event"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Loading messages shown by the view.
const (
	MsgLoadingCoins = "Loading cryptocurrencies..."
	MsgRefreshing   = "Updating data..."
	MsgSearching    = "Searching..."
)

// ErrStopped is returned by operations on a stopped feed.
var ErrStopped = errors.New("feed stopped")

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("feed already started")

// FeedStatus is the state of the listing fetch.
type FeedStatus int

const (
	StatusIdle FeedStatus = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s FeedStatus) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusLoading:
		return "LOADING"
	case StatusSuccess:
		return "SUCCESS"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MarketSource is the part of the API client the feed reads from.
type MarketSource interface {
	GetTopCoins(ctx context.Context, limit int, currency, order string) ([]domain.Coin, error)
	GetTrendingCoins(ctx context.Context) ([]domain.TrendingCoin, error)
	GetGlobalData(ctx context.Context) (*domain.GlobalData, error)
}

// FeedState is a snapshot of the feed. Slices are copies owned by the receiver.
type FeedState struct {
	Status       FeedStatus
	IsRefreshing bool
	Coins        []domain.Coin // As fetched
	Visible      []domain.Coin // Coins filtered by Query and ordered by SortBy
	Trending     []domain.TrendingCoin
	Global       *domain.GlobalData
	Query        string
	SortBy       domain.SortOption
	Err          error
	ErrMessage   string
	LastUpdate   time.Time
}

// LoadingMessage returns the text for the current activity, or "".
func (s FeedState) LoadingMessage() string {
	switch {
	case s.Status == StatusLoading:
		return MsgLoadingCoins
	case s.IsRefreshing:
		return MsgRefreshing
	default:
		return ""
	}
}

// SearchSummary describes the filtered view.
type SearchSummary struct {
	Query       string
	SortBy      domain.SortOption
	SortLabel   string
	Total       int
	Shown       int
	HasResults  bool
	IsFiltering bool
}

// FeedOptions configures a MarketFeed.
type FeedOptions struct {
	Limit           int
	Currency        string
	SortBy          domain.SortOption
	AutoRefresh     bool
	RefreshInterval time.Duration
	FilterDebounce  time.Duration
	SideData        bool // Also load trending coins and global stats
	Clock           infra.Clock
	Bus             *event.Bus
}

// FeedOptionsFromConfig maps the feed and search sections of cfg.
func FeedOptionsFromConfig(cfg *infra.Config, clock infra.Clock, bus *event.Bus) FeedOptions {
	sortBy, err := domain.ParseSortOption(cfg.Feed.SortBy)
	if err != nil {
		sortBy = domain.SortMarketCapDesc
	}
	return FeedOptions{
		Limit:           cfg.Feed.Limit,
		Currency:        cfg.Feed.Currency,
		SortBy:          sortBy,
		AutoRefresh:     cfg.Feed.AutoRefresh,
		RefreshInterval: cfg.Feed.RefreshInterval,
		FilterDebounce:  cfg.Search.Debounce,
		SideData:        cfg.Feed.Trending,
		Clock:           clock,
		Bus:             bus,
	}
}

// MarketFeed keeps the top-coins listing current.
//
// Only the most recent fetch may change the state: starting a fetch cancels
// the one in flight, and results from older generations are dropped.
// After Stop no state change is made and no listener is called.
type MarketFeed struct {
	src   MarketSource
	opts  FeedOptions
	clock infra.Clock

	root       context.Context
	rootCancel context.CancelFunc

	mu          sync.Mutex
	state       FeedState
	gen         uint64
	cancelFetch context.CancelFunc
	alive       bool
	started     bool
	listeners   []func(FeedState)

	filter *Debouncer
	wg     sync.WaitGroup
}

// NewMarketFeed creates an idle feed.
func NewMarketFeed(src MarketSource, opts FeedOptions) *MarketFeed {
	if opts.Clock == nil {
		opts.Clock = infra.NewRealClock()
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.SortBy == "" {
		opts.SortBy = domain.SortMarketCapDesc
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}

	root, cancel := context.WithCancel(context.Background())
	return &MarketFeed{
		src:        src,
		opts:       opts,
		clock:      opts.Clock,
		root:       root,
		rootCancel: cancel,
		alive:      true,
		state:      FeedState{Status: StatusIdle, SortBy: opts.SortBy},
		filter:     NewDebouncer(opts.Clock, opts.FilterDebounce),
	}
}

// Start runs the initial fetch and, when enabled, the auto-refresh loop.
// The feed stops when ctx is done. The initial fetch error is returned.
func (f *MarketFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		return ErrStopped
	}
	if f.started {
		f.mu.Unlock()
		return ErrAlreadyStarted
	}
	f.started = true
	if f.opts.AutoRefresh {
		ticker := f.clock.NewTicker(f.opts.RefreshInterval)
		f.wg.Add(1)
		go f.refreshLoop(ticker)
	}
	f.mu.Unlock()

	context.AfterFunc(ctx, f.Stop)

	slog.Info("Market feed started",
		slog.Int("limit", f.opts.Limit),
		slog.String("currency", f.opts.Currency),
		slog.Bool("auto_refresh", f.opts.AutoRefresh),
		slog.Duration("interval", f.opts.RefreshInterval))
	return f.Fetch(ctx)
}

func (f *MarketFeed) refreshLoop(ticker clockwork.Ticker) {
	defer f.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-f.root.Done():
			return
		case <-ticker.Chan():
			if f.State().Status != StatusSuccess {
				continue
			}
			if err := f.Refetch(f.root); err != nil && !errors.Is(err, ErrStopped) {
				slog.Warn("Auto-refresh failed", slog.Any("error", err))
			}
		}
	}
}

// Fetch loads the listing in the foreground (state goes to Loading).
// It returns when the fetch finished or was superseded. A superseded or
// cancelled fetch returns nil.
func (f *MarketFeed) Fetch(ctx context.Context) error {
	return f.fetch(ctx, false)
}

// Refetch reloads in the background: the current coins stay visible and
// IsRefreshing is set until the fetch ends.
func (f *MarketFeed) Refetch(ctx context.Context) error {
	return f.fetch(ctx, true)
}

// Retry fetches again after an error. It does nothing in other states.
func (f *MarketFeed) Retry(ctx context.Context) error {
	if f.State().Status != StatusError {
		return nil
	}
	return f.fetch(ctx, false)
}

func (f *MarketFeed) fetch(ctx context.Context, background bool) error {
	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		return ErrStopped
	}
	if f.cancelFetch != nil {
		f.cancelFetch()
	}
	f.gen++
	gen := f.gen
	fctx, cancel := context.WithCancel(f.root)
	stopLink := context.AfterFunc(ctx, cancel)
	f.cancelFetch = cancel

	prevStatus, prevRefreshing := f.state.Status, f.state.IsRefreshing
	if background {
		f.state.IsRefreshing = true
	} else {
		f.state.Status = StatusLoading
		f.state.Err = nil
		f.state.ErrMessage = ""
	}
	snap := f.snapshotLocked()
	f.wg.Add(1)
	f.mu.Unlock()
	defer f.wg.Done()
	defer stopLink()
	defer cancel()

	f.notify(snap)

	var (
		coins    []domain.Coin
		trending []domain.TrendingCoin
		global   *domain.GlobalData
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		coins, err = f.src.GetTopCoins(fctx, f.opts.Limit, f.opts.Currency, "")
		return err
	})
	if f.opts.SideData {
		g.Go(func() error {
			t, err := f.src.GetTrendingCoins(fctx)
			if err != nil {
				if !domain.IsCancelled(err) {
					slog.Warn("Failed to load trending coins", slog.Any("error", err))
				}
				return nil
			}
			trending = t
			return nil
		})
		g.Go(func() error {
			gd, err := f.src.GetGlobalData(fctx)
			if err != nil {
				if !domain.IsCancelled(err) {
					slog.Warn("Failed to load global market data", slog.Any("error", err))
				}
				return nil
			}
			global = gd
			return nil
		})
	}
	err := g.Wait()

	f.mu.Lock()
	if !f.alive || gen != f.gen {
		f.mu.Unlock()
		slog.Debug("Discarding superseded fetch", slog.Uint64("generation", gen))
		return nil
	}
	f.cancelFetch = nil

	switch {
	case err != nil && (domain.IsCancelled(err) || fctx.Err() != nil):
		f.state.Status, f.state.IsRefreshing = prevStatus, prevRefreshing
		if prevStatus == StatusLoading {
			f.state.Status = StatusIdle
		}
		err = nil
	case err != nil:
		f.state.Status = StatusError
		f.state.IsRefreshing = false
		f.state.Err = err
		f.state.ErrMessage = domain.UserMessage(err)
		slog.Error("Failed to fetch market data",
			slog.Bool("background", background),
			slog.String("kind", domain.KindOf(err).String()),
			slog.Any("error", err))
	default:
		f.state.Status = StatusSuccess
		f.state.IsRefreshing = false
		f.state.Err = nil
		f.state.ErrMessage = ""
		f.state.Coins = coins
		f.state.LastUpdate = f.clock.Now()
		if trending != nil {
			f.state.Trending = trending
		}
		if global != nil {
			f.state.Global = global
		}
		f.recomputeLocked()
	}
	snap = f.snapshotLocked()
	f.mu.Unlock()

	f.notify(snap)
	return err
}

// SetQuery filters the visible coins by name, symbol or id after the filter debounce.
func (f *MarketFeed) SetQuery(q string) {
	f.filter.Trigger(func() {
		f.mu.Lock()
		if !f.alive || f.state.Query == q {
			f.mu.Unlock()
			return
		}
		f.state.Query = q
		f.recomputeLocked()
		snap := f.snapshotLocked()
		f.mu.Unlock()
		f.notify(snap)
	})
}

// SetSort reorders the visible coins.
func (f *MarketFeed) SetSort(by domain.SortOption) {
	f.mu.Lock()
	if !f.alive || f.state.SortBy == by {
		f.mu.Unlock()
		return
	}
	f.state.SortBy = by
	f.recomputeLocked()
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
}

// ClearSearch drops the filter immediately, including a pending SetQuery.
func (f *MarketFeed) ClearSearch() {
	f.filter.Cancel()
	f.mu.Lock()
	if !f.alive || f.state.Query == "" {
		f.mu.Unlock()
		return
	}
	f.state.Query = ""
	f.recomputeLocked()
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.notify(snap)
}

// State returns a snapshot.
func (f *MarketFeed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// CoinByID looks id up in the fetched coins.
func (f *MarketFeed) CoinByID(id string) (domain.Coin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.state.Coins {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Coin{}, false
}

// Statistics summarizes every fetched coin, ignoring the filter.
func (f *MarketFeed) Statistics() domain.Statistics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.ComputeStatistics(f.state.Coins)
}

// SearchSummary describes the current filter.
func (f *MarketFeed) SearchSummary() SearchSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	label := string(f.state.SortBy)
	for _, o := range domain.SortOptions {
		if o.Key == f.state.SortBy {
			label = o.Label
		}
	}
	return SearchSummary{
		Query:       f.state.Query,
		SortBy:      f.state.SortBy,
		SortLabel:   label,
		Total:       len(f.state.Coins),
		Shown:       len(f.state.Visible),
		HasResults:  len(f.state.Visible) > 0,
		IsFiltering: f.state.Query != "",
	}
}

// OnUpdate registers fn to receive a snapshot after every state change.
func (f *MarketFeed) OnUpdate(fn func(FeedState)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

// Stop cancels the refresh loop, pending filters and in-flight fetches, then
// waits for them to return. It is safe to call more than once.
func (f *MarketFeed) Stop() {
	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		return
	}
	f.alive = false
	f.mu.Unlock()

	f.filter.Stop()
	f.rootCancel()
	f.wg.Wait()
	slog.Debug("Market feed stopped")
}

func (f *MarketFeed) recomputeLocked() {
	f.state.Visible = domain.SortCoins(domain.FilterCoins(f.state.Coins, f.state.Query), f.state.SortBy)
}

func (f *MarketFeed) snapshotLocked() FeedState {
	s := f.state
	s.Coins = slices.Clone(s.Coins)
	s.Visible = slices.Clone(s.Visible)
	s.Trending = slices.Clone(s.Trending)
	return s
}

func (f *MarketFeed) notify(s FeedState) {
	f.mu.Lock()
	if !f.alive {
		f.mu.Unlock()
		return
	}
	listeners := slices.Clone(f.listeners)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
	if f.opts.Bus != nil {
		ev := event.FeedUpdateEvent{
			BaseEvent:    f.opts.Bus.Stamp(),
			Status:       s.Status.String(),
			CoinCount:    len(s.Coins),
			IsRefreshing: s.IsRefreshing,
			Error:        s.ErrMessage,
		}
		if !s.LastUpdate.IsZero() {
			ev.LastUpdate = s.LastUpdate.UnixMilli()
		}
		f.opts.Bus.Publish(ev)
	}
}
