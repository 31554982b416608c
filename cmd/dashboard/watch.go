package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Gabrielc476/dashboard-crypto/internal/app"
	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/engine"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/Gabrielc476/dashboard-crypto/internal/prefs"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// watchCmd keeps the listing on screen.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the market listing on screen and refresh it",
	Long: `Show the market listing and refresh it on the configured interval.

Keys (when stdin is a terminal):
  r  refresh now, or retry after an error
  s  next sort order
  t  toggle light/dark
  c  clear the response cache
  q  quit

With sync.listen or sync.peers configured, favorites and settings changed by
other running instances show up here without a restart.`,
	Args: cobra.NoArgs,
	RunE: withBootstrap(runWatch),
}

func init() {
	watchCmd.Flags().Bool("sync", true, "Share preference changes with the instances named in the sync config")
}

// crlfWriter ends lines with \r\n for terminals in raw mode.
type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// watchView repaints the whole screen from the current feed and preferences.
type watchView struct {
	mu     sync.Mutex
	w      io.Writer
	b      *app.Bootstrap
	feed   *engine.MarketFeed
	clear  bool
	notice string
}

func (v *watchView) setNotice(s string) {
	v.mu.Lock()
	v.notice = s
	v.mu.Unlock()
	v.draw()
}

func (v *watchView) draw() {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := v.feed.State()
	pal := newPalette(v.b.Theme.Resolved())
	currency := v.b.Config.Feed.Currency
	_ = safeRender(v.w, func() error {
		if v.clear {
			fmt.Fprint(v.w, "\x1b[H\x1b[2J")
		}
		sum := v.feed.SearchSummary()
		pal.title.Fprintf(v.w, "📈 Top %d · %s · %s\n", len(st.Coins), sum.SortLabel, v.b.Theme.Get().Icon())
		if len(st.Visible) > 0 {
			table := coinTable{currency: currency, favorites: v.b.Favorites.List(), narrow: isNarrow(), pal: pal}
			if err := table.render(v.w, st.Visible); err != nil {
				return err
			}
			renderStatistics(v.w, domain.ComputeStatistics(st.Coins), domain.FearGreedIndex(st.Coins), currency, pal)
		}
		if len(st.Trending) > 0 {
			names := make([]string, 0, 5)
			for _, c := range st.Trending[:min(5, len(st.Trending))] {
				names = append(names, c.Name)
			}
			fmt.Fprintf(v.w, "🔥 %s\n", strings.Join(names, ", "))
		}
		if st.Global != nil {
			fmt.Fprintf(v.w, "🌐 %s total · %s 24h\n",
				domain.FormatMarketCap(st.Global.TotalMarketCap[currency], currency),
				pal.change(st.Global.MarketCapChangePercentage24hUSD))
		}
		renderFeedStatus(v.w, st, v.b.Clock.Now(), pal)
		cs := v.b.Client.CacheStats()
		pal.muted.Fprintf(v.w, "cache %d · calls %d · hits %d · breaker %s\n", cs.Size, cs.NetworkCalls, cs.CacheHits, cs.Breaker)
		if v.notice != "" {
			fmt.Fprintln(v.w, v.notice)
		}
		pal.muted.Fprintln(v.w, "r refresh · s sort · t theme · c clear cache · q quit")
		return nil
	})
}

func runWatch(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	infra.PrintBanner(out, b.Config)

	if enabled, _ := cmd.Flags().GetBool("sync"); enabled {
		if err := b.StartSync(ctx); err != nil {
			return err
		}
	}

	feed := b.NewFeed()
	defer feed.Stop()

	fd := int(os.Stdin.Fd())
	interactive := term.IsTerminal(fd)
	view := &watchView{w: out, b: b, feed: feed, clear: interactive}
	if interactive {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, old) }()
		view.w = crlfWriter{out}
	}

	feed.OnUpdate(func(engine.FeedState) { view.draw() })
	b.Favorites.OnChange(func([]string) { view.draw() })
	b.Theme.OnChange(func(prefs.ThemeMode) { view.draw() })

	if err := feed.Start(ctx); err != nil && !errors.Is(err, engine.ErrStopped) {
		// The error is part of the feed state; r retries it.
		slog.Warn("Initial load failed", slog.Any("error", err))
	}

	if !interactive {
		<-ctx.Done()
		return nil
	}

	inputs := readInputs(ctx, os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		case in, ok := <-inputs:
			if !ok || in.quit || in.r == 'q' {
				return nil
			}
			handleWatchKey(ctx, in.r, b, feed, view)
		}
	}
}

func handleWatchKey(ctx context.Context, r rune, b *app.Bootstrap, feed *engine.MarketFeed, view *watchView) {
	switch r {
	case 'r':
		go func() {
			var err error
			if feed.State().Status == engine.StatusError {
				err = feed.Retry(ctx)
			} else {
				err = feed.Refetch(ctx)
			}
			if err != nil && !errors.Is(err, engine.ErrStopped) {
				slog.Debug("Manual refresh failed", slog.Any("error", err))
			}
		}()
	case 's':
		feed.SetSort(nextSort(feed.State().SortBy))
	case 't':
		if _, err := b.Theme.Toggle(ctx); err != nil {
			view.setNotice("⚠️  " + err.Error())
		}
	case 'c':
		b.Client.ClearCache()
		view.setNotice("Cache cleared.")
	}
}

// nextSort returns the option after cur in menu order.
func nextSort(cur domain.SortOption) domain.SortOption {
	for i, o := range domain.SortOptions {
		if o.Key == cur {
			return domain.SortOptions[(i+1)%len(domain.SortOptions)].Key
		}
	}
	return domain.SortOptions[0].Key
}
