package main

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/app"
	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/engine"
	"github.com/Gabrielc476/dashboard-crypto/internal/prefs"
	"github.com/spf13/cobra"
)

// topCmd prints the market listing once.
var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the top coins by market cap",
	Long: `Load the top coins once and print them as a table.

Examples:
  dashboard top --limit 25 --currency eur
  dashboard top --filter bit --sort change_desc
  dashboard top --favorites`,
	Args: cobra.NoArgs,
	RunE: withBootstrap(runTop),
}

func init() {
	topCmd.Flags().StringP("filter", "f", "", "Show only coins whose name, symbol or id contains this text")
	topCmd.Flags().Bool("favorites", false, "Show only favorite coins")
	topCmd.Flags().Bool("stats", true, "Print the market summary line")
}

func runTop(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	opts := engine.FeedOptionsFromConfig(b.Config, b.Clock, b.Bus)
	opts.AutoRefresh = false
	opts.FilterDebounce = 0
	opts.SideData = false
	feed := engine.NewMarketFeed(b.Client, opts)
	defer feed.Stop()

	if err := feed.Fetch(ctx); err != nil {
		return err
	}
	filter, _ := cmd.Flags().GetString("filter")
	feed.SetQuery(strings.TrimSpace(filter))

	st := feed.State()
	coins := st.Visible
	if only, _ := cmd.Flags().GetBool("favorites"); only {
		favs := b.Favorites.List()
		coins = filterFavorites(coins, favs)
	}

	pal := newPalette(b.Theme.Resolved())
	return safeRender(w, func() error {
		sum := feed.SearchSummary()
		if sum.IsFiltering && !sum.HasResults {
			fmt.Fprintf(w, "No coins match %q.\n", sum.Query)
			return nil
		}
		table := coinTable{
			currency:  b.Config.Feed.Currency,
			favorites: b.Favorites.List(),
			narrow:    isNarrow(),
			pal:       pal,
		}
		if err := table.render(w, coins); err != nil {
			return err
		}
		if sum.IsFiltering {
			pal.muted.Fprintf(w, "Showing %d of %d · %s\n", sum.Shown, sum.Total, sum.SortLabel)
		}
		if stats, _ := cmd.Flags().GetBool("stats"); stats {
			renderStatistics(w, feed.Statistics(), domain.FearGreedIndex(st.Coins), b.Config.Feed.Currency, pal)
		}
		return nil
	})
}

func filterFavorites(coins []domain.Coin, favs []string) []domain.Coin {
	out := make([]domain.Coin, 0, len(favs))
	for _, c := range coins {
		for _, id := range favs {
			if c.ID == id {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func isNarrow() bool {
	w := terminalWidth()
	return w > 0 && w < narrowWidth
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Show the coins trending on CoinGecko",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		coins, err := b.Client.GetTrendingCoins(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		return safeRender(w, func() error {
			if len(coins) == 0 {
				fmt.Fprintln(w, "Nothing is trending right now.")
				return nil
			}
			return renderTrending(w, coins)
		})
	}),
}

var globalCmd = &cobra.Command{
	Use:   "global",
	Short: "Show global market statistics",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		g, err := b.Client.GetGlobalData(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		return safeRender(w, func() error {
			renderGlobal(w, g, b.Config.Feed.Currency, newPalette(b.Theme.Resolved()))
			return nil
		})
	}),
}

// coinCmd shows one coin with price history analytics.
var coinCmd = &cobra.Command{
	Use:   "coin <id>",
	Short: "Show details and price analytics for one coin",
	Long: `Show details for a coin by its CoinGecko id, followed by volatility,
support/resistance and moving average over the requested window.

Examples:
  dashboard coin bitcoin
  dashboard coin ethereum --days 30 --currency eur`,
	Args: cobra.ExactArgs(1),
	RunE: withBootstrap(runCoin),
}

func init() {
	coinCmd.Flags().IntP("days", "d", 7, "Days of price history to analyze (0 disables)")
}

func runCoin(cmd *cobra.Command, args []string, b *app.Bootstrap) error {
	ctx := cmd.Context()
	id := strings.ToLower(strings.TrimSpace(args[0]))
	currency := b.Config.Feed.Currency

	detail, err := b.Client.GetCoinDetails(ctx, id, true)
	if err != nil {
		return err
	}
	days, _ := cmd.Flags().GetInt("days")
	var points []domain.PricePoint
	if days > 0 {
		if points, err = b.Client.GetCoinHistory(ctx, id, currency, days); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	pal := newPalette(b.Theme.Resolved())
	return safeRender(w, func() error {
		renderCoinDetail(w, detail, currency, pal)
		if b.Favorites.IsFavorite(id) {
			pal.star.Fprintln(w, "  ★ In favorites")
		}
		if days > 0 {
			fmt.Fprintln(w)
			renderAnalytics(w, points, days, currency, pal)
		}
		return nil
	})
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the CoinGecko API is reachable",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		h := b.Client.HealthCheck(cmd.Context())
		w := cmd.OutOrStdout()
		pal := newPalette(b.Theme.Resolved())
		if h.Healthy() {
			pal.up.Fprintf(w, "✅ %s (%s)\n", h.Status, h.ResponseTime.Round(time.Millisecond))
		} else {
			pal.down.Fprintf(w, "❌ %s: %s\n", h.Status, h.Error)
		}
		fmt.Fprintf(w, "Base URL: %s\n", b.Config.API.BaseURL)
		fmt.Fprintf(w, "Breaker:  %s\n", h.Cache.Breaker)
		if !h.Healthy() {
			return fmt.Errorf("api unhealthy: %s", h.Error)
		}
		return nil
	}),
}

// cacheCmd inspects the response cache. The cache lives in memory, so the
// status is that of a fresh process after warming it with the listing.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the API response cache",
	Long: `Inspect the in-memory API response cache.

Subcommands:
  status - Load the listing twice and show how many calls the cache absorbed
  clear  - Drop cached responses (useful inside long-running sessions)`,
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Warm the cache with the listing and print its statistics",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		ctx := cmd.Context()
		cfg := b.Config.Feed
		for range 2 {
			if _, err := b.Client.GetTopCoins(ctx, cfg.Limit, cfg.Currency, ""); err != nil {
				return err
			}
		}
		printCacheStats(cmd, b)
		return nil
	}),
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached response",
	Args:  cobra.NoArgs,
	RunE: withBootstrap(func(cmd *cobra.Command, _ []string, b *app.Bootstrap) error {
		b.Client.ClearCache()
		printCacheStats(cmd, b)
		return nil
	}),
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func printCacheStats(cmd *cobra.Command, b *app.Bootstrap) {
	s := b.Client.CacheStats()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Entries:        %d (TTL %s)\n", s.Size, b.Config.API.CacheTTL)
	fmt.Fprintf(w, "Network calls:  %d\n", s.NetworkCalls)
	fmt.Fprintf(w, "Cache hits:     %d\n", s.CacheHits)
	fmt.Fprintf(w, "Rate window:    %d/%d requests, %d waiting\n", s.Requests, b.Config.API.RateLimitPerMinute, s.Waiting)
	fmt.Fprintf(w, "Breaker:        %s\n", s.Breaker)
}

// versionCmd shows the verbose version for diagnostic purposes.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of dashboard.",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("dashboard CLI\n")
		cmd.Printf("  Version: %s\n", version)
		cmd.Printf("  Commit:  %s\n", commit)
		cmd.Printf("  Built:   %s\n", date)
		cmd.Printf("  Runtime: %s\n", runtime.Version())
		cmd.Printf("  Themes:  %s\n", themeList())
	},
}

func themeList() string {
	names := make([]string, 0, len(prefs.ThemeModes))
	for _, m := range prefs.ThemeModes {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}
