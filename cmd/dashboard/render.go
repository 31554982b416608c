package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/engine"
	"github.com/Gabrielc476/dashboard-crypto/internal/prefs"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"
)

// errRenderFailed is returned after the render boundary caught a panic.
var errRenderFailed = errors.New(domain.MsgGeneric)

// narrowWidth is the terminal width below which secondary columns are dropped.
const narrowWidth = 100

// palette holds the colors of one theme.
type palette struct {
	title   *color.Color
	muted   *color.Color
	up      *color.Color
	down    *color.Color
	star    *color.Color
	warning *color.Color
}

func newPalette(mode prefs.ThemeMode) palette {
	if mode == prefs.ThemeLight {
		return palette{
			title:   color.New(color.FgBlue, color.Bold),
			muted:   color.New(color.FgBlack),
			up:      color.New(color.FgGreen),
			down:    color.New(color.FgRed),
			star:    color.New(color.FgMagenta),
			warning: color.New(color.FgRed, color.Bold),
		}
	}
	return palette{
		title:   color.New(color.FgCyan, color.Bold),
		muted:   color.New(color.FgHiBlack),
		up:      color.New(color.FgHiGreen),
		down:    color.New(color.FgHiRed),
		star:    color.New(color.FgHiYellow),
		warning: color.New(color.FgYellow, color.Bold),
	}
}

// change colors a percentage by direction.
func (p palette) change(pct float64) string {
	s := domain.TrendIcon(pct) + " " + domain.FormatPercent(pct)
	switch {
	case pct > 0:
		return p.up.Sprint(s)
	case pct < 0:
		return p.down.Sprint(s)
	default:
		return p.muted.Sprint(s)
	}
}

// safeRender runs fn and turns a panic into the generic error message plus a
// retry hint, so a bad payload never crashes the terminal.
func safeRender(w io.Writer, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Render failed",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			fmt.Fprintln(w, domain.MsgGeneric)
			fmt.Fprintln(w, "Run the command again to retry.")
			err = errRenderFailed
		}
	}()
	return fn()
}

// terminalWidth is the width of stdout, 0 when it is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

type coinTable struct {
	currency  string
	favorites []string
	narrow    bool
	pal       palette
}

func (t coinTable) render(w io.Writer, coins []domain.Coin) error {
	table := tablewriter.NewWriter(w)

	headers := []string{"#", "Coin", "Price", "24h", "Market Cap"}
	if !t.narrow {
		headers = append(headers, "Volume", "7d", "Supply")
	}
	headers = append(headers, "★")
	table.Header(headers)

	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, c := range coins {
		row := []string{
			domain.FormatRank(c.MarketCapRank),
			fmt.Sprintf("%s (%s)", c.Name, strings.ToUpper(c.Symbol)),
			domain.FormatPrice(c.CurrentPrice, t.currency),
			t.pal.change(c.PriceChangePct24h),
			domain.FormatMarketCap(c.MarketCap, t.currency),
		}
		if !t.narrow {
			row = append(row,
				domain.FormatMarketCap(c.TotalVolume, t.currency),
				t.pal.change(c.PriceChangePct7d),
				domain.FormatCompact(c.CirculatingSupply, 2),
			)
		}
		mark := ""
		if slices.Contains(t.favorites, c.ID) {
			mark = t.pal.star.Sprint("★")
		}
		data = append(data, append(row, mark))
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func renderStatistics(w io.Writer, st domain.Statistics, fg domain.FearGreed, currency string, pal palette) {
	avg := st.AverageChange.InexactFloat64()
	mcap := st.TotalMarketCap.InexactFloat64()
	fmt.Fprintf(w, "%s %d up / %d down / %d flat · avg %s · cap %s · Fear & Greed %d (%s)\n",
		pal.title.Sprint("Market:"),
		st.PositiveCoins, st.NegativeCoins, st.NeutralCoins,
		pal.change(avg),
		domain.FormatMarketCap(mcap, currency),
		fg.Value, fg.Label)
}

func renderFeedStatus(w io.Writer, st engine.FeedState, now time.Time, pal palette) {
	switch {
	case st.Status == engine.StatusError:
		pal.warning.Fprintf(w, "⚠️  %s\n", st.ErrMessage)
	case st.LoadingMessage() != "":
		pal.muted.Fprintln(w, st.LoadingMessage())
	}
	if !st.LastUpdate.IsZero() {
		pal.muted.Fprintf(w, "Updated %s\n", domain.FormatTimeAgo(st.LastUpdate, now))
	}
}

func renderSearchResults(w io.Writer, results []domain.SearchResult) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "ID", "Name", "Symbol"})

	var data [][]string
	for _, r := range results {
		data = append(data, []string{
			domain.FormatRank(r.MarketCapRank),
			r.ID,
			r.Name,
			strings.ToUpper(r.Symbol),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func renderTrending(w io.Writer, coins []domain.TrendingCoin) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"#", "Coin", "Rank", "Price (BTC)"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, c := range coins {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%s (%s)", c.Name, strings.ToUpper(c.Symbol)),
			domain.FormatRank(c.MarketCapRank),
			strconv.FormatFloat(c.PriceBTC, 'f', 8, 64),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func renderGlobal(w io.Writer, g *domain.GlobalData, currency string, pal palette) {
	pal.title.Fprintln(w, "Global market")
	fmt.Fprintf(w, "  Market cap:     %s  %s\n",
		domain.FormatMarketCap(g.TotalMarketCap[currency], currency),
		pal.change(g.MarketCapChangePercentage24hUSD))
	fmt.Fprintf(w, "  24h volume:     %s\n", domain.FormatMarketCap(g.TotalVolume[currency], currency))
	fmt.Fprintf(w, "  Cryptos:        %d\n", g.ActiveCryptocurrencies)
	fmt.Fprintf(w, "  Markets:        %d\n", g.Markets)

	type share struct {
		sym string
		pct float64
	}
	var shares []share
	for sym, pct := range g.MarketCapPercentage {
		shares = append(shares, share{sym, pct})
	}
	slices.SortFunc(shares, func(a, b share) int {
		switch {
		case a.pct > b.pct:
			return -1
		case a.pct < b.pct:
			return 1
		}
		return strings.Compare(a.sym, b.sym)
	})
	if len(shares) > 5 {
		shares = shares[:5]
	}
	for _, s := range shares {
		fmt.Fprintf(w, "  Dominance %-5s %.2f%%\n", strings.ToUpper(s.sym), s.pct)
	}
}

func renderCoinDetail(w io.Writer, d *domain.CoinDetail, currency string, pal palette) {
	pal.title.Fprintf(w, "%s (%s)  %s\n", d.Name, strings.ToUpper(d.Symbol), domain.FormatRank(d.MarketCapRank))
	if price, ok := d.Price(currency); ok {
		fmt.Fprintf(w, "  Price:       %s\n", domain.FormatPrice(price, currency))
	}
	if md := d.MarketData; md != nil {
		fmt.Fprintf(w, "  24h:         %s\n", pal.change(md.PriceChangePercentage24h))
		fmt.Fprintf(w, "  7d:          %s\n", pal.change(md.PriceChangePercentage7d))
		fmt.Fprintf(w, "  Market cap:  %s\n", domain.FormatMarketCap(md.MarketCap[currency], currency))
		fmt.Fprintf(w, "  Volume:      %s\n", domain.FormatMarketCap(md.TotalVolume[currency], currency))
		fmt.Fprintf(w, "  ATH:         %s\n", domain.FormatPrice(md.ATH[currency], currency))
		fmt.Fprintf(w, "  Circulating: %s\n", domain.FormatCompact(md.CirculatingSupply, 2))
		fmt.Fprintf(w, "  Max supply:  %s\n", domain.FormatSupply(md.MaxSupply))
	}
	if len(d.Categories) > 0 {
		fmt.Fprintf(w, "  Categories:  %s\n", strings.Join(d.Categories, ", "))
	}
	if len(d.Links.Homepage) > 0 && d.Links.Homepage[0] != "" {
		fmt.Fprintf(w, "  Homepage:    %s\n", d.Links.Homepage[0])
	}
}

func renderAnalytics(w io.Writer, points []domain.PricePoint, days int, currency string, pal palette) {
	if len(points) < 2 {
		pal.muted.Fprintln(w, "Not enough price history for analytics.")
		return
	}
	first, last := points[0].Price, points[len(points)-1].Price
	_, pct := domain.PriceChange(last, first)

	pal.title.Fprintf(w, "Last %d days\n", days)
	fmt.Fprintf(w, "  Change:      %s\n", pal.change(pct))
	fmt.Fprintf(w, "  Volatility:  %.2f%%\n", domain.Volatility(points))
	if support, resistance, ok := domain.SupportResistance(points); ok {
		fmt.Fprintf(w, "  Support:     %s\n", domain.FormatPrice(support, currency))
		fmt.Fprintf(w, "  Resistance:  %s\n", domain.FormatPrice(resistance, currency))
	}
	if ma := domain.MovingAverage(points, 7); len(ma) > 0 {
		fmt.Fprintf(w, "  MA(7):       %s\n", domain.FormatPrice(ma[len(ma)-1].Value, currency))
	}
}
