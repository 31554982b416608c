package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/engine"
	"github.com/Gabrielc476/dashboard-crypto/internal/prefs"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

var testCoins = []domain.Coin{
	{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", CurrentPrice: 67000, MarketCap: 1.3e12, MarketCapRank: 1, PriceChangePct24h: 2.5},
	{ID: "ethereum", Name: "Ethereum", Symbol: "eth", CurrentPrice: 3500, MarketCap: 4.2e11, MarketCapRank: 2, PriceChangePct24h: -1.2},
}

func TestSafeRender(t *testing.T) {
	t.Run("panic becomes the generic message", func(t *testing.T) {
		var buf bytes.Buffer
		err := safeRender(&buf, func() error {
			var g *domain.GlobalData
			renderGlobal(&buf, g, "usd", newPalette(prefs.ThemeDark))
			return nil
		})
		assert.ErrorIs(t, err, errRenderFailed)
		assert.Contains(t, buf.String(), domain.MsgGeneric)
		assert.Contains(t, buf.String(), "retry")
	})

	t.Run("errors pass through", func(t *testing.T) {
		want := errors.New("boom")
		var buf bytes.Buffer
		assert.Equal(t, want, safeRender(&buf, func() error { return want }))
		assert.Empty(t, buf.String())
	})
}

func TestCoinTable(t *testing.T) {
	var buf bytes.Buffer
	table := coinTable{currency: "usd", favorites: []string{"ethereum"}, pal: newPalette(prefs.ThemeDark)}
	require.NoError(t, table.render(&buf, testCoins))

	out := buf.String()
	assert.Contains(t, out, "Bitcoin (BTC)")
	assert.Contains(t, out, "Ethereum (ETH)")
	assert.Contains(t, out, "#1")
	assert.Contains(t, out, "+2.50%")
	assert.Contains(t, out, "-1.20%")
	assert.Equal(t, 2, strings.Count(out, "★"), "header plus the one favorite")
}

func TestDecodeInput(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want input
		ok   bool
	}{
		{"arrow up", []byte{0x1b, '[', 'A'}, input{key: engine.KeyUp}, true},
		{"arrow down", []byte{0x1b, '[', 'B'}, input{key: engine.KeyDown}, true},
		{"arrow right ignored", []byte{0x1b, '[', 'C'}, input{}, false},
		{"escape", []byte{0x1b}, input{key: engine.KeyEscape}, true},
		{"enter", []byte{'\r'}, input{key: engine.KeyEnter}, true},
		{"backspace", []byte{0x7f}, input{back: true}, true},
		{"ctrl-c", []byte{0x03}, input{quit: true}, true},
		{"letter", []byte{'b'}, input{r: 'b'}, true},
		{"multibyte", []byte("é"), input{r: 'é'}, true},
		{"tab ignored", []byte{'\t'}, input{}, false},
		{"empty", nil, input{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeInput(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribeError(t *testing.T) {
	assert.Equal(t, domain.MsgRateLimit, describeError(domain.ErrorFromStatus("/coins/markets", http.StatusTooManyRequests, "")))
	assert.Equal(t, domain.MsgCancelled, describeError(fmt.Errorf("load: %w", context.Canceled)))
	assert.Equal(t, "bad flag", describeError(errors.New("bad flag")))
}

func TestNextSort(t *testing.T) {
	assert.Equal(t, domain.SortMarketCapAsc, nextSort(domain.SortMarketCapDesc))
	assert.Equal(t, domain.SortMarketCapDesc, nextSort(domain.SortNameDesc), "wraps around")
	assert.Equal(t, domain.SortMarketCapDesc, nextSort("bogus"))
}

func TestOrderByIDs(t *testing.T) {
	got := orderByIDs(testCoins, []string{"ethereum", "dogecoin", "bitcoin"})
	require.Len(t, got, 2)
	assert.Equal(t, "ethereum", got[0].ID)
	assert.Equal(t, "bitcoin", got[1].ID)

	assert.Equal(t, []domain.Coin{testCoins[1]}, filterFavorites(testCoins, []string{"ethereum"}))
}

func TestCRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	n, err := crlfWriter{&buf}.Write([]byte("a\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "a\r\nb\r\n", buf.String())
}

func TestCommands_FavoritesShowInListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id":"bitcoin","name":"Bitcoin","symbol":"btc","current_price":67000,"market_cap":1300000000000,"market_cap_rank":1,"price_change_percentage_24h":2.5},
			{"id":"ethereum","name":"Ethereum","symbol":"eth","current_price":3500,"market_cap":420000000000,"market_cap_rank":2,"price_change_percentage_24h":-1.2}
		]`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	t.Setenv("DASHBOARD_BASE_URL", srv.URL)
	t.Setenv("DASHBOARD_API_KEY", "")
	t.Setenv("DASHBOARD_DB_PATH", "")
	base := []string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--secrets", filepath.Join(dir, "secrets.yaml"),
		"--workdir", dir,
		"--no-color",
		"--log-level", "error",
	}
	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(append(args, base...))
		require.NoError(t, rootCmd.ExecuteContext(context.Background()))
		return out.String()
	}

	assert.Contains(t, run("favorites", "add", "ethereum"), "ethereum added")
	assert.Contains(t, run("favorites", "add", "ethereum"), "already a favorite")

	out := run("top")
	assert.Contains(t, out, "Bitcoin (BTC)")
	assert.Contains(t, out, "Ethereum (ETH)")
	assert.Equal(t, 2, strings.Count(out, "★"))
	assert.Contains(t, out, "1 up / 1 down")

	assert.Contains(t, run("theme", "set", "light"), "Light")
	assert.Contains(t, run("theme"), "Light")
	assert.Contains(t, run("settings", "set", "coin_limit", "25"), "coin_limit = 25")
}
