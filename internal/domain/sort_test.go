package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(coins []Coin) []string {
	out := make([]string, len(coins))
	for i, c := range coins {
		out[i] = c.ID
	}
	return out
}

func TestSortCoins(t *testing.T) {
	coins := []Coin{
		{ID: "eth", Name: "ethereum", MarketCap: 400, CurrentPrice: 3000, TotalVolume: 20, PriceChangePct24h: -1, MarketCapRank: 2},
		{ID: "btc", Name: "Bitcoin", MarketCap: 1000, CurrentPrice: 60000, TotalVolume: 30, PriceChangePct24h: 2, MarketCapRank: 1},
		{ID: "ada", Name: "Cardano", MarketCap: 20, CurrentPrice: 0.5, TotalVolume: 5, PriceChangePct24h: 7},
	}

	tests := []struct {
		by   SortOption
		want []string
	}{
		{SortMarketCapDesc, []string{"btc", "eth", "ada"}},
		{SortMarketCapAsc, []string{"ada", "eth", "btc"}},
		{SortPriceDesc, []string{"btc", "eth", "ada"}},
		{SortPriceAsc, []string{"ada", "eth", "btc"}},
		{SortVolumeDesc, []string{"btc", "eth", "ada"}},
		{SortChangeDesc, []string{"ada", "btc", "eth"}},
		{SortChangeAsc, []string{"eth", "btc", "ada"}},
		{SortNameAsc, []string{"btc", "ada", "eth"}},
		{SortNameDesc, []string{"eth", "ada", "btc"}},
		{SortOption("bogus"), []string{"btc", "eth", "ada"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.by), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(SortCoins(coins, tt.by)))
		})
	}

	t.Run("Input Untouched", func(t *testing.T) {
		SortCoins(coins, SortNameAsc)
		assert.Equal(t, []string{"eth", "btc", "ada"}, ids(coins))
	})
}

func TestParseSortOption(t *testing.T) {
	opt, err := ParseSortOption(" Price_Desc ")
	assert.NoError(t, err)
	assert.Equal(t, SortPriceDesc, opt)

	_, err = ParseSortOption("rank")
	assert.Error(t, err)
}

func TestFilterCoins(t *testing.T) {
	coins := []Coin{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC"},
		{ID: "wrapped-bitcoin", Name: "Wrapped Bitcoin", Symbol: "WBTC"},
		{ID: "ethereum", Name: "Ethereum", Symbol: "ETH"},
	}

	assert.Equal(t, []string{"bitcoin", "wrapped-bitcoin"}, ids(FilterCoins(coins, "  BTC ")))
	assert.Equal(t, []string{"wrapped-bitcoin"}, ids(FilterCoins(coins, "wrapped")))
	assert.Len(t, FilterCoins(coins, ""), 3)
	assert.Empty(t, FilterCoins(coins, "doge"))
}

func TestPopularSuggestions(t *testing.T) {
	s := PopularSuggestions(5)
	assert.Len(t, s, 5)
	assert.Equal(t, "Bitcoin", s[0].Name)
	assert.Equal(t, "BIT", s[0].Symbol)
	assert.True(t, s[0].IsPlaceholder)

	all := PopularSuggestions(100)
	assert.Len(t, all, len(PopularCoins))
	assert.Equal(t, "Avalanche 2", all[7].Name)
	assert.True(t, IsPopularCoin("cosmos"))
	assert.False(t, IsPopularCoin("pepe"))
}
