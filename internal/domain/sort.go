package domain

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortOption is a listing order key.
type SortOption string

const (
	SortMarketCapDesc SortOption = "market_cap_desc"
	SortMarketCapAsc  SortOption = "market_cap_asc"
	SortPriceDesc     SortOption = "price_desc"
	SortPriceAsc      SortOption = "price_asc"
	SortVolumeDesc    SortOption = "volume_desc"
	SortChangeDesc    SortOption = "change_desc"
	SortChangeAsc     SortOption = "change_asc"
	SortNameAsc       SortOption = "name_asc"
	SortNameDesc      SortOption = "name_desc"
)

// SortOptions lists every option with its label, in menu order.
var SortOptions = []struct {
	Key   SortOption
	Label string
}{
	{SortMarketCapDesc, "Market Cap ↓"},
	{SortMarketCapAsc, "Market Cap ↑"},
	{SortPriceDesc, "Price ↓"},
	{SortPriceAsc, "Price ↑"},
	{SortVolumeDesc, "Volume ↓"},
	{SortChangeDesc, "24h Change ↓"},
	{SortChangeAsc, "24h Change ↑"},
	{SortNameAsc, "Name A-Z"},
	{SortNameDesc, "Name Z-A"},
}

// ParseSortOption validates s.
func ParseSortOption(s string) (SortOption, error) {
	opt := SortOption(strings.ToLower(strings.TrimSpace(s)))
	for _, o := range SortOptions {
		if o.Key == opt {
			return opt, nil
		}
	}
	return "", fmt.Errorf("unknown sort option %q", s)
}

// SortCoins returns a sorted copy of coins. Unknown options order by rank,
// with unranked coins last.
func SortCoins(coins []Coin, by SortOption) []Coin {
	out := slices.Clone(coins)

	var cmp func(a, b Coin) int
	switch by {
	case SortMarketCapDesc:
		cmp = func(a, b Coin) int { return compareFloat(b.MarketCap, a.MarketCap) }
	case SortMarketCapAsc:
		cmp = func(a, b Coin) int { return compareFloat(a.MarketCap, b.MarketCap) }
	case SortPriceDesc:
		cmp = func(a, b Coin) int { return compareFloat(b.CurrentPrice, a.CurrentPrice) }
	case SortPriceAsc:
		cmp = func(a, b Coin) int { return compareFloat(a.CurrentPrice, b.CurrentPrice) }
	case SortVolumeDesc:
		cmp = func(a, b Coin) int { return compareFloat(b.TotalVolume, a.TotalVolume) }
	case SortChangeDesc:
		cmp = func(a, b Coin) int { return compareFloat(b.PriceChangePct24h, a.PriceChangePct24h) }
	case SortChangeAsc:
		cmp = func(a, b Coin) int { return compareFloat(a.PriceChangePct24h, b.PriceChangePct24h) }
	case SortNameAsc, SortNameDesc:
		// Collator keeps internal buffers; one per call.
		col := collate.New(language.English, collate.IgnoreCase)
		desc := by == SortNameDesc
		cmp = func(a, b Coin) int {
			if desc {
				return col.CompareString(b.Name, a.Name)
			}
			return col.CompareString(a.Name, b.Name)
		}
	default:
		cmp = func(a, b Coin) int { return rankKey(a.MarketCapRank) - rankKey(b.MarketCapRank) }
	}

	slices.SortStableFunc(out, cmp)
	return out
}

// FilterCoins keeps coins whose name, symbol or id contains query, case-insensitively.
// A blank query returns coins unchanged.
func FilterCoins(coins []Coin, query string) []Coin {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return coins
	}
	out := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Symbol), q) ||
			strings.Contains(strings.ToLower(c.ID), q) {
			out = append(out, c)
		}
	}
	return out
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func rankKey(rank int) int {
	if rank <= 0 {
		return int(^uint(0) >> 2)
	}
	return rank
}
