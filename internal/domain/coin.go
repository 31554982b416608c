package domain

import (
	"slices"
	"strings"
	"time"
)

// Coin is one row of the market listing (/coins/markets).
// Nullable upstream numbers decode to zero; only supply caps keep the nil distinction.
type Coin struct {
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	Symbol                string   `json:"symbol"`
	Image                 string   `json:"image"`
	CurrentPrice          float64  `json:"current_price"`
	MarketCap             float64  `json:"market_cap"`
	MarketCapRank         int      `json:"market_cap_rank"`
	FullyDilutedValuation float64  `json:"fully_diluted_valuation"`
	TotalVolume           float64  `json:"total_volume"`
	High24h               float64  `json:"high_24h"`
	Low24h                float64  `json:"low_24h"`
	PriceChange24h        float64  `json:"price_change_24h"`
	PriceChangePct24h     float64  `json:"price_change_percentage_24h"`
	PriceChangePct1h      float64  `json:"price_change_percentage_1h_in_currency"`
	PriceChangePct7d      float64  `json:"price_change_percentage_7d_in_currency"`
	PriceChangePct30d     float64  `json:"price_change_percentage_30d_in_currency"`
	MarketCapChange24h    float64  `json:"market_cap_change_24h"`
	MarketCapChangePct24h float64  `json:"market_cap_change_percentage_24h"`
	CirculatingSupply     float64  `json:"circulating_supply"`
	TotalSupply           *float64 `json:"total_supply"`
	MaxSupply             *float64 `json:"max_supply"`
	ATH                   float64  `json:"ath"`
	ATHChangePct          float64  `json:"ath_change_percentage"`
	ATHDate               string   `json:"ath_date"`
	ATL                   float64  `json:"atl"`
	ATLChangePct          float64  `json:"atl_change_percentage"`
	ATLDate               string   `json:"atl_date"`
	LastUpdated           string   `json:"last_updated"`
}

// ChangeDirection returns "positive", "negative", or "neutral" for the 24h change.
func (c Coin) ChangeDirection() string {
	return TrendDirection(c.PriceChangePct24h)
}

// IsPopular reports whether the coin is in the quick-access list.
func (c Coin) IsPopular() bool {
	return IsPopularCoin(c.ID)
}

// TrendDirection maps a percentage change to "positive", "negative", or "neutral".
func TrendDirection(pct float64) string {
	switch {
	case pct > 0:
		return "positive"
	case pct < 0:
		return "negative"
	default:
		return "neutral"
	}
}

// TrendIcon returns a one-rune arrow for the change.
func TrendIcon(pct float64) string {
	switch {
	case pct > 0:
		return "▲"
	case pct < 0:
		return "▼"
	default:
		return "●"
	}
}

// SearchResult is a coin hit from /search.
type SearchResult struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Thumb         string `json:"thumb"`
	Large         string `json:"large"`
	MarketCapRank int    `json:"market_cap_rank"`
}

// TrendingCoin is one entry of /search/trending.
type TrendingCoin struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Thumb         string  `json:"thumb"`
	Small         string  `json:"small"`
	Large         string  `json:"large"`
	Slug          string  `json:"slug"`
	MarketCapRank int     `json:"market_cap_rank"`
	PriceBTC      float64 `json:"price_btc"`
	Score         int     `json:"score"`
}

// GlobalData is the normalized /global payload.
type GlobalData struct {
	ActiveCryptocurrencies          int                `json:"active_cryptocurrencies"`
	UpcomingICOs                    int                `json:"upcoming_icos"`
	OngoingICOs                     int                `json:"ongoing_icos"`
	EndedICOs                       int                `json:"ended_icos"`
	Markets                         int                `json:"markets"`
	TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
	TotalVolume                     map[string]float64 `json:"total_volume"`
	MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
	MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
	UpdatedAt                       int64              `json:"updated_at"`
}

// PricePoint is one sample of /coins/{id}/market_chart. Timestamp is Unix millis.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	MarketCap float64 `json:"market_cap"`
}

// Time returns the sample time.
func (p PricePoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// CoinImage holds the three icon sizes of a coin.
type CoinImage struct {
	Thumb string `json:"thumb"`
	Small string `json:"small"`
	Large string `json:"large"`
}

// CoinLinks is the subset of /coins/{id} links kept for display. Empty entries are dropped.
type CoinLinks struct {
	Homepage                  []string `json:"homepage"`
	BlockchainSite            []string `json:"blockchain_site"`
	OfficialForumURL          []string `json:"official_forum_url"`
	ChatURL                   []string `json:"chat_url"`
	AnnouncementURL           []string `json:"announcement_url"`
	TwitterScreenName         string   `json:"twitter_screen_name"`
	FacebookUsername          string   `json:"facebook_username"`
	TelegramChannelIdentifier string   `json:"telegram_channel_identifier"`
	SubredditURL              string   `json:"subreddit_url"`
	ReposGithub               []string `json:"repos_github"`
	ReposBitbucket            []string `json:"repos_bitbucket"`
}

// CoinMarketData is the per-currency market block of /coins/{id}.
type CoinMarketData struct {
	CurrentPrice                 map[string]float64 `json:"current_price"`
	ATH                          map[string]float64 `json:"ath"`
	ATHChangePercentage          map[string]float64 `json:"ath_change_percentage"`
	ATHDate                      map[string]string  `json:"ath_date"`
	ATL                          map[string]float64 `json:"atl"`
	ATLChangePercentage          map[string]float64 `json:"atl_change_percentage"`
	ATLDate                      map[string]string  `json:"atl_date"`
	MarketCap                    map[string]float64 `json:"market_cap"`
	MarketCapRank                int                `json:"market_cap_rank"`
	FullyDilutedValuation        map[string]float64 `json:"fully_diluted_valuation"`
	TotalVolume                  map[string]float64 `json:"total_volume"`
	High24h                      map[string]float64 `json:"high_24h"`
	Low24h                       map[string]float64 `json:"low_24h"`
	PriceChange24h               float64            `json:"price_change_24h"`
	PriceChangePercentage24h     float64            `json:"price_change_percentage_24h"`
	PriceChangePercentage7d      float64            `json:"price_change_percentage_7d"`
	PriceChangePercentage14d     float64            `json:"price_change_percentage_14d"`
	PriceChangePercentage30d     float64            `json:"price_change_percentage_30d"`
	PriceChangePercentage60d     float64            `json:"price_change_percentage_60d"`
	PriceChangePercentage200d    float64            `json:"price_change_percentage_200d"`
	PriceChangePercentage1y      float64            `json:"price_change_percentage_1y"`
	MarketCapChange24h           float64            `json:"market_cap_change_24h"`
	MarketCapChangePercentage24h float64            `json:"market_cap_change_percentage_24h"`
	TotalSupply                  *float64           `json:"total_supply"`
	MaxSupply                    *float64           `json:"max_supply"`
	CirculatingSupply            float64            `json:"circulating_supply"`
	LastUpdated                  string             `json:"last_updated"`
}

// CoinDetail is the normalized /coins/{id} payload.
type CoinDetail struct {
	ID                           string            `json:"id"`
	Symbol                       string            `json:"symbol"`
	Name                         string            `json:"name"`
	AssetPlatformID              string            `json:"asset_platform_id"`
	Platforms                    map[string]string `json:"platforms"`
	Description                  string            `json:"description"`
	Links                        CoinLinks         `json:"links"`
	Image                        CoinImage         `json:"image"`
	CountryOrigin                string            `json:"country_origin"`
	GenesisDate                  string            `json:"genesis_date"`
	SentimentVotesUpPercentage   float64           `json:"sentiment_votes_up_percentage"`
	SentimentVotesDownPercentage float64           `json:"sentiment_votes_down_percentage"`
	MarketCapRank                int               `json:"market_cap_rank"`
	LastUpdated                  string            `json:"last_updated"`
	Categories                   []string          `json:"categories"`
	MarketData                   *CoinMarketData   `json:"market_data,omitempty"`
}

// Price returns the current price in the given currency, if known.
func (d CoinDetail) Price(currency string) (float64, bool) {
	if d.MarketData == nil {
		return 0, false
	}
	p, ok := d.MarketData.CurrentPrice[strings.ToLower(currency)]
	return p, ok
}

// SearchHistoryEntry is a coin the user picked from search suggestions.
type SearchHistoryEntry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Symbol     string    `json:"symbol"`
	Thumb      string    `json:"thumb,omitempty"`
	SearchedAt time.Time `json:"searchedAt"`
}

// Suggestion is one row of the search dropdown.
// It is a search hit, a history entry, or a popular placeholder.
type Suggestion struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Thumb         string `json:"thumb,omitempty"`
	MarketCapRank int    `json:"market_cap_rank,omitempty"`
	Query         string `json:"query,omitempty"`
	IsPopular     bool   `json:"is_popular"`
	IsPlaceholder bool   `json:"is_placeholder"`
	FromHistory   bool   `json:"from_history"`
}

// PopularCoins is the quick-access list shown before the user types.
var PopularCoins = []string{
	"bitcoin",
	"ethereum",
	"binancecoin",
	"solana",
	"ripple",
	"cardano",
	"dogecoin",
	"avalanche-2",
	"polkadot",
	"chainlink",
	"polygon",
	"litecoin",
	"bitcoin-cash",
	"uniswap",
	"cosmos",
}

// IsPopularCoin reports whether id is one of PopularCoins.
func IsPopularCoin(id string) bool {
	return slices.Contains(PopularCoins, id)
}

// PopularSuggestions builds up to n placeholder suggestions from PopularCoins.
func PopularSuggestions(n int) []Suggestion {
	if n > len(PopularCoins) {
		n = len(PopularCoins)
	}
	out := make([]Suggestion, 0, n)
	for _, id := range PopularCoins[:n] {
		name := strings.ReplaceAll(id, "-", " ")
		name = strings.ToUpper(name[:1]) + name[1:]
		sym := id
		if len(sym) > 3 {
			sym = sym[:3]
		}
		out = append(out, Suggestion{
			ID:            id,
			Name:          name,
			Symbol:        strings.ToUpper(sym),
			IsPopular:     true,
			IsPlaceholder: true,
		})
	}
	return out
}
