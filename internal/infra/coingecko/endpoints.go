package coingecko

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
)

const (
	MinSearchLength = 2
	MaxSearchLength = 50
	MaxSearchHits   = 10

	DefaultCurrency = "usd"
	DefaultOrder    = "market_cap_desc"
	maxPerPage      = 250

	priceChangeWindows = "1h,24h,7d,30d"
)

// GetTopCoins returns the first limit coins of the market listing.
func (c *Client) GetTopCoins(ctx context.Context, limit int, currency, order string) ([]domain.Coin, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}
	params := url.Values{}
	params.Set("vs_currency", currencyOrDefault(currency))
	params.Set("order", orderOrDefault(order))
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", priceChangeWindows)

	return getJSON[[]domain.Coin](ctx, c, "/coins/markets", params)
}

type searchResponse struct {
	Coins []domain.SearchResult `json:"coins"`
}

// SearchCoins looks up coins by name or symbol and returns at most MaxSearchHits.
// Symbols come back upper-cased.
func (c *Client) SearchCoins(ctx context.Context, query string) ([]domain.SearchResult, error) {
	q := strings.TrimSpace(query)
	if n := len([]rune(q)); n < MinSearchLength {
		return nil, domain.NewValidationError("/search", "Search query must be at least 2 characters long")
	} else if n > MaxSearchLength {
		return nil, domain.NewValidationError("/search", "Search query must be at most 50 characters long")
	}

	params := url.Values{}
	params.Set("query", q)

	resp, err := getJSON[searchResponse](ctx, c, "/search", params)
	if err != nil {
		return nil, err
	}

	hits := resp.Coins
	if len(hits) > MaxSearchHits {
		hits = hits[:MaxSearchHits]
	}
	out := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		h.Symbol = strings.ToUpper(h.Symbol)
		out[i] = h
	}
	return out, nil
}

type coinDetailResponse struct {
	ID              string            `json:"id"`
	Symbol          string            `json:"symbol"`
	Name            string            `json:"name"`
	AssetPlatformID string            `json:"asset_platform_id"`
	Platforms       map[string]string `json:"platforms"`
	Categories      []string          `json:"categories"`
	Description     struct {
		En string `json:"en"`
	} `json:"description"`
	Links struct {
		Homepage                  []string `json:"homepage"`
		BlockchainSite            []string `json:"blockchain_site"`
		OfficialForumURL          []string `json:"official_forum_url"`
		ChatURL                   []string `json:"chat_url"`
		AnnouncementURL           []string `json:"announcement_url"`
		TwitterScreenName         string   `json:"twitter_screen_name"`
		FacebookUsername          string   `json:"facebook_username"`
		TelegramChannelIdentifier string   `json:"telegram_channel_identifier"`
		SubredditURL              string   `json:"subreddit_url"`
		ReposURL                  struct {
			Github    []string `json:"github"`
			Bitbucket []string `json:"bitbucket"`
		} `json:"repos_url"`
	} `json:"links"`
	Image                        domain.CoinImage       `json:"image"`
	CountryOrigin                string                 `json:"country_origin"`
	GenesisDate                  string                 `json:"genesis_date"`
	SentimentVotesUpPercentage   float64                `json:"sentiment_votes_up_percentage"`
	SentimentVotesDownPercentage float64                `json:"sentiment_votes_down_percentage"`
	MarketCapRank                int                    `json:"market_cap_rank"`
	LastUpdated                  string                 `json:"last_updated"`
	MarketData                   *domain.CoinMarketData `json:"market_data"`
}

// GetCoinDetails fetches one coin. includeMarket asks for the market_data block.
func (c *Client) GetCoinDetails(ctx context.Context, id string, includeMarket bool) (*domain.CoinDetail, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("/coins", domain.MsgInvalidCoin)
	}

	params := url.Values{}
	params.Set("localization", "false")
	params.Set("tickers", "false")
	params.Set("market_data", strconv.FormatBool(includeMarket))
	params.Set("community_data", "false")
	params.Set("developer_data", "false")
	params.Set("sparkline", "false")

	raw, err := getJSON[coinDetailResponse](ctx, c, "/coins/"+url.PathEscape(id), params)
	if err != nil {
		return nil, err
	}

	d := &domain.CoinDetail{
		ID:              raw.ID,
		Symbol:          raw.Symbol,
		Name:            raw.Name,
		AssetPlatformID: raw.AssetPlatformID,
		Platforms:       raw.Platforms,
		Description:     raw.Description.En,
		Links: domain.CoinLinks{
			Homepage:                  nonEmpty(raw.Links.Homepage),
			BlockchainSite:            nonEmpty(raw.Links.BlockchainSite),
			OfficialForumURL:          nonEmpty(raw.Links.OfficialForumURL),
			ChatURL:                   nonEmpty(raw.Links.ChatURL),
			AnnouncementURL:           nonEmpty(raw.Links.AnnouncementURL),
			TwitterScreenName:         raw.Links.TwitterScreenName,
			FacebookUsername:          raw.Links.FacebookUsername,
			TelegramChannelIdentifier: raw.Links.TelegramChannelIdentifier,
			SubredditURL:              raw.Links.SubredditURL,
			ReposGithub:               nonEmpty(raw.Links.ReposURL.Github),
			ReposBitbucket:            nonEmpty(raw.Links.ReposURL.Bitbucket),
		},
		Image:                        raw.Image,
		CountryOrigin:                raw.CountryOrigin,
		GenesisDate:                  raw.GenesisDate,
		SentimentVotesUpPercentage:   raw.SentimentVotesUpPercentage,
		SentimentVotesDownPercentage: raw.SentimentVotesDownPercentage,
		MarketCapRank:                raw.MarketCapRank,
		LastUpdated:                  raw.LastUpdated,
		Categories:                   nonEmpty(raw.Categories),
	}
	if includeMarket {
		d.MarketData = raw.MarketData
	}
	return d, nil
}

// GetCoinsByIDs returns market rows for the given ids, e.g. the favorites list.
func (c *Client) GetCoinsByIDs(ctx context.Context, ids []string, currency string) ([]domain.Coin, error) {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(clean, id) {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return nil, domain.NewValidationError("/coins/markets", "At least one coin ID is required")
	}

	params := url.Values{}
	params.Set("vs_currency", currencyOrDefault(currency))
	params.Set("ids", strings.Join(clean, ","))
	params.Set("order", DefaultOrder)
	params.Set("per_page", strconv.Itoa(min(len(clean), maxPerPage)))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", priceChangeWindows)

	return getJSON[[]domain.Coin](ctx, c, "/coins/markets", params)
}

type trendingResponse struct {
	Coins []struct {
		Item struct {
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
		} `json:"item"`
	} `json:"coins"`
}

// GetTrendingCoins returns the coins trending on CoinGecko in the last 24h.
func (c *Client) GetTrendingCoins(ctx context.Context) ([]domain.TrendingCoin, error) {
	resp, err := getJSON[trendingResponse](ctx, c, "/search/trending", nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TrendingCoin, 0, len(resp.Coins))
	for _, entry := range resp.Coins {
		it := entry.Item
		out = append(out, domain.TrendingCoin{
			ID:            it.ID,
			Name:          it.Name,
			Symbol:        it.Symbol,
			Thumb:         it.Thumb,
			Small:         it.Small,
			Large:         it.Large,
			Slug:          it.Slug,
			MarketCapRank: it.MarketCapRank,
			PriceBTC:      it.PriceBTC,
			Score:         it.Score,
		})
	}
	return out, nil
}

type globalResponse struct {
	Data domain.GlobalData `json:"data"`
}

// GetGlobalData returns aggregate market statistics.
func (c *Client) GetGlobalData(ctx context.Context) (*domain.GlobalData, error) {
	resp, err := getJSON[globalResponse](ctx, c, "/global", nil)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

type marketChartResponse struct {
	Prices       [][2]float64 `json:"prices"`
	MarketCaps   [][2]float64 `json:"market_caps"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// GetCoinHistory returns price samples for the last days days.
// One day is sampled hourly, anything longer daily.
func (c *Client) GetCoinHistory(ctx context.Context, id, currency string, days int) ([]domain.PricePoint, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewValidationError("/coins", domain.MsgInvalidCoin)
	}
	if days <= 0 {
		days = 7
	}

	interval := "daily"
	if days == 1 {
		interval = "hourly"
	}
	params := url.Values{}
	params.Set("vs_currency", currencyOrDefault(currency))
	params.Set("days", strconv.Itoa(days))
	params.Set("interval", interval)

	resp, err := getJSON[marketChartResponse](ctx, c, "/coins/"+url.PathEscape(id)+"/market_chart", params)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PricePoint, len(resp.Prices))
	for i, p := range resp.Prices {
		out[i] = domain.PricePoint{Timestamp: int64(p[0]), Price: p[1]}
		if i < len(resp.TotalVolumes) {
			out[i].Volume = resp.TotalVolumes[i][1]
		}
		if i < len(resp.MarketCaps) {
			out[i].MarketCap = resp.MarketCaps[i][1]
		}
	}
	return out, nil
}

// GetSupportedCurrencies lists the vs_currency codes the API accepts.
func (c *Client) GetSupportedCurrencies(ctx context.Context) ([]string, error) {
	return getJSON[[]string](ctx, c, "/simple/supported_vs_currencies", nil)
}

type pingResponse struct {
	GeckoSays string `json:"gecko_says"`
}

// Ping checks that the API answers. It is a single attempt.
func (c *Client) Ping(ctx context.Context) (string, error) {
	body, err := c.Request(ctx, "/ping", nil)
	if err != nil {
		return "", err
	}
	var resp pingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.NewDecodeError("/ping", 200, err)
	}
	return resp.GeckoSays, nil
}

// Health is the result of HealthCheck.
type Health struct {
	Status       string        `json:"status"` // healthy | unhealthy
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
	Error        string        `json:"error,omitempty"`
	Cache        CacheStats    `json:"cache"`
}

// Healthy reports whether the last ping succeeded.
func (h Health) Healthy() bool { return h.Status == "healthy" }

// HealthCheck pings the API, always over the network, and reports latency.
func (c *Client) HealthCheck(ctx context.Context) Health {
	c.cache.Delete(CacheKey("/ping", nil))

	start := c.clock.Now()
	_, err := c.Ping(ctx)
	h := Health{
		Status:       "healthy",
		ResponseTime: c.clock.Since(start),
		Timestamp:    c.clock.Now(),
		Cache:        c.CacheStats(),
	}
	if err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
		slog.Warn("Health check failed", slog.Any("error", err))
	}
	return h
}

func currencyOrDefault(currency string) string {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}

func orderOrDefault(order string) string {
	if order == "" {
		return DefaultOrder
	}
	return order
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
