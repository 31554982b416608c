package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Gabrielc476/dashboard-crypto/internal/domain"
	"github.com/Gabrielc476/dashboard-crypto/internal/infra"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL  = "https://api.coingecko.com/api/v3"
	DefaultTimeout  = 15 * time.Second
	DefaultCacheTTL = 5 * time.Minute

	apiKeyHeader = "x-cg-demo-api-key"
	maxBodyBytes = 16 << 20
)

// Options wires a Client. Nil collaborators are created with defaults,
// so tests can inject only what they observe.
type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	CacheTTL  time.Duration

	HTTPClient *http.Client
	Cache      *infra.Cache
	Limiter    *infra.RateLimiter
	Breaker    *infra.CircuitBreaker // nil disables the breaker
	Retrier    *infra.Retrier
	Clock      infra.Clock
}

// OptionsFromConfig maps the api section of cfg to Options.
func OptionsFromConfig(cfg *infra.Config, clock infra.Clock) Options {
	return Options{
		BaseURL:   cfg.API.BaseURL,
		APIKey:    cfg.API.APIKey,
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.API.Timeout,
		CacheTTL:  cfg.API.CacheTTL,
		Cache:     infra.NewCache(clock),
		Limiter:   infra.NewRateLimiter(cfg.API.RateLimitPerMinute, infra.DefaultRateLimitWindow, clock),
		Breaker:   infra.NewCircuitBreaker(cfg.API.CircuitBreaker, clock),
		Retrier: &infra.Retrier{
			MaxAttempts: cfg.API.MaxRetries,
			Backoff:     infra.Backoff{Base: cfg.API.RetryBase, Cap: cfg.API.RetryCap},
			Clock:       clock,
		},
		Clock: clock,
	}
}

// Client talks to the CoinGecko REST API.
// Every GET goes cache -> in-flight dedup -> breaker -> rate limiter -> network,
// and successful bodies are cached for CacheTTL.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	timeout   time.Duration
	ttl       time.Duration

	http    *http.Client
	cache   *infra.Cache
	limiter *infra.RateLimiter
	breaker *infra.CircuitBreaker
	retrier *infra.Retrier
	clock   infra.Clock

	flights      singleflight.Group
	networkCalls atomic.Int64
	cacheHits    atomic.Int64
}

// New creates a Client from opts.
func New(opts Options) *Client {
	clock := opts.Clock
	if clock == nil {
		clock = infra.NewRealClock()
	}
	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		ttl:       opts.CacheTTL,
		http:      opts.HTTPClient,
		cache:     opts.Cache,
		limiter:   opts.Limiter,
		breaker:   opts.Breaker,
		retrier:   opts.Retrier,
		clock:     clock,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = infra.DefaultUserAgent
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.ttl <= 0 {
		c.ttl = DefaultCacheTTL
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.cache == nil {
		c.cache = infra.NewCache(clock)
	}
	if c.limiter == nil {
		c.limiter = infra.NewRateLimiter(infra.DefaultRateLimitQuota, infra.DefaultRateLimitWindow, clock)
	}
	if c.retrier == nil {
		c.retrier = infra.NewRetrier(clock)
	}
	return c
}

// CacheKey is the cache and in-flight key of a request. Params are encoded in sorted order.
func CacheKey(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}

// Request returns the raw JSON body of GET endpoint?params, from cache when fresh.
// Concurrent identical requests share one network call.
func (c *Client) Request(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	key := CacheKey(endpoint, params)

	if body, ok := c.cache.Get(key); ok {
		c.cacheHits.Add(1)
		slog.Debug("Cache hit", slog.String("endpoint", endpoint))
		return body, nil
	}

	for {
		ch := c.flights.DoChan(key, func() (any, error) {
			return c.fetch(ctx, endpoint, params, key)
		})

		select {
		case <-ctx.Done():
			return nil, domain.NewCancelledError(endpoint, ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				// The flight belonged to a caller that gave up; ours is still wanted.
				if domain.IsCancelled(res.Err) && ctx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			return res.Val.([]byte), nil
		}
	}
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values, key string) ([]byte, error) {
	// A flight that finished just before ours may have filled the cache.
	if body, ok := c.cache.Get(key); ok {
		c.cacheHits.Add(1)
		return body, nil
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return nil, &domain.APIError{
			Kind:     domain.KindServerUnavailable,
			Endpoint: endpoint,
			Message:  fmt.Sprintf("upstream paused after repeated failures, retry in %s", c.breaker.RetryAfter().Round(time.Second)),
			Cause:    infra.ErrCircuitOpen,
			At:       c.clock.Now(),
		}
	}

	if err := c.limiter.Admit(ctx); err != nil {
		return nil, domain.NewCancelledError(endpoint, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+CacheKey(endpoint, params), nil)
	if err != nil {
		return nil, domain.NewValidationError(endpoint, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	requestID := uuid.NewString()
	start := c.clock.Now()
	c.networkCalls.Add(1)
	slog.Debug("API request",
		slog.String("request_id", requestID),
		slog.String("endpoint", endpoint))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewCancelledError(endpoint, ctx.Err())
		}
		c.recordFailure()
		return nil, domain.NewNetworkError(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewCancelledError(endpoint, ctx.Err())
		}
		c.recordFailure()
		return nil, domain.NewNetworkError(endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := domain.ErrorFromStatus(endpoint, resp.StatusCode, http.StatusText(resp.StatusCode))
		if apiErr.Retryable() {
			c.recordFailure()
		} else {
			c.recordSuccess()
		}
		slog.Warn("API request failed",
			slog.String("request_id", requestID),
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", c.clock.Since(start)))
		return nil, apiErr
	}

	if !json.Valid(body) {
		c.recordSuccess()
		return nil, domain.NewDecodeError(endpoint, resp.StatusCode, errors.New("body is not valid JSON"))
	}

	c.recordSuccess()
	c.cache.Set(key, body, c.ttl)
	slog.Debug("API response cached",
		slog.String("request_id", requestID),
		slog.String("endpoint", endpoint),
		slog.Int("bytes", len(body)),
		slog.Duration("elapsed", c.clock.Since(start)))

	return body, nil
}

func (c *Client) recordFailure() {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
}

func (c *Client) recordSuccess() {
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
}

// getJSON runs Request under the retrier and decodes the body into T.
// A body that does not decode is evicted so the next call refetches it.
func getJSON[T any](ctx context.Context, c *Client, endpoint string, params url.Values) (T, error) {
	var out T
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		body, err := c.Request(ctx, endpoint, params)
		if err != nil {
			return err
		}
		var v T
		if err := json.Unmarshal(body, &v); err != nil {
			c.cache.Delete(CacheKey(endpoint, params))
			return domain.NewDecodeError(endpoint, http.StatusOK, err)
		}
		out = v
		return nil
	})
	return out, err
}

// CacheStats is a snapshot of the client's shared resources.
type CacheStats struct {
	Size         int    `json:"size"`
	Requests     int    `json:"requests"` // Grants inside the current rate window
	Waiting      int    `json:"waiting"`
	NetworkCalls int64  `json:"network_calls"`
	CacheHits    int64  `json:"cache_hits"`
	Breaker      string `json:"breaker"`
}

// CacheStats reports cache size and rate limiter usage. Expired entries are
// dropped first so Size counts only live responses.
func (c *Client) CacheStats() CacheStats {
	if n := c.cache.Prune(); n > 0 {
		slog.Debug("Pruned expired responses", slog.Int("count", n))
	}
	s := CacheStats{
		Size:         c.cache.Size(),
		Requests:     c.limiter.InWindow(),
		Waiting:      c.limiter.Waiting(),
		NetworkCalls: c.networkCalls.Load(),
		CacheHits:    c.cacheHits.Load(),
		Breaker:      "DISABLED",
	}
	if c.breaker != nil {
		s.Breaker = c.breaker.GetState().String()
	}
	return s
}

// ClearCache drops every cached response and closes the breaker.
func (c *Client) ClearCache() {
	c.cache.Clear()
	if c.breaker != nil {
		c.breaker.Reset()
	}
	slog.Info("API cache cleared")
}
