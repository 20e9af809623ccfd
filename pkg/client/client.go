// Package client provides the PokeAPI HTTP client with request pacing,
// optional caching, retries, and the page hydration the browser consumes.
package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/pokeapi-client/pkg/cache"
	"github.com/Sternrassler/pokeapi-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for PokeAPI client operations.
var (
	pokeapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_requests_total",
		Help: "Total PokeAPI requests by endpoint and status",
	}, []string{"endpoint", "status"})

	pokeapiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokeapi_request_duration_seconds",
		Help:    "PokeAPI request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	pokeapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_errors_total",
		Help: "Total PokeAPI errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the public PokeAPI v2 root.
const DefaultBaseURL = "https://pokeapi.co/api/v2"

// DefaultMaxPageLimit is the largest page PokeAPI serves in one list call.
const DefaultMaxPageLimit = 100

// Client is the PokeAPI client.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://pokeapi.co/api/v2"
	BaseURL string

	// User-Agent header sent with every request
	UserAgent string

	// Timeout bounds a single HTTP round trip
	Timeout time.Duration

	// Fan-out
	MaxConcurrency int           // Max parallel detail/species fetches per page
	ItemTimeout    time.Duration // Budget for one entry's detail + species fetch

	// Retry
	MaxRetries     int // Total attempts per request, including the first
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Pacing
	RequestsPerSecond float64
	Burst             int

	// Redis enables the response cache when set
	Redis            *redis.Client
	RevalidateWindow time.Duration

	// MaxPageLimit is the largest limit FetchPage accepts
	MaxPageLimit int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         userAgent,
		Timeout:           30 * time.Second,
		MaxConcurrency:    8,
		ItemTimeout:       15 * time.Second,
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		RequestsPerSecond: 20,
		Burst:             10,
		RevalidateWindow:  cache.DefaultRevalidateWindow,
		MaxPageLimit:      DefaultMaxPageLimit,
	}
}

// New creates a new PokeAPI client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base_url must be an absolute URL (got %q)", cfg.BaseURL)
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}

	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max_concurrency must be >= 1 (got %d)", cfg.MaxConcurrency)
	}

	if cfg.MaxPageLimit < 1 {
		cfg.MaxPageLimit = DefaultMaxPageLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "pokeapi-client").Logger()

	rateLimiter := ratelimit.NewTracker(ratelimit.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		ThrottleDelay:     ratelimit.DefaultConfig().ThrottleDelay,
	}, log.With().Str("component", "ratelimit").Logger())

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis, cfg.RevalidateWindow)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     baseURL,
		rateLimiter: rateLimiter,
		cache:       cacheManager,
		config:      cfg,
		logger:      logger,
	}, nil
}

func (c *Client) retryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = c.config.MaxRetries
	if c.config.InitialBackoff > 0 {
		cfg.InitialBackoff = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		cfg.MaxBackoff = c.config.MaxBackoff
	}
	return cfg
}

// Do performs an HTTP request with pacing, caching, and retries.
// Non-retryable error statuses are returned as responses for the caller to
// inspect; retryable ones that never succeed come back as errors.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := endpointLabel(req.URL.Path)

	startTime := time.Now()
	defer func() {
		pokeapiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check cache
	var cacheKey cache.Key
	var cachedEntry *cache.Entry
	if c.cache != nil {
		cacheKey = cache.KeyFromURL(req.URL)
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil && !entry.IsExpired():
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Serving fresh cached response")
			pokeapiRequestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			return cache.EntryToResponse(entry), nil
		case err == nil:
			cachedEntry = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	// Step 2: Revalidate stale entries
	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	// Step 3: Execute with pacing and retries
	var resp *http.Response

	retryErr := retryWithBackoff(ctx, c.retryConfig(), func() error {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			return fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Msg("Request blocked by rate limiter")
			pokeapiRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return ratelimit.ErrRateLimited
		}

		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("url", req.URL.String()).
			Msg("Executing PokeAPI request")

		r, err := c.httpClient.Do(req)
		if err != nil {
			if class := classifyError(err); class != "" {
				pokeapiErrorsTotal.WithLabelValues(string(class)).Inc()
			}
			pokeapiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			return err
		}

		if err := c.rateLimiter.UpdateFromHeaders(r.StatusCode, r.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}

		pokeapiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(r.StatusCode)).Inc()

		if r.StatusCode >= 400 {
			errClass := classifyStatus(r.StatusCode)
			pokeapiErrorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", r.StatusCode).
				Str("error_class", string(errClass)).
				Msg("PokeAPI request error")

			if shouldRetry(errClass) {
				// Drain so the connection can be reused
				_, _ = io.Copy(io.Discard, r.Body)
				r.Body.Close()
				return &HTTPError{
					StatusCode: r.StatusCode,
					ErrorClass: errClass,
					Message:    r.Status,
				}
			}
		}

		resp = r
		return nil
	}, classifyError)

	if retryErr != nil {
		return nil, retryErr
	}

	// Step 4: 304 Not Modified refreshes the stale entry
	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		resp.Body.Close()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")

		if err := c.cache.Refresh(ctx, cacheKey, cachedEntry, resp); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Step 5: Store successful responses
	if c.cache != nil && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			// Body is gone; report the read failure to the caller
			return nil, fmt.Errorf("read response body: %w", err)
		}
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// endpointLabel reduces a request path to its resource name so metric
// labels stay bounded: "/api/v2/pokemon-species/25/" becomes "pokemon-species".
func endpointLabel(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		if _, err := strconv.Atoi(segments[i]); err == nil {
			continue
		}
		return segments[i]
	}
	return "root"
}

// Close releases idle connections. A Redis client passed in Config is owned
// by the caller and stays open.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}

// RateLimitState returns the current upstream rate limit state.
func (c *Client) RateLimitState() ratelimit.RateLimitState {
	return c.rateLimiter.GetState()
}
