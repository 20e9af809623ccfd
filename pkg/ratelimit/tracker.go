package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when upstream asked us to stop until the window resets.
var ErrRateLimited = errors.New("request blocked: upstream rate limit reached")

// Prometheus metrics for rate limit tracking.
var (
	pokeapiRateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pokeapi_rate_limit_remaining",
		Help: "Requests remaining in the current upstream rate limit window",
	})

	pokeapiRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokeapi_rate_limit_blocks_total",
		Help: "Total number of requests blocked until the upstream window resets",
	})

	pokeapiRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pokeapi_rate_limit_throttles_total",
		Help: "Total number of requests delayed because few requests remain",
	})
)

// Config holds the pacing configuration.
type Config struct {
	// RequestsPerSecond caps the outgoing request rate. <= 0 disables pacing.
	RequestsPerSecond float64

	// Burst is the number of requests allowed to go out back to back.
	Burst int

	// ThrottleDelay is the extra wait applied in the warning state.
	ThrottleDelay time.Duration
}

// DefaultConfig returns a pacing configuration that keeps well inside
// PokeAPI's fair-use policy while hydrating a 20-entry page quickly.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 20,
		Burst:             10,
		ThrottleDelay:     1 * time.Second,
	}
}

// Tracker paces requests and gates them on the upstream rate limit state.
// It is safe for concurrent use.
type Tracker struct {
	limiter *rate.Limiter
	config  Config
	logger  zerolog.Logger

	mu    sync.Mutex
	state RateLimitState
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Tracker{
		limiter: rate.NewLimiter(limit, burst),
		config:  cfg,
		logger:  logger,
		state:   defaultState(time.Now()),
	}
}

// GetState returns a copy of the current rate limit state.
func (t *Tracker) GetState() RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UpdateFromHeaders updates the state from a response's status and headers.
// A 429 or 503 carrying Retry-After blocks requests until it elapses.
// Responses without rate limit headers leave the state untouched.
func (t *Tracker) UpdateFromHeaders(status int, headers http.Header) error {
	now := time.Now()

	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		if retryAfter := headers.Get(HeaderRetryAfter); retryAfter != "" {
			wait, err := parseRetryAfter(retryAfter, now)
			if err != nil {
				return fmt.Errorf("parse %s header: %w", HeaderRetryAfter, err)
			}
			t.store(RateLimitState{
				Remaining:  0,
				ResetAt:    now.Add(wait),
				LastUpdate: now,
			})
			return nil
		}
	}

	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		// Header not present - PokeAPI only sends it from some edges
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}

	resetSeconds, err := strconv.Atoi(resetStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	t.store(RateLimitState{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	})
	return nil
}

func (t *Tracker) store(state RateLimitState) {
	state.UpdateHealth()

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	pokeapiRateLimitRemaining.Set(float64(state.Remaining))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Upstream rate limit reached - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Time("reset_at", state.ResetAt).
			Msg("Upstream rate limit low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}
}

// ShouldAllowRequest waits for a pacing slot and reports whether a request
// may go out. It returns false while upstream's window is exhausted, and
// delays by ThrottleDelay when few requests remain.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state := t.GetState()

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Upstream rate limit reached - blocking request")

		pokeapiRateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() && t.config.ThrottleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Msg("Upstream rate limit low - throttling request")

		pokeapiRateLimitThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.config.ThrottleDelay):
		}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("wait for pacing slot: %w", err)
	}

	return true, nil
}

// parseRetryAfter accepts both forms of Retry-After: delay seconds and HTTP-date.
func parseRetryAfter(value string, now time.Time) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative delay %d", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, err
	}
	if at.Before(now) {
		return 0, nil
	}
	return at.Sub(now), nil
}
