// Package ratelimit paces outgoing PokeAPI requests and tracks the rate
// limit state upstream reports through X-RateLimit-* and Retry-After headers,
// so the client backs off before it gets banned under the fair-use policy.
package ratelimit

import (
	"time"
)

// Response headers the tracker understands.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Thresholds for rate limit decisions.
const (
	// RemainingThresholdCritical blocks all requests when remaining requests fall below this value
	// and the window has not reset yet.
	RemainingThresholdCritical = 1

	// RemainingThresholdWarning applies throttling when remaining requests fall below this value.
	RemainingThresholdWarning = 10

	// RemainingThresholdHealthy indicates normal operation.
	RemainingThresholdHealthy = 50
)

// RateLimitState represents the current upstream rate limit state.
type RateLimitState struct {
	// Remaining is the number of requests upstream still allows in the current window.
	// Extracted from X-RateLimit-Remaining, or forced to 0 by a Retry-After response.
	Remaining int `json:"remaining"`

	// ResetAt is when the current window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last updated from response headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= RemainingThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// defaultState assumes a healthy window until upstream says otherwise.
func defaultState(now time.Time) RateLimitState {
	return RateLimitState{
		Remaining:  100,
		ResetAt:    now,
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// NeedsCriticalBlock returns true if requests should be blocked until ResetAt.
func (s *RateLimitState) NeedsCriticalBlock() bool {
	return s.Remaining < RemainingThresholdCritical && s.TimeUntilReset() > 0
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Remaining < RemainingThresholdWarning && !s.NeedsCriticalBlock() && s.TimeUntilReset() > 0
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// UpdateHealth updates the IsHealthy field based on current Remaining.
func (s *RateLimitState) UpdateHealth() {
	s.IsHealthy = s.Remaining >= RemainingThresholdHealthy
}
