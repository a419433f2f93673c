// Package ratelimit implements a client-side SWAPI request quota.
// Requests are counted in a fixed window stored in Redis so that every
// process sharing the Redis instance draws from the same budget, and a 429
// response with Retry-After blocks all requests until that instant.
package ratelimit

import (
	"time"
)

// Redis keys for quota state storage.
const (
	// RedisKeyWindowPrefix prefixes the per-window request counter. The
	// window start (unix seconds) is appended.
	RedisKeyWindowPrefix = "swapi:quota:window:"

	// RedisKeyBlockedUntil holds the unix millisecond timestamp until which the server
	// asked us to back off.
	RedisKeyBlockedUntil = "swapi:quota:blocked_until"
)

// WarningFraction is the share of the quota below which requests are
// throttled.
const WarningFraction = 0.1

// Quota is the number of requests allowed per window.
type Quota struct {
	Limit  int
	Window time.Duration
}

// DefaultQuota matches the public SWAPI allowance of 10,000 requests a day.
func DefaultQuota() Quota {
	return Quota{
		Limit:  10000,
		Window: 24 * time.Hour,
	}
}

// QuotaState is a snapshot of the shared quota.
type QuotaState struct {
	// Used is the number of requests counted in the current window.
	Used int `json:"used"`

	// Limit is the configured quota for the window.
	Limit int `json:"limit"`

	// ResetAt is when the current window ends.
	ResetAt time.Time `json:"reset_at"`

	// BlockedUntil is set after a 429 response. Zero means not blocked.
	BlockedUntil time.Time `json:"blocked_until"`
}

// Remaining returns how many requests are left in the window, never negative.
func (s *QuotaState) Remaining() int {
	if r := s.Limit - s.Used; r > 0 {
		return r
	}
	return 0
}

// IsBlocked reports whether a Retry-After block is active at now.
func (s *QuotaState) IsBlocked(now time.Time) bool {
	return now.Before(s.BlockedUntil)
}

// NeedsCriticalBlock returns true if requests must be refused.
func (s *QuotaState) NeedsCriticalBlock(now time.Time) bool {
	return s.Remaining() == 0 || s.IsBlocked(now)
}

// NeedsThrottling returns true when the window is close to exhausted.
func (s *QuotaState) NeedsThrottling(now time.Time) bool {
	if s.NeedsCriticalBlock(now) {
		return false
	}
	return float64(s.Remaining()) < float64(s.Limit)*WarningFraction
}

// TimeUntilReset returns the duration until requests are possible again:
// the end of a Retry-After block, or of the window when it is exhausted.
func (s *QuotaState) TimeUntilReset(now time.Time) time.Duration {
	until := s.ResetAt
	if s.IsBlocked(now) && (s.Remaining() > 0 || s.BlockedUntil.After(until)) {
		until = s.BlockedUntil
	}
	if d := until.Sub(now); d > 0 {
		return d
	}
	return 0
}
