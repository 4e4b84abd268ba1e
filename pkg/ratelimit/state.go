// Package ratelimit tracks the catalog's request quota from its
// X-RateLimit-* response headers and gates requests once the quota is spent.
//
// State lives in Redis when a client is configured, so several browser
// processes behind one egress IP share the same view of the quota, and in
// process memory otherwise.
package ratelimit

import (
	"time"
)

// Redis keys for quota state storage.
const (
	RedisKeyRemaining      = "artic:quota:remaining"
	RedisKeyLimit          = "artic:quota:limit"
	RedisKeyResetTimestamp = "artic:quota:reset_timestamp"
	RedisKeyLastUpdate     = "artic:quota:last_update"
)

// Response headers carrying the quota.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Thresholds for gating decisions.
const (
	// QuotaThresholdCritical blocks requests while fewer requests than this remain.
	QuotaThresholdCritical = 1

	// QuotaThresholdWarning logs a warning while fewer requests than this remain.
	QuotaThresholdWarning = 10
)

// QuotaState is the last quota reported by the catalog.
type QuotaState struct {
	// Known is false until the catalog has sent quota headers.
	Known bool `json:"known"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// Limit is the window size, 0 when the catalog does not send it.
	Limit int `json:"limit"`

	// ResetAt is when the window starts over.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was recorded.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when the quota is unknown or at least QuotaThresholdWarning.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge.
func (s *QuotaState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsBlock reports whether requests must be refused until ResetAt.
func (s *QuotaState) NeedsBlock() bool {
	return s.Known && s.Remaining < QuotaThresholdCritical && s.TimeUntilReset() > 0
}

// NearLimit reports whether the quota is low but not yet exhausted.
func (s *QuotaState) NearLimit() bool {
	return s.Known && s.Remaining < QuotaThresholdWarning && !s.NeedsBlock()
}

// TimeUntilReset returns the duration until the window resets, never negative.
func (s *QuotaState) TimeUntilReset() time.Duration {
	return max(time.Until(s.ResetAt), 0)
}

// UpdateHealth recomputes IsHealthy.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = !s.Known || s.Remaining >= QuotaThresholdWarning
}
