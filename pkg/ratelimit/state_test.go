package ratelimit

import (
	"testing"
	"time"
)

func TestQuotaState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *QuotaState
		maxAge   time.Duration
		expected bool
	}{
		{"fresh state", &QuotaState{LastUpdate: time.Now()}, 5 * time.Minute, false},
		{"stale state", &QuotaState{LastUpdate: time.Now().Add(-10 * time.Minute)}, 5 * time.Minute, true},
		{"just under max age", &QuotaState{LastUpdate: time.Now().Add(-4 * time.Minute)}, 5 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestQuotaState_NeedsBlock(t *testing.T) {
	future := time.Now().Add(30 * time.Second)
	past := time.Now().Add(-30 * time.Second)

	tests := []struct {
		name     string
		state    QuotaState
		expected bool
	}{
		{"unknown quota", QuotaState{Remaining: 0, ResetAt: future}, false},
		{"plenty remaining", QuotaState{Known: true, Remaining: 40, ResetAt: future}, false},
		{"at critical threshold", QuotaState{Known: true, Remaining: QuotaThresholdCritical, ResetAt: future}, false},
		{"spent", QuotaState{Known: true, Remaining: 0, ResetAt: future}, true},
		{"spent but window reset", QuotaState{Known: true, Remaining: 0, ResetAt: past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.NeedsBlock(); got != tt.expected {
				t.Errorf("NeedsBlock() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestQuotaState_NearLimit(t *testing.T) {
	future := time.Now().Add(30 * time.Second)

	tests := []struct {
		name     string
		state    QuotaState
		expected bool
	}{
		{"unknown quota", QuotaState{}, false},
		{"healthy", QuotaState{Known: true, Remaining: 50, ResetAt: future}, false},
		{"at warning threshold", QuotaState{Known: true, Remaining: QuotaThresholdWarning, ResetAt: future}, false},
		{"just below warning threshold", QuotaState{Known: true, Remaining: QuotaThresholdWarning - 1, ResetAt: future}, true},
		{"spent blocks instead", QuotaState{Known: true, Remaining: 0, ResetAt: future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.NearLimit(); got != tt.expected {
				t.Errorf("NearLimit() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestQuotaState_TimeUntilReset(t *testing.T) {
	state := &QuotaState{ResetAt: time.Now().Add(5 * time.Minute)}
	got := state.TimeUntilReset()
	if got < 5*time.Minute-time.Second || got > 5*time.Minute {
		t.Errorf("TimeUntilReset() = %v, want about 5m", got)
	}

	state = &QuotaState{ResetAt: time.Now().Add(-5 * time.Minute)}
	if got := state.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for past reset time", got)
	}
}

func TestQuotaState_UpdateHealth(t *testing.T) {
	tests := []struct {
		name     string
		state    QuotaState
		expected bool
	}{
		{"unknown is healthy", QuotaState{}, true},
		{"at warning threshold", QuotaState{Known: true, Remaining: QuotaThresholdWarning}, true},
		{"below warning threshold", QuotaState{Known: true, Remaining: QuotaThresholdWarning - 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.state.UpdateHealth()
			if tt.state.IsHealthy != tt.expected {
				t.Errorf("IsHealthy = %v, want %v", tt.state.IsHealthy, tt.expected)
			}
		})
	}
}

func TestThresholdConstants(t *testing.T) {
	if QuotaThresholdCritical >= QuotaThresholdWarning {
		t.Errorf("QuotaThresholdCritical (%d) must be less than QuotaThresholdWarning (%d)",
			QuotaThresholdCritical, QuotaThresholdWarning)
	}
}
