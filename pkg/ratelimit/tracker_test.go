package ratelimit

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newMemoryTracker() *Tracker {
	return NewTracker(nil, zerolog.New(os.Stderr).Level(zerolog.Disabled))
}

func TestTracker_DefaultState(t *testing.T) {
	state, err := newMemoryTracker().GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Known {
		t.Error("default state should be unknown")
	}
	if !state.IsHealthy {
		t.Error("default state should be healthy")
	}
}

func TestUpdateFromHeaders_ValidHeaders(t *testing.T) {
	tests := []struct {
		name            string
		remaining       string
		limit           string
		reset           string
		expectedRemain  int
		expectedLimit   int
		expectedHealthy bool
		expectedResetIn time.Duration
	}{
		{"healthy relative reset", "55", "60", "30", 55, 60, true, 30 * time.Second},
		{"low quota", "4", "60", "12", 4, 60, false, 12 * time.Second},
		{"no limit header", "20", "", "60", 20, 0, true, 60 * time.Second},
		{"missing reset defaults to a minute", "20", "60", "", 20, 60, true, time.Minute},
		{"epoch reset", "20", "60", strconv.FormatInt(time.Now().Add(45*time.Second).Unix(), 10), 20, 60, true, 45 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newMemoryTracker()
			headers := http.Header{}
			headers.Set(HeaderRemaining, tt.remaining)
			if tt.limit != "" {
				headers.Set(HeaderLimit, tt.limit)
			}
			if tt.reset != "" {
				headers.Set(HeaderReset, tt.reset)
			}

			if err := tracker.UpdateFromHeaders(context.Background(), headers); err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			state, err := tracker.GetState(context.Background())
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}

			if !state.Known {
				t.Error("state should be known after headers")
			}
			if state.Remaining != tt.expectedRemain {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.expectedRemain)
			}
			if state.Limit != tt.expectedLimit {
				t.Errorf("Limit = %d, want %d", state.Limit, tt.expectedLimit)
			}
			if state.IsHealthy != tt.expectedHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.expectedHealthy)
			}

			resetIn := state.TimeUntilReset()
			if resetIn < tt.expectedResetIn-2*time.Second || resetIn > tt.expectedResetIn+time.Second {
				t.Errorf("TimeUntilReset() = %v, want about %v", resetIn, tt.expectedResetIn)
			}
		})
	}
}

func TestUpdateFromHeaders_InvalidHeaders(t *testing.T) {
	tests := []struct {
		name        string
		headers     map[string]string
		shouldError bool
	}{
		{"no quota headers", map[string]string{}, false},
		{"only reset header", map[string]string{HeaderReset: "60"}, false},
		{"invalid remaining", map[string]string{HeaderRemaining: "lots"}, true},
		{"invalid limit", map[string]string{HeaderRemaining: "5", HeaderLimit: "x"}, true},
		{"invalid reset", map[string]string{HeaderRemaining: "5", HeaderReset: "soon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newMemoryTracker()
			headers := http.Header{}
			for k, v := range tt.headers {
				headers.Set(k, v)
			}

			err := tracker.UpdateFromHeaders(context.Background(), headers)
			if tt.shouldError && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			state, _ := tracker.GetState(context.Background())
			if tt.shouldError && state.Known {
				t.Error("invalid headers must not change the state")
			}
		})
	}
}

func TestShouldAllowRequest(t *testing.T) {
	tests := []struct {
		name      string
		remaining string
		reset     string
		allowed   bool
	}{
		{"healthy", "50", "60", true},
		{"low but not spent", "3", "60", true},
		{"spent", "0", "60", false},
		{"spent with elapsed window", "0", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newMemoryTracker()
			headers := http.Header{}
			headers.Set(HeaderRemaining, tt.remaining)
			headers.Set(HeaderReset, tt.reset)
			if err := tracker.UpdateFromHeaders(context.Background(), headers); err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			start := time.Now()
			allowed, err := tracker.ShouldAllowRequest(context.Background())
			if err != nil {
				t.Fatalf("ShouldAllowRequest() error = %v", err)
			}
			if allowed != tt.allowed {
				t.Errorf("ShouldAllowRequest() = %v, want %v", allowed, tt.allowed)
			}
			if time.Since(start) > 100*time.Millisecond {
				t.Error("ShouldAllowRequest() must not wait")
			}
		})
	}
}
