package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	articQuotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "artic_quota_remaining",
		Help: "Requests remaining in the current catalog rate limit window",
	})

	articQuotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artic_quota_blocks_total",
		Help: "Total number of requests refused because the catalog quota was spent",
	})
)

// epochThreshold separates reset headers sent as a Unix timestamp from
// ones sent as seconds-until-reset.
const epochThreshold = 1_000_000_000

// Tracker records the catalog quota and gates requests on it.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.Mutex
	local QuotaState
}

// NewTracker creates a quota tracker. A nil redis client keeps state in memory.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		redis:  redisClient,
		logger: logger,
	}
	t.local.UpdateHealth()
	return t
}

// GetState returns the current quota state.
// An unknown, healthy state is returned until quota headers have been seen.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		state := t.local
		return &state, nil
	}

	values, err := t.redis.MGet(ctx, RedisKeyRemaining, RedisKeyLimit, RedisKeyResetTimestamp, RedisKeyLastUpdate).Result()
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}

	state := &QuotaState{}
	if values[0] == nil {
		t.logger.Debug().Msg("No quota state in Redis, assuming healthy")
		state.UpdateHealth()
		return state, nil
	}

	ints := make([]int64, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("quota state field %d: unexpected type %T", i, v)
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("quota state field %d: %w", i, err)
		}
		ints[i] = n
	}

	state.Known = true
	state.Remaining = int(ints[0])
	state.Limit = int(ints[1])
	state.ResetAt = time.Unix(ints[2], 0)
	state.LastUpdate = time.Unix(0, ints[3])
	state.UpdateHealth()

	return state, nil
}

// UpdateFromHeaders records the quota reported on a catalog response.
// Responses without X-RateLimit-Remaining are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit := 0
	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	now := time.Now()
	resetAt := now.Add(time.Minute)
	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		reset, err := strconv.ParseInt(resetStr, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		if reset >= epochThreshold {
			resetAt = time.Unix(reset, 0)
		} else {
			resetAt = now.Add(time.Duration(reset) * time.Second)
		}
	}

	state := QuotaState{
		Known:      true,
		Remaining:  remain,
		Limit:      limit,
		ResetAt:    resetAt,
		LastUpdate: now,
	}
	state.UpdateHealth()

	if err := t.store(ctx, state); err != nil {
		return err
	}

	articQuotaRemaining.Set(float64(remain))

	switch {
	case state.NeedsBlock():
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Catalog quota exhausted - requests will be refused until reset")
	case state.NearLimit():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Catalog quota running low")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", limit).
			Msg("Catalog quota updated")
	}

	return nil
}

func (t *Tracker) store(ctx context.Context, state QuotaState) error {
	if t.redis == nil {
		t.mu.Lock()
		t.local = state
		t.mu.Unlock()
		return nil
	}

	// Keys outlive the window slightly so a late reader still sees the reset time.
	ttl := state.TimeUntilReset() + 5*time.Second

	pipe := t.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyRemaining, state.Remaining, ttl)
	pipe.Set(ctx, RedisKeyLimit, state.Limit, ttl)
	pipe.Set(ctx, RedisKeyResetTimestamp, state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, state.LastUpdate.UnixNano(), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store quota state in redis: %w", err)
	}
	return nil
}

// ShouldAllowRequest reports whether a request may be sent now.
// It never waits: a spent quota refuses the request until the window resets.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get quota state: %w", err)
	}

	if state.NeedsBlock() {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("reset_in", state.TimeUntilReset()).
			Msg("Catalog quota exhausted - refusing request")
		articQuotaBlocksTotal.Inc()
		return false, nil
	}

	return true, nil
}
