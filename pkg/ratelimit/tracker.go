package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapi_quota_remaining",
		Help: "Requests remaining in the current SWAPI quota window",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_quota_blocks_total",
		Help: "Total number of requests refused by the quota gate",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_quota_throttles_total",
		Help: "Total number of requests delayed because the quota is nearly exhausted",
	})
)

// DefaultThrottleDelay is how long a request waits when the quota is in
// the warning band.
const DefaultThrottleDelay = 1 * time.Second

// Tracker counts requests against a Quota and gates new ones.
type Tracker struct {
	redis  *redis.Client
	quota  Quota
	logger zerolog.Logger

	// ThrottleDelay is applied to requests in the warning band.
	ThrottleDelay time.Duration

	now func() time.Time
}

// NewTracker creates a new quota tracker.
func NewTracker(redisClient *redis.Client, quota Quota, logger zerolog.Logger) *Tracker {
	if quota.Limit <= 0 || quota.Window <= 0 {
		quota = DefaultQuota()
	}
	return &Tracker{
		redis:         redisClient,
		quota:         quota,
		logger:        logger,
		ThrottleDelay: DefaultThrottleDelay,
		now:           time.Now,
	}
}

func (t *Tracker) windowStart(now time.Time) time.Time {
	return now.Truncate(t.quota.Window)
}

func (t *Tracker) windowKey(now time.Time) string {
	return RedisKeyWindowPrefix + strconv.FormatInt(t.windowStart(now).Unix(), 10)
}

// GetState retrieves the current quota state from Redis without counting a
// request.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	now := t.now()

	used, err := t.redis.Get(ctx, t.windowKey(now)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get window counter: %w", err)
	}

	blockedUntil, err := t.blockedUntil(ctx)
	if err != nil {
		return nil, err
	}

	return &QuotaState{
		Used:         used,
		Limit:        t.quota.Limit,
		ResetAt:      t.windowStart(now).Add(t.quota.Window),
		BlockedUntil: blockedUntil,
	}, nil
}

func (t *Tracker) blockedUntil(ctx context.Context) (time.Time, error) {
	ts, err := t.redis.Get(ctx, RedisKeyBlockedUntil).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get blocked until: %w", err)
	}
	return time.UnixMilli(ts), nil
}

// ShouldAllowRequest counts one request against the window and reports
// whether it may proceed. Requests in the warning band are delayed by
// ThrottleDelay; the delay honours ctx.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	now := t.now()

	blockedUntil, err := t.blockedUntil(ctx)
	if err != nil {
		return false, err
	}
	if now.Before(blockedUntil) {
		t.logger.Warn().
			Time("blocked_until", blockedUntil).
			Msg("SWAPI asked us to back off - refusing request")
		quotaBlocksTotal.Inc()
		return false, nil
	}

	key := t.windowKey(now)
	pipe := t.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.quota.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("count request in redis: %w", err)
	}

	state := &QuotaState{
		Used:    int(incr.Val()),
		Limit:   t.quota.Limit,
		ResetAt: t.windowStart(now).Add(t.quota.Window),
	}
	quotaRemaining.Set(float64(state.Remaining()))

	if state.Used > state.Limit {
		t.logger.Error().
			Int("used", state.Used).
			Int("limit", state.Limit).
			Dur("wait_duration", state.TimeUntilReset(now)).
			Msg("SWAPI quota exhausted - refusing request")
		quotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling(now) && t.ThrottleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining()).
			Msg("SWAPI quota nearly exhausted - throttling request")
		quotaThrottlesTotal.Inc()

		timer := time.NewTimer(t.ThrottleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

// UpdateFromResponse records a server-side back-off. Only 429 responses
// carrying a Retry-After header have an effect.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode != http.StatusTooManyRequests {
		return nil
	}

	now := t.now()
	wait, ok := ParseRetryAfter(headers.Get("Retry-After"), now)
	if !ok || wait <= 0 {
		return nil
	}

	until := now.Add(wait)
	if err := t.redis.Set(ctx, RedisKeyBlockedUntil, until.UnixMilli(), wait).Err(); err != nil {
		return fmt.Errorf("store blocked until in redis: %w", err)
	}

	t.logger.Warn().
		Time("blocked_until", until).
		Dur("retry_after", wait).
		Msg("SWAPI rate limited us - blocking requests")

	return nil
}

// ParseRetryAfter understands both forms of the Retry-After header:
// delay-seconds and an HTTP date.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
