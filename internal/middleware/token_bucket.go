package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/Payphone-Digital/storefront/pkg/metrics"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// tokens refill in whole intervals; state lives in one hash per key
var tokenBucketScript = goredis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = interval_ms - (now_ms - last_refill)
	if retry_after_ms < 0 then retry_after_ms = 0 end
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

type TokenBucketConfig struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	Prefix         string
}

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// TokenBucket limits through a redis Lua script so every replica shares one
// budget. Without redis it degrades to a process-local sliding window; on a
// redis error it lets the request through.
type TokenBucket struct {
	rdb      *goredis.Client
	cfg      TokenBucketConfig
	fallback *SlidingWindow
	now      func() time.Time
}

func NewTokenBucket(rdb *goredis.Client, cfg TokenBucketConfig) *TokenBucket {
	if cfg.Prefix == "" {
		cfg.Prefix = constants.KeyPrefixRateLimit
	}
	if cfg.RefillTokens <= 0 {
		cfg.RefillTokens = cfg.Capacity
	}
	return &TokenBucket{
		rdb:      rdb,
		cfg:      cfg,
		fallback: NewSlidingWindow(cfg.Capacity, cfg.RefillInterval),
		now:      time.Now,
	}
}

func (b *TokenBucket) WithClock(now func() time.Time) *TokenBucket {
	b.now = now
	b.fallback.WithClock(now)
	return b
}

func (b *TokenBucket) Take(ctx context.Context, key string) (Decision, error) {
	if b.rdb == nil {
		allowed, remaining, retryAfter := b.fallback.Allow(key)
		return Decision{Allowed: allowed, Remaining: int64(remaining), RetryAfter: retryAfter}, nil
	}

	ttl := 2 * b.cfg.RefillInterval
	if ttl < time.Second {
		ttl = time.Second
	}
	args := []interface{}{
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.RefillTokens,
		b.cfg.RefillInterval.Milliseconds(),
		int64(ttl / time.Second),
	}

	vals, err := tokenBucketScript.Run(ctx, b.rdb, []string{b.cfg.Prefix + key}, args...).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket script: %w", err)
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("token bucket script: unexpected result %v", vals)
	}

	return Decision{
		Allowed:    asInt64(vals[0]) == 1,
		Remaining:  asInt64(vals[1]),
		RetryAfter: time.Duration(asInt64(vals[2])) * time.Millisecond,
	}, nil
}

// Middleware keys the bucket by limiter name and client ip
func (b *TokenBucket) Middleware(name string, m *metrics.Metrics, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := b.Take(c.Request.Context(), name+":"+c.ClientIP())
		if err != nil {
			logger.GetLogger().Warn("Rate limiter unavailable, allowing request",
				zap.String("limiter", name),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(b.cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))

		if !decision.Allowed {
			rejectTooMany(c, name, message, decision.RetryAfter, m)
			return
		}
		c.Next()
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
