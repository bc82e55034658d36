package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	defaultRunScript = func(ctx context.Context, script *redis.Script, client redis.UniversalClient, keys []string, args ...any) (any, error) {
		return script.Run(ctx, client, keys, args...).Result()
	}

	runScript = defaultRunScript
)

// RedisLimiter is a sliding-window limiter whose history lives in Redis, for
// limiters shared across processes. Fail-open: Redis trouble allows the call
// with a warning rather than blocking work on the limiter backend.
type RedisLimiter struct {
	client   redis.UniversalClient
	name     string
	maxCalls int
	window   time.Duration
	policy   Policy
}

// slidingWindowLUA atomically trims expired members, counts the remainder,
// and appends the new timestamp when under the limit.
const slidingWindowLUA = `
local key = KEYS[1]
local maxCalls = tonumber(ARGV[1])
local windowMs = tonumber(ARGV[2])

-- Use Redis time to avoid client clock skew
local t = redis.call('TIME')
local nowMs = t[1] * 1000 + math.floor(t[2] / 1000)
local cutoff = nowMs - windowMs

redis.call('ZREMRANGEBYSCORE', key, '-inf', cutoff)
local count = redis.call('ZCARD', key)

if count < maxCalls then
  redis.call('ZADD', key, nowMs, nowMs .. '-' .. math.random(1000000))
  redis.call('PEXPIRE', key, windowMs * 2)
  return {1, 0}
end

-- Denied: report how long until the oldest entry expires
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local waitMs = 0
if oldest[2] then
  waitMs = (tonumber(oldest[2]) + windowMs) - nowMs
end
return {0, waitMs}
`

// NewRedisLimiter creates a shared limiter keyed by name. Returns nil if
// REDIS_URL is not set or the connection fails, so callers fall back to
// unbounded (fail-open) rather than erroring at construction.
func NewRedisLimiter(name string, maxCalls int, window time.Duration, policy Policy) *RedisLimiter {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		slog.Debug("REDIS_URL not set, shared rate limiting disabled")
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("Invalid Redis URL, shared rate limiting disabled",
			"error", err,
			"redis_url", maskRedisURL(redisURL),
		)
		return nil
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Warn("Redis connection test failed, shared rate limiting disabled",
			"error", err,
			"redis_url", maskRedisURL(redisURL),
		)
		return nil
	}

	slog.Info("Redis limiter connected",
		"name", name,
		"max_calls", maxCalls,
		"window", window,
	)
	return &RedisLimiter{
		client:   client,
		name:     name,
		maxCalls: maxCalls,
		window:   window,
		policy:   policy,
	}
}

// Acquire records an invocation in the shared window, waiting or rejecting
// per policy when full.
func (r *RedisLimiter) Acquire(ctx context.Context) error {
	if r == nil || r.maxCalls <= 0 {
		return nil
	}

	key := fmt.Sprintf("llmparse:window:%s", r.name)
	script := redis.NewScript(slidingWindowLUA)

	for {
		result, err := runScript(ctx, script, r.client, []string{key},
			r.maxCalls, r.window.Milliseconds())
		if err != nil {
			slog.Warn("Redis error in Acquire, failing open",
				"error", err,
				"limiter", r.name,
			)
			return nil
		}

		parts := result.([]any)
		allowed := parts[0].(int64) == 1
		if allowed {
			return nil
		}
		if r.policy == Reject {
			return ErrLimitExceeded
		}

		waitMs := parts[1].(int64)
		if waitMs <= 0 {
			waitMs = 10
		}
		if err := sleepCtx(ctx, time.Duration(waitMs)*time.Millisecond); err != nil {
			return err
		}
	}
}

// Close releases the Redis connection.
func (r *RedisLimiter) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// maskRedisURL masks credentials in a Redis URL for logging.
func maskRedisURL(redisURL string) string {
	parsed, err := url.Parse(redisURL)
	if err != nil {
		return "***"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.User(parsed.User.Username())
			return parsed.String() + ":***"
		}
	}
	return redisURL
}
