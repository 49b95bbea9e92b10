package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// takeScript refills the bucket for the elapsed time, then tries to take one
// token. It returns {allowed, remaining}.
var takeScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill_rate = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])
	local take = tonumber(ARGV[5])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1]) or capacity
	local last_refill = tonumber(bucket[2]) or now

	local tokens_to_add = math.floor(((now - last_refill) / window) * refill_rate)
	if tokens_to_add > 0 then
		tokens = math.min(capacity, tokens + tokens_to_add)
		last_refill = now
	end

	local allowed = 0
	if take == 1 and tokens > 0 then
		tokens = tokens - 1
		allowed = 1
	end

	if take == 1 then
		redis.call('HMSET', key, 'tokens', tokens, 'last_refill', last_refill)
		redis.call('EXPIRE', key, window * 2)
	end
	return {allowed, tokens}
`)

// TokenBucket rate-limits relay requests per client.
type TokenBucket struct {
	redis    *redis.Client
	capacity int64         // Maximum number of tokens
	refill   int64         // Tokens added per window
	window   time.Duration // Refill window
}

// NewTokenBucket creates a limiter refilling refillRate tokens per minute.
func NewTokenBucket(redisClient *redis.Client, capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		redis:    redisClient,
		capacity: capacity,
		refill:   refillRate,
		window:   time.Minute,
	}
}

// Capacity returns the bucket size.
func (tb *TokenBucket) Capacity() int64 {
	return tb.capacity
}

// Window returns the refill window.
func (tb *TokenBucket) Window() time.Duration {
	return tb.window
}

func key(scope, subject string) string {
	return fmt.Sprintf("rate_limit:%s:%s", scope, subject)
}

// Allow takes a token for subject within scope. It returns whether the
// request may proceed and how many tokens are left.
func (tb *TokenBucket) Allow(ctx context.Context, scope, subject string) (bool, int64, error) {
	allowed, remaining, err := tb.run(ctx, scope, subject, 1)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	return allowed, remaining, nil
}

// GetRemaining returns the tokens left for subject without taking one.
func (tb *TokenBucket) GetRemaining(ctx context.Context, scope, subject string) (int64, error) {
	_, remaining, err := tb.run(ctx, scope, subject, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining tokens: %w", err)
	}
	return remaining, nil
}

// Reset clears the bucket of subject within scope.
func (tb *TokenBucket) Reset(ctx context.Context, scope, subject string) error {
	return tb.redis.Del(ctx, key(scope, subject)).Err()
}

func (tb *TokenBucket) run(ctx context.Context, scope, subject string, take int) (bool, int64, error) {
	now := time.Now().Unix()
	result, err := takeScript.Run(ctx, tb.redis, []string{key(scope, subject)},
		tb.capacity, tb.refill, int64(tb.window.Seconds()), now, take).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected result type from rate limit script")
	}
	allowed, ok1 := values[0].(int64)
	remaining, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, fmt.Errorf("unexpected result type from rate limit script")
	}
	return allowed == 1, remaining, nil
}
