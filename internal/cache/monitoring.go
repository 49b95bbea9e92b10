package cache

import (
	"context"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/princekumarofficial/chat-media-service/internal/utils/response"
)

// RateLimitPattern matches the relay token buckets.
const RateLimitPattern = "rate_limit:*"

const (
	scanBatch  = 500
	sampleSize = 10
)

// CacheStats describes what the gateway keeps in Redis.
type CacheStats struct {
	RedisConnected bool     `json:"redis_connected"`
	MemoKeys       []string `json:"memo_keys_sample"`
	MemoKeyCount   int      `json:"memo_keys"`
	RateLimitKeys  int      `json:"rate_limit_keys"`
	KeyCount       int      `json:"total_keys"`
}

// scanKeys walks the keyspace with SCAN so that large databases never block
// Redis the way KEYS would. At most limit keys are returned; all matches are
// counted.
func scanKeys(ctx context.Context, rdb *redis.Client, pattern string, limit int) ([]string, int, error) {
	var (
		keys  []string
		count int
	)
	iter := rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		count++
		if limit < 0 || len(keys) < limit {
			keys = append(keys, iter.Val())
		}
	}
	return keys, count, iter.Err()
}

// GetCacheStats reports relay memo and rate limit usage.
func GetCacheStats(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		stats := CacheStats{MemoKeys: []string{}}

		if err := redisClient.Ping(ctx).Err(); err != nil {
			response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
			return
		}
		stats.RedisConnected = true

		if sample, n, err := scanKeys(ctx, redisClient, RelayMemoPattern, sampleSize); err == nil {
			stats.MemoKeys = sample
			stats.MemoKeyCount = n
		}
		if _, n, err := scanKeys(ctx, redisClient, RateLimitPattern, 0); err == nil {
			stats.RateLimitKeys = n
		}
		if size, err := redisClient.DBSize(ctx).Result(); err == nil {
			stats.KeyCount = int(size)
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache stats retrieved", stats))
	}
}

// ClearCache deletes relay memo entries, or rate limit buckets with
// ?type=ratelimit, or both with ?type=all. Unrelated keys sharing the
// database are never touched.
func ClearCache(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var patterns []string
		switch r.URL.Query().Get("type") {
		case "ratelimit":
			patterns = []string{RateLimitPattern}
		case "all":
			patterns = []string{RelayMemoPattern, RateLimitPattern}
		default:
			patterns = []string{RelayMemoPattern}
		}

		var deleted int64
		for _, pattern := range patterns {
			keys, _, err := scanKeys(ctx, redisClient, pattern, -1)
			if err != nil {
				response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
				return
			}
			for start := 0; start < len(keys); start += scanBatch {
				end := min(start+scanBatch, len(keys))
				n, err := redisClient.Del(ctx, keys[start:end]...).Result()
				if err != nil {
					response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
					return
				}
				deleted += n
			}
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cache cleared", map[string]interface{}{
			"patterns":     patterns,
			"deleted_keys": deleted,
		}))
	}
}
