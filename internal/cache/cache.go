package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/blake2b"
)

// Cache key patterns
const (
	RelayMemoKey     = "media:relay:%s" // media:relay:blake2b(normalized URL)
	RelayMemoPattern = "media:relay:*"
)

// DefaultTTL is how long a relay preference is remembered.
const DefaultTTL = 6 * time.Hour

var (
	memoHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_relay_memo_hits_total",
		Help: "Relay memo lookups that found an entry.",
	}, []string{"backend"})
	memoMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_relay_memo_misses_total",
		Help: "Relay memo lookups without an entry.",
	}, []string{"backend"})
)

// Entry is what the memo stores for a URL.
type Entry struct {
	RememberedAt time.Time `json:"remembered_at"`
}

// Key hashes a normalized URL into a fixed-size memo key, so that long
// signed URLs and inline payloads do not become cache keys themselves.
func Key(normalized string) string {
	sum := blake2b.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// RedisMemo shares relay preferences between all console sessions and
// service replicas.
type RedisMemo struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisMemo creates a Redis-backed memo.
func NewRedisMemo(redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisMemo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisMemo{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "relay_memo")),
	}
}

// Prefers reports whether normalized previously needed the relay. Redis
// errors count as a miss; delivery then simply tries direct first.
func (m *RedisMemo) Prefers(ctx context.Context, normalized string) bool {
	key := fmt.Sprintf(RelayMemoKey, Key(normalized))

	cached, err := m.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("relay memo lookup failed", slog.String("error", err.Error()))
		}
		memoMissesTotal.WithLabelValues("redis").Inc()
		return false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		memoMissesTotal.WithLabelValues("redis").Inc()
		return false
	}
	memoHitsTotal.WithLabelValues("redis").Inc()
	return true
}

// Remember records that normalized needed the relay.
func (m *RedisMemo) Remember(ctx context.Context, normalized string) {
	key := fmt.Sprintf(RelayMemoKey, Key(normalized))
	data, _ := json.Marshal(Entry{RememberedAt: time.Now().UTC()})
	if err := m.redis.Set(ctx, key, data, m.ttl).Err(); err != nil {
		m.logger.Warn("relay memo write failed", slog.String("error", err.Error()))
	}
}

// Forget drops the preference for normalized.
func (m *RedisMemo) Forget(ctx context.Context, normalized string) {
	key := fmt.Sprintf(RelayMemoKey, Key(normalized))
	if err := m.redis.Del(ctx, key).Err(); err != nil {
		m.logger.Warn("relay memo delete failed", slog.String("error", err.Error()))
	}
}
