package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUMemo is a per-process relay memo with bounded size and TTL, for
// deployments without Redis.
type LRUMemo struct {
	cache *expirable.LRU[string, Entry]
}

// NewLRUMemo creates an in-memory memo holding at most maxSize entries.
func NewLRUMemo(maxSize int, ttl time.Duration) *LRUMemo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LRUMemo{cache: expirable.NewLRU[string, Entry](maxSize, nil, ttl)}
}

func (m *LRUMemo) Prefers(_ context.Context, normalized string) bool {
	if _, ok := m.cache.Get(Key(normalized)); ok {
		memoHitsTotal.WithLabelValues("memory").Inc()
		return true
	}
	memoMissesTotal.WithLabelValues("memory").Inc()
	return false
}

func (m *LRUMemo) Remember(_ context.Context, normalized string) {
	m.cache.Add(Key(normalized), Entry{RememberedAt: time.Now().UTC()})
}

func (m *LRUMemo) Forget(_ context.Context, normalized string) {
	m.cache.Remove(Key(normalized))
}

// Len returns the number of live entries.
func (m *LRUMemo) Len() int {
	return m.cache.Len()
}
