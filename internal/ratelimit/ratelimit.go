// Package ratelimit gates inbound requests with fixed-window counters kept
// in a pluggable store.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CounterStore increments a fixed-window counter and reports when the
// window closes. An expired window restarts at one.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

type windowState struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in a bounded LRU whose entries expire after ttl.
// It is local to one process.
type MemoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, windowState]
	now   func() time.Time
}

// NewMemoryStore creates a store holding at most size keys. ttl should be at
// least the longest window used with it.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: expirable.NewLRU[string, windowState](size, nil, ttl),
		now:   time.Now,
	}
}

// Incr implements CounterStore.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st, ok := s.cache.Get(key)
	if !ok || !now.Before(st.resetAt) {
		st = windowState{resetAt: now.Add(window)}
	}
	st.count++
	s.cache.Add(key, st)
	return st.count, st.resetAt, nil
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Headers returns the X-RateLimit-* headers describing d.
func (d Decision) Headers() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(d.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(d.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(d.ResetAt.Unix(), 10),
	}
}

// Limiter allows at most limit requests per key per window.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

// NewLimiter creates a limiter. A limit of zero or less disables limiting.
func NewLimiter(store CounterStore, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow counts one request for key. Store errors fail open.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	if l == nil || l.limit <= 0 {
		return Decision{Allowed: true, Limit: 0, Remaining: -1}
	}

	count, resetAt, err := l.store.Incr(ctx, "ratelimit:"+key, l.window)
	if err != nil {
		slog.Warn("rate limit store failed, allowing request", "key", key, "error", err)
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}
	}

	remaining := max(l.limit-int(count), 0)
	return Decision{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
