package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreWindow(t *testing.T) {
	s := NewMemoryStore(16, time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	n, reset, err := s.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, now.Add(time.Minute), reset)

	now = now.Add(30 * time.Second)
	n, reset2, _ := s.Incr(ctx, "k", time.Minute)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, reset, reset2, "window end is fixed")

	n, _, _ = s.Incr(ctx, "other", time.Minute)
	assert.Equal(t, int64(1), n, "keys are independent")

	now = now.Add(30 * time.Second)
	n, reset3, _ := s.Incr(ctx, "k", time.Minute)
	assert.Equal(t, int64(1), n, "window restarts at its end")
	assert.Equal(t, now.Add(time.Minute), reset3)
}

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter(NewMemoryStore(16, time.Minute), 2, time.Minute)
	ctx := context.Background()

	d := l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	assert.True(t, l.Allow(ctx, "a").Allowed)

	d = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	assert.True(t, l.Allow(ctx, "b").Allowed)
}

func TestLimiterDisabled(t *testing.T) {
	l := NewLimiter(nil, 0, time.Minute)
	for range 100 {
		assert.True(t, l.Allow(context.Background(), "a").Allowed)
	}
	var nilLimiter *Limiter
	assert.True(t, nilLimiter.Allow(context.Background(), "a").Allowed)
}

type brokenStore struct{}

func (brokenStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("down")
}

func TestLimiterFailsOpen(t *testing.T) {
	l := NewLimiter(brokenStore{}, 1, time.Minute)
	assert.True(t, l.Allow(context.Background(), "a").Allowed)
	assert.True(t, l.Allow(context.Background(), "a").Allowed)
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/therapy-chat", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "ip:10.1.2.3", ClientKey(r))

	r.Header.Set(ClientIDHeader, "clinic-7")
	assert.Equal(t, "client:clinic-7", ClientKey(r))
}

func TestMiddleware(t *testing.T) {
	l := NewLimiter(NewMemoryStore(16, time.Minute), 1, time.Minute)
	var limited int
	h := Middleware(l, func(*http.Request) { limited++ })(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		h.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := do()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.JSONEq(t, `{"error": "rate limit exceeded"}`, second.Body.String())
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, 1, limited)
}
