package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/auth"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

type memCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	err  error
}

func (c *memCounter) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.hits == nil {
		c.hits = map[string]int64{}
	}
	c.hits[key]++
	return c.hits[key], nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRateLimit(t *testing.T) {
	counter := &memCounter{}
	h := RateLimit(counter, 2, time.Minute, nil)(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/bookings", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), model.Identity{UserID: "u1"}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.EqualValues(t, 3, counter.hits["ratelimit:user:u1"])
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := RateLimit(&memCounter{err: errors.New("connection refused")}, 1, time.Minute, nil)(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	assert.Equal(t, "ratelimit:ip:203.0.113.7", rateKey(req))

	req.RemoteAddr = "2001:db8::1"
	assert.Equal(t, "ratelimit:ip:2001:db8::1", rateKey(req))

	req = req.WithContext(auth.WithIdentity(req.Context(), model.Identity{UserID: "u1"}))
	assert.Equal(t, "ratelimit:user:u1", rateKey(req))
}

func TestCORS(t *testing.T) {
	h := CORS("https://app.example.com, https://admin.example.com")(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/bookings", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type,"+strings.ToLower(auth.TokenHeader))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/bookings", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type redisCalls struct {
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
}

func (r *redisCalls) Incr(ctx context.Context, key string) *redis.IntCmd {
	if r.incrErr != nil {
		return redis.NewIntResult(0, r.incrErr)
	}
	r.counts[key]++
	return redis.NewIntResult(r.counts[key], nil)
}

func (r *redisCalls) Expire(ctx context.Context, key string, d time.Duration) *redis.BoolCmd {
	r.expires[key] = d
	return redis.NewBoolResult(true, nil)
}

func TestRedisCounterSetsExpiryOnFirstHit(t *testing.T) {
	rc := &redisCalls{counts: map[string]int64{}, expires: map[string]time.Duration{}}
	c := NewRedisCounter(rc)
	ctx := context.Background()

	n, err := c.Hit(ctx, "ratelimit:user:u1", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, time.Minute, rc.expires["ratelimit:user:u1"])

	delete(rc.expires, "ratelimit:user:u1")
	n, err = c.Hit(ctx, "ratelimit:user:u1", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NotContains(t, rc.expires, "ratelimit:user:u1")
}

func TestRedisCounterError(t *testing.T) {
	rc := &redisCalls{incrErr: errors.New("connection refused")}
	_, err := NewRedisCounter(rc).Hit(context.Background(), "k", time.Minute)
	assert.ErrorContains(t, err, "connection refused")
}
