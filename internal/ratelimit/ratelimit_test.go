package ratelimit

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAllowBansAfterLimitAndRecovers(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	rl, err := newLimiter(&Config{Window: time.Minute, MaxRequests: 2, CleanupPeriod: time.Hour, BanDuration: 5 * time.Minute}, clock.Now)
	require.NoError(t, err)
	defer rl.Close()

	first := rl.Allow("clin-1")
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)
	assert.True(t, rl.Allow("clin-1").Allowed)

	denied := rl.Allow("clin-1")
	assert.False(t, denied.Allowed)
	assert.Equal(t, 5*time.Minute, denied.RetryAfter)
	assert.True(t, rl.Allow("clin-2").Allowed)

	clock.Advance(2 * time.Minute)
	assert.False(t, rl.Allow("clin-1").Allowed)

	clock.Advance(4 * time.Minute)
	assert.True(t, rl.Allow("clin-1").Allowed)
}

func TestWindowResets(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	rl, err := newLimiter(&Config{Window: time.Minute, MaxRequests: 1, CleanupPeriod: time.Hour}, clock.Now)
	require.NoError(t, err)
	defer rl.Close()

	assert.True(t, rl.Allow("k").Allowed)
	clock.Advance(time.Minute)
	assert.True(t, rl.Allow("k").Allowed)
}

func TestCleanupDropsExpiredRecords(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	rl, err := newLimiter(&Config{Window: time.Minute, MaxRequests: 1, CleanupPeriod: time.Hour, BanDuration: time.Minute}, clock.Now)
	require.NoError(t, err)
	defer rl.Close()

	rl.Allow("a")
	rl.Allow("b")
	rl.Allow("b")
	clock.Advance(2 * time.Minute)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.records)
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewMemoryRateLimiter(&Config{Window: time.Minute, CleanupPeriod: time.Minute})
	assert.Error(t, err)
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", GetClientIP(r))

	r.Header.Set("X-Real-IP", "172.16.0.2")
	assert.Equal(t, "172.16.0.2", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", GetClientIP(r))
}
