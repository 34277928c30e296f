// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds rate limiting configuration
type Config struct {
	Window        time.Duration // Time window for counting requests
	MaxRequests   int           // Requests allowed per window
	CleanupPeriod time.Duration // How often to drop expired records
	BanDuration   time.Duration // Cool-down after exceeding the limit
}

// DefaultGenerationConfig limits the endpoints that call the language model.
func DefaultGenerationConfig() *Config {
	return &Config{
		Window:        time.Minute,
		MaxRequests:   30,
		CleanupPeriod: 10 * time.Minute,
		BanDuration:   2 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.Window <= 0 || c.CleanupPeriod <= 0 {
		return fmt.Errorf("window and cleanup period must be positive")
	}
	if c.MaxRequests < 1 {
		return fmt.Errorf("max requests must be at least 1")
	}
	if c.BanDuration < 0 {
		return fmt.Errorf("ban duration cannot be negative")
	}
	return nil
}

type record struct {
	count     int
	firstSeen time.Time
	bannedAt  time.Time
}

// Info describes the limiter state for one key after a call to Allow.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// MemoryRateLimiter is a fixed-window limiter keyed by clinician or client IP.
type MemoryRateLimiter struct {
	config  *Config
	clock   func() time.Time
	mu      sync.Mutex
	records map[string]*record
	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewMemoryRateLimiter(config *Config) (*MemoryRateLimiter, error) {
	return newLimiter(config, time.Now)
}

func newLimiter(config *Config, clock func() time.Time) (*MemoryRateLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	rl := &MemoryRateLimiter{
		config:  config,
		clock:   clock,
		records: make(map[string]*record),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl, nil
}

// Allow counts one request for key.
func (rl *MemoryRateLimiter) Allow(key string) Info {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock()
	rec, ok := rl.records[key]
	if !ok || (rec.bannedAt.IsZero() && now.Sub(rec.firstSeen) >= rl.config.Window) {
		rec = &record{firstSeen: now}
		rl.records[key] = rec
	}

	if !rec.bannedAt.IsZero() {
		if left := rl.config.BanDuration - now.Sub(rec.bannedAt); left > 0 {
			return Info{Limit: rl.config.MaxRequests, ResetTime: rec.bannedAt.Add(rl.config.BanDuration), RetryAfter: left}
		}
		rec = &record{firstSeen: now}
		rl.records[key] = rec
	}

	rec.count++
	reset := rec.firstSeen.Add(rl.config.Window)
	if rec.count > rl.config.MaxRequests {
		rec.bannedAt = now
		retry := rl.config.BanDuration
		if retry == 0 {
			retry = reset.Sub(now)
		}
		return Info{Limit: rl.config.MaxRequests, ResetTime: now.Add(retry), RetryAfter: retry}
	}
	return Info{
		Allowed:   true,
		Limit:     rl.config.MaxRequests,
		Remaining: rl.config.MaxRequests - rec.count,
		ResetTime: reset,
	}
}

func (rl *MemoryRateLimiter) cleanupLoop() {
	defer close(rl.done)
	ticker := time.NewTicker(rl.config.CleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *MemoryRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.clock()
	for key, rec := range rl.records {
		windowExpired := rec.bannedAt.IsZero() && now.Sub(rec.firstSeen) >= rl.config.Window
		banExpired := !rec.bannedAt.IsZero() && now.Sub(rec.bannedAt) >= rl.config.BanDuration
		if windowExpired || banExpired {
			delete(rl.records, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (rl *MemoryRateLimiter) Close() {
	rl.once.Do(func() { close(rl.stopCh) })
	<-rl.done
}

// GetClientIP extracts the real client IP from request
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := strings.TrimSpace(strings.Split(forwarded, ",")[0]); ip != "" {
			return ip
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
