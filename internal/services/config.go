// File: internal/services/config.go
package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds the session service settings.
type Config struct {
	// Sessions untouched for this long are evicted. Unfinished ones resume
	// from the store on their next request.
	IdleTTL time.Duration
	// Cron spec of the idle-session sweep.
	JanitorSpec string
	// Upper bound for one persistence write.
	PersistTimeout time.Duration
	// Live events buffered per session for the websocket writer.
	LiveEventBuffer int
}

func DefaultConfig() *Config {
	return &Config{
		IdleTTL:         2 * time.Hour,
		JanitorSpec:     "@every 5m",
		PersistTimeout:  10 * time.Second,
		LiveEventBuffer: 256,
	}
}

func (c *Config) Validate() error {
	if c.IdleTTL < time.Minute {
		return fmt.Errorf("idle ttl must be at least one minute")
	}
	if _, err := cron.ParseStandard(c.JanitorSpec); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", c.JanitorSpec, err)
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("persist timeout must be positive")
	}
	if c.LiveEventBuffer < 1 {
		return fmt.Errorf("live event buffer must be at least 1")
	}
	return nil
}
