// File: internal/services/live/config.go
package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// Policy decides what happens to recommendations during a live session.
type Policy string

const (
	// PolicyNormal surfaces each recommendation as it is produced.
	PolicyNormal Policy = "normal"
	// PolicyUnasked keeps recommendations pending until the session stops.
	PolicyUnasked Policy = "unasked"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyNormal, PolicyUnasked:
		return p, nil
	case "":
		return PolicyNormal, nil
	}
	return "", fmt.Errorf("%w: unknown recommendation policy %q", domain.ErrInvalidArgument, s)
}

type Config struct {
	Policy Policy
	// Identical finals closer together than this are committed once.
	DebounceWindow time.Duration
	// Minimum gap between surfaced recommendations under PolicyNormal.
	MinRecommendInterval time.Duration
	// Unasked questions returned in the stop bundle.
	MaxUnasked int
	// Transcript events buffered ahead of the worker.
	QueueSize int
	// Drop finals that look like transcriber noise.
	FilterIncoherent bool
}

func DefaultConfig() *Config {
	return &Config{
		Policy:               PolicyNormal,
		DebounceWindow:       2 * time.Second,
		MinRecommendInterval: 7 * time.Second,
		MaxUnasked:           10,
		QueueSize:            64,
		FilterIncoherent:     true,
	}
}

func (c *Config) Validate() error {
	if _, err := ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	if c.DebounceWindow < 0 || c.MinRecommendInterval < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	if c.MaxUnasked < 1 {
		return fmt.Errorf("max unasked must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1")
	}
	return nil
}
