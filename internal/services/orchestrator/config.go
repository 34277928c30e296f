// File: internal/services/orchestrator/config.go
package orchestrator

import "fmt"

type Config struct {
	// Clinician/patient exchanges generated after a simulated scenario is seeded.
	SimulatedTurns int
	// Per-turn event buffer for turn_based, live and finalize turns.
	EventBuffer int
}

func DefaultConfig() *Config {
	return &Config{
		SimulatedTurns: 6,
		EventBuffer:    8,
	}
}

func (c *Config) Validate() error {
	if c.SimulatedTurns < 1 || c.SimulatedTurns > 50 {
		return fmt.Errorf("simulated turns must be between 1 and 50")
	}
	if c.EventBuffer < 4 {
		return fmt.Errorf("event buffer must be at least 4")
	}
	return nil
}
