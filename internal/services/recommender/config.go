// File: internal/services/recommender/config.go
package recommender

import "fmt"

type Config struct {
	// Number of nearest cases whose questions are considered.
	CandidateCases int
	// Histories at or below this many utterances count as a first turn.
	MinContextUtterances int
	// Number of recent patient utterances folded into the query.
	ContextWindow int
}

func DefaultConfig() *Config {
	return &Config{
		CandidateCases:       5,
		MinContextUtterances: 2,
		ContextWindow:        3,
	}
}

func (c *Config) Validate() error {
	if c.CandidateCases < 1 {
		return fmt.Errorf("candidate cases must be at least 1")
	}
	if c.MinContextUtterances < 0 {
		return fmt.Errorf("min context utterances cannot be negative")
	}
	if c.ContextWindow < 1 {
		return fmt.Errorf("context window must be at least 1")
	}
	return nil
}
