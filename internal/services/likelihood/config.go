// File: internal/services/likelihood/config.go
package likelihood

import (
	"fmt"
	"strings"
)

type Config struct {
	// Number of similar cases retrieved per report.
	TopK int
	// Red flag whose presence marks a case as cancer-related.
	CancerRedFlag string
	// Illness substring (case-insensitive) that marks a case as cancer-related.
	CancerTerm string
	// Truncates the disease ranking when positive.
	MaxDiseases int
}

func DefaultConfig() *Config {
	return &Config{
		TopK:          10,
		CancerRedFlag: "Possible cancer-related bleeding",
		CancerTerm:    "cancer",
	}
}

func (c *Config) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top k must be at least 1")
	}
	if strings.TrimSpace(c.CancerTerm) == "" {
		return fmt.Errorf("cancer term is required")
	}
	if c.MaxDiseases < 0 {
		return fmt.Errorf("max diseases cannot be negative")
	}
	return nil
}
