// File: internal/services/roles/config.go
package roles

import "fmt"

type Config struct {
	// Completion model; empty uses the provider default.
	Model string
	// Transcript bytes kept at the end of the conversation.
	MaxTranscriptChars int
}

func DefaultConfig() *Config {
	return &Config{MaxTranscriptChars: 9000}
}

func (c *Config) Validate() error {
	if c.MaxTranscriptChars < 200 {
		return fmt.Errorf("max transcript chars must be at least 200")
	}
	return nil
}
