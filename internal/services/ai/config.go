// File: internal/services/ai/config.go
package ai

import (
	"fmt"
	"time"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGenAI     = "genai"
)

type Config struct {
	// Embedding configuration
	EmbeddingProvider string
	EmbeddingKey      string
	EmbeddingBaseURL  string
	EmbeddingModel    string

	// LLM configuration
	LLMProvider string
	LLMKey      string
	LLMBaseURL  string
	LLMModel    string
	MaxTokens   int

	// Performance configuration
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Model parameters
	Temperature float32
	TopP        float32
}

func (c *Config) Validate() error {
	switch c.EmbeddingProvider {
	case ProviderOpenAI, ProviderGenAI:
	default:
		return fmt.Errorf("unsupported embedding provider %q", c.EmbeddingProvider)
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported LLM provider %q", c.LLMProvider)
	}
	if c.EmbeddingKey == "" {
		return fmt.Errorf("AI_EMBEDDING_KEY is required")
	}
	if c.LLMKey == "" {
		return fmt.Errorf("AI_LLM_KEY is required")
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("AI_EMBEDDING_MODEL is required")
	}
	if c.LLMModel == "" {
		return fmt.Errorf("AI_LLM_MODEL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		LLMProvider:       ProviderOpenAI,
		LLMModel:          "gpt-4o-mini",
		MaxTokens:         1024,
		Timeout:           60 * time.Second,
		MaxRetries:        3,
		RetryDelay:        2 * time.Second,
		Temperature:       0.3,
		TopP:              0.9,
	}
}
