// File: internal/services/ai/service.go
package ai

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service wraps an embedding and a completion provider with per-call
// timeouts and retries.
type Service struct {
	embedder  EmbeddingProvider
	completer CompletionProvider
	config    *Config
	logger    Logger
}

func NewService(embedder EmbeddingProvider, completer CompletionProvider, config *Config, logger Logger) *Service {
	return &Service{
		embedder:  embedder,
		completer: completer,
		config:    config,
		logger:    logger,
	}
}

// NewServiceFromConfig picks providers according to the configuration.
func NewServiceFromConfig(ctx context.Context, config *Config, logger Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}

	var embedder EmbeddingProvider
	var completer CompletionProvider

	openAI := NewOpenAIProvider(config)
	switch config.EmbeddingProvider {
	case ProviderGenAI:
		g, err := NewGenAIProvider(ctx, config)
		if err != nil {
			return nil, err
		}
		embedder = g
	default:
		embedder = openAI
	}

	switch config.LLMProvider {
	case ProviderAnthropic:
		completer = NewAnthropicProvider(config)
	default:
		completer = openAI
	}

	logger.Info("AI service configured",
		"embedding_provider", config.EmbeddingProvider,
		"embedding_model", config.EmbeddingModel,
		"llm_provider", config.LLMProvider,
		"llm_model", config.LLMModel)
	return NewService(embedder, completer, config, logger), nil
}

// Model returns the default completion model.
func (s *Service) Model() string {
	return s.config.LLMModel
}

func (s *Service) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewValidationError("embedding", "text is empty")
	}
	var embedding []float32
	err := s.retryWithTimeout(ctx, "embedding", func(ctx context.Context) error {
		v, err := s.embedder.CreateEmbedding(ctx, text)
		if err != nil {
			return err
		}
		embedding = v
		return nil
	})
	return embedding, err
}

// GetCompletion uses the configured model when model is empty.
func (s *Service) GetCompletion(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = s.config.LLMModel
	}
	if strings.TrimSpace(prompt) == "" {
		return "", NewValidationError("completion", "prompt is empty")
	}
	var reply string
	err := s.retryWithTimeout(ctx, "completion", func(ctx context.Context) error {
		out, err := s.completer.GetCompletion(ctx, model, prompt)
		if err != nil {
			return err
		}
		reply = out
		return nil
	})
	return reply, err
}

func (s *Service) retryWithTimeout(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			if attempt > 1 {
				s.logger.Info("AI call succeeded after retry", "operation", operation, "attempts", attempt)
			}
			return nil
		}
		lastErr = err

		var aiErr *AIError
		if errors.As(err, &aiErr) && !aiErr.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return NewProviderError(operation, "context done", ctx.Err())
		}

		s.logger.Warn("AI call failed", "operation", operation, "attempt", attempt, "max_retries", s.config.MaxRetries, "error", err)
		if attempt < s.config.MaxRetries {
			select {
			case <-ctx.Done():
				return NewProviderError(operation, "context done during retry", ctx.Err())
			case <-time.After(time.Duration(attempt) * s.config.RetryDelay):
			}
		}
	}
	s.logger.Error("AI call failed after all retries", "operation", operation, "attempts", s.config.MaxRetries, "error", lastErr)
	return lastErr
}
