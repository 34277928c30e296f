// File: internal/services/ai/anthropic_provider.go
package ai

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider serves completions from the Anthropic Messages API.
// It has no embedding endpoint, so it only satisfies CompletionProvider.
type AnthropicProvider struct {
	config *Config
	client anthropic.Client
}

func NewAnthropicProvider(config *Config) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(config.LLMKey)}
	if config.LLMBaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.LLMBaseURL))
	}
	return &AnthropicProvider{
		config: config,
		client: anthropic.NewClient(opts...),
	}
}

func (p *AnthropicProvider) GetCompletion(ctx context.Context, model, prompt string) (string, error) {
	maxTokens := p.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		aiErr := NewProviderError("completion", "anthropic request failed", err)
		aiErr.Model = model
		return "", aiErr
	}

	var out strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", NewEmptyResponseError("completion", model)
	}
	return out.String(), nil
}
