// File: internal/services/ai/openai_provider.go
package ai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI-compatible endpoint. Embeddings and
// completions may live behind different base URLs and keys.
type OpenAIProvider struct {
	config          *Config
	embeddingClient *openai.Client
	llmClient       *openai.Client
}

func NewOpenAIProvider(config *Config) *OpenAIProvider {
	llmConfig := openai.DefaultConfig(config.LLMKey)
	if config.LLMBaseURL != "" {
		llmConfig.BaseURL = config.LLMBaseURL
	}

	embeddingConfig := openai.DefaultConfig(config.EmbeddingKey)
	if config.EmbeddingBaseURL != "" {
		embeddingConfig.BaseURL = config.EmbeddingBaseURL
	}

	return &OpenAIProvider{
		config:          config,
		embeddingClient: openai.NewClientWithConfig(embeddingConfig),
		llmClient:       openai.NewClientWithConfig(llmConfig),
	}
}

func (p *OpenAIProvider) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.config.EmbeddingModel),
	}

	resp, err := p.embeddingClient.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError("embedding", p.config.EmbeddingModel, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, NewEmptyResponseError("embedding", p.config.EmbeddingModel)
	}
	return resp.Data[0].Embedding, nil
}

func (p *OpenAIProvider) GetCompletion(ctx context.Context, model, prompt string) (string, error) {
	resp, err := p.llmClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   p.config.MaxTokens,
			Temperature: p.config.Temperature,
			TopP:        p.config.TopP,
		},
	)
	if err != nil {
		return "", classifyOpenAIError("completion", model, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", NewEmptyResponseError("completion", model)
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(operation, model string, err error) *AIError {
	aiErr := NewProviderError(operation, "request failed", err)
	aiErr.Model = model

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		aiErr.Code = apiErr.HTTPStatusCode
		aiErr.Message = apiErr.Message
		if apiErr.HTTPStatusCode == 429 {
			aiErr.Type = ErrTypeRateLimit
		}
		if apiErr.HTTPStatusCode == 400 || apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 404 {
			aiErr.Type = ErrTypeValidation
		}
		return aiErr
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		aiErr.Type = ErrTypeNetwork
		aiErr.Code = reqErr.HTTPStatusCode
	}
	return aiErr
}
