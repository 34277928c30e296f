// File: internal/services/ai/genai_provider.go
package ai

import (
	"context"

	"google.golang.org/genai"
)

const defaultGenAIEmbeddingModel = "gemini-embedding-001"

// GenAIProvider creates embeddings with the Gemini API.
type GenAIProvider struct {
	client *genai.Client
	model  string
}

func NewGenAIProvider(ctx context.Context, config *Config) (*GenAIProvider, error) {
	if config.EmbeddingKey == "" {
		return nil, NewConfigError("GenAI API key is required")
	}
	model := config.EmbeddingModel
	if model == "" {
		model = defaultGenAIEmbeddingModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.EmbeddingKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewProviderError("init", "failed to create GenAI client", err)
	}
	return &GenAIProvider{client: client, model: model}, nil
}

func (p *GenAIProvider) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := p.client.Models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		aiErr := NewProviderError("embedding", "GenAI embed failed", err)
		aiErr.Model = p.model
		return nil, aiErr
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, NewEmptyResponseError("embedding", p.model)
	}
	return result.Embeddings[0].Values, nil
}
