// File: internal/services/ai/interface.go
package ai

import "context"

// EmbeddingProvider handles text embeddings
type EmbeddingProvider interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// CompletionProvider handles single-shot completions
type CompletionProvider interface {
	GetCompletion(ctx context.Context, model, prompt string) (string, error)
}

// Logger is the logging contract this package needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}
