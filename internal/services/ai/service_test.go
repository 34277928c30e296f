package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/logging"
)

type flakyProvider struct {
	failures int
	calls    int
	err      error
}

func (f *flakyProvider) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *flakyProvider) GetCompletion(ctx context.Context, model, prompt string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "reply from " + model, nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.Timeout = time.Second
	return cfg
}

func TestServiceRetriesTransientFailures(t *testing.T) {
	p := &flakyProvider{failures: 2, err: NewProviderError("embedding", "boom", errors.New("503"))}
	svc := NewService(p, p, testConfig(), logging.NewNop())

	v, err := svc.CreateEmbedding(context.Background(), "headache")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.Equal(t, 3, p.calls)
}

func TestServiceDoesNotRetryValidationErrors(t *testing.T) {
	p := &flakyProvider{failures: 5, err: NewValidationError("completion", "bad model")}
	svc := NewService(p, p, testConfig(), logging.NewNop())

	_, err := svc.GetCompletion(context.Background(), "m", "hello")
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)

	var aiErr *AIError
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, ErrTypeValidation, aiErr.Type)
}

func TestServiceGivesUpAfterMaxRetries(t *testing.T) {
	p := &flakyProvider{failures: 10, err: errors.New("network down")}
	svc := NewService(p, p, testConfig(), logging.NewNop())

	_, err := svc.GetCompletion(context.Background(), "", "hello")
	require.Error(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestServiceUsesDefaultModelAndRejectsEmptyInput(t *testing.T) {
	p := &flakyProvider{}
	cfg := testConfig()
	svc := NewService(p, p, cfg, logging.NewNop())

	out, err := svc.GetCompletion(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "reply from "+cfg.LLMModel, out)

	_, err = svc.CreateEmbedding(context.Background(), "   ")
	require.Error(t, err)
	_, err = svc.GetCompletion(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate())

	cfg.EmbeddingKey = "k"
	cfg.LLMKey = "k"
	require.NoError(t, cfg.Validate())

	cfg.LLMProvider = "bard"
	require.Error(t, cfg.Validate())
}
