package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "memory", cfg.IndexBackend)
	assert.Equal(t, 6, cfg.SimulatedTurns)
	assert.Equal(t, 2*time.Hour, cfg.SessionIdleTTL)
	assert.Equal(t, "@every 5m", cfg.JanitorSchedule)
	assert.InDelta(t, 0.3, cfg.LLMTemperature, 1e-9)
	assert.False(t, cfg.IsProduction())
}

func TestLoadParsesTypedValues(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("SIMULATED_TURNS", "9")
	t.Setenv("SESSION_IDLE_TTL", "45m")
	t.Setenv("AI_LLM_TEMPERATURE", "0.7")
	t.Setenv("INDEX_BACKEND", "Pinecone")
	t.Setenv("LIVE_MAX_UNASKED", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.SimulatedTurns)
	assert.Equal(t, 45*time.Minute, cfg.SessionIdleTTL)
	assert.InDelta(t, 0.7, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, "pinecone", cfg.IndexBackend)
	assert.Equal(t, 10, cfg.LiveMaxUnasked)
}

func TestLoadRejectsUnknownIndexBackend(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("INDEX_BACKEND", "faiss")
	_, err := Load()
	assert.Error(t, err)
}

func TestProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("INDEX_BACKEND", "pinecone")
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("AI_EMBEDDING_KEY", "emb")
	t.Setenv("AI_LLM_KEY", "")
	t.Setenv("PINECONE_API_KEY", "")
	t.Setenv("PINECONE_INDEX_HOST", "host")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
	assert.Contains(t, err.Error(), "AI_LLM_KEY")
	assert.Contains(t, err.Error(), "PINECONE_API_KEY")
	assert.NotContains(t, err.Error(), "PINECONE_INDEX_HOST")
}
