package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/app")
	t.Setenv("LLM_API_KEY", "mock")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, "text-moderation-latest", cfg.ModerationModel)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.Equal(t, 30, cfg.SummaryMaxTokens)
	assert.Equal(t, 75, cfg.CaptionMaxTokens)
	assert.Equal(t, 3, cfg.ContextTopK)
	assert.Equal(t, 30, cfg.DigestBatchSize)
	assert.Equal(t, 150, cfg.DigestMaxTokens)
	assert.Equal(t, 10, cfg.SearchDefaultResults)
	assert.Equal(t, 25, cfg.SearchMaxResults)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 9090, cfg.HealthPort)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/app")

	// t.Setenv records the original value for cleanup, unset leaves the key
	// genuinely absent for the parse.
	t.Setenv("LLM_API_KEY", "x")
	_ = os.Unsetenv("LLM_API_KEY")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"zero batch size", "DIGEST_BATCH_SIZE", "0", "DIGEST_BATCH_SIZE"},
		{"search cap below default", "SEARCH_MAX_RESULTS", "5", "SEARCH_MAX_RESULTS"},
		{"negative dimensions", "EMBEDDING_DIMENSIONS", "-1", "EMBEDDING_DIMENSIONS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("POSTGRES_DSN", "postgres://localhost/app")
			t.Setenv("LLM_API_KEY", "mock")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
