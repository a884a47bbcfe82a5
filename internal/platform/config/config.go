// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	// LLM / embedding providers
	LLMAPIKey           string `env:"LLM_API_KEY,required"`
	LLMModel            string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	ModerationModel     string `env:"MODERATION_MODEL" envDefault:"text-moderation-latest"`
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`
	RateLimitRPS        int    `env:"RATE_LIMIT_RPS" envDefault:"5"`

	// Summarization
	SummaryMaxTokens int `env:"SUMMARY_MAX_TOKENS" envDefault:"30"`
	CaptionMaxTokens int `env:"CAPTION_MAX_TOKENS" envDefault:"75"`
	ContextTopK      int `env:"CONTEXT_TOP_K" envDefault:"3"`

	// Conversation digests
	DigestBatchSize  int `env:"DIGEST_BATCH_SIZE" envDefault:"30"`
	DigestMaxTokens  int `env:"DIGEST_MAX_TOKENS" envDefault:"150"`
	DigestQueueSize  int `env:"DIGEST_QUEUE_SIZE" envDefault:"256"`
	DigestMaxWorkers int `env:"DIGEST_MAX_WORKERS" envDefault:"4"`

	// Search API
	SearchDefaultResults int `env:"SEARCH_DEFAULT_RESULTS" envDefault:"10"`
	SearchMaxResults     int `env:"SEARCH_MAX_RESULTS" envDefault:"25"`

	// HTTP
	APIPort    int `env:"API_PORT" envDefault:"8080"`
	HealthPort int `env:"HEALTH_PORT" envDefault:"9090"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// Load reads configuration from the environment, consulting an optional .env
// file first.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DigestBatchSize < 1 {
		return fmt.Errorf("DIGEST_BATCH_SIZE must be at least 1, got %d", c.DigestBatchSize)
	}

	if c.SearchMaxResults < c.SearchDefaultResults {
		return fmt.Errorf("SEARCH_MAX_RESULTS (%d) must not be below SEARCH_DEFAULT_RESULTS (%d)",
			c.SearchMaxResults, c.SearchDefaultResults)
	}

	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}

	return nil
}
