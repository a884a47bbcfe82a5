package embeddings

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
)

const (
	// DefaultDimensions matches the vector column width in the database schema.
	DefaultDimensions = 1536

	rateLimiterBurst = 5
)

// OpenAIConfig holds configuration for the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey     string
	Model      string // e.g. "text-embedding-3-small"
	Dimensions int
	RateLimit  int // requests per second
}

// OpenAIProvider implements Client using the OpenAI embeddings API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	dimensions  int
	configured  bool
	rateLimiter *rate.Limiter
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}

	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	return &OpenAIProvider{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		configured:  cfg.APIKey != "",
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), rateLimiterBurst),
	}
}

// Dimensions returns the configured output dimensions.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// IsConfigured reports whether the provider has credentials.
func (p *OpenAIProvider) IsConfigured() bool {
	return p.configured
}

// GetEmbedding generates an embedding for the given text.
func (p *OpenAIProvider) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, coreerrors.ErrEmptyResponse
	}

	return resp.Data[0].Embedding, nil
}
