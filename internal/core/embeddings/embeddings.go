// Package embeddings provides text embedding generation for the vector index
// and semantic retrieval.
package embeddings

import (
	"context"
)

// Client defines the interface for embedding operations.
type Client interface {
	// GetEmbedding generates an embedding for the given text. The returned
	// vector always has the configured dimension count.
	GetEmbedding(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the configured output dimensions.
	Dimensions() int

	// IsConfigured reports whether the provider has credentials.
	IsConfigured() bool
}
