package embeddings

import (
	"context"
	"hash/fnv"
)

// mockProvider produces deterministic pseudo-embeddings derived from the
// input text, for local development and tests.
type mockProvider struct {
	dimensions int
}

// NewMock creates a mock embedding client.
func NewMock(dimensions int) Client {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	return &mockProvider{dimensions: dimensions}
}

func (m *mockProvider) Dimensions() int    { return m.dimensions }
func (m *mockProvider) IsConfigured() bool { return true }

func (m *mockProvider) GetEmbedding(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33))/float32(1<<31) - 1
	}

	return vec, nil
}
