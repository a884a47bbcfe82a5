package llm

import (
	"context"
	"strings"
)

// mockClient implements Client for local development without API credentials.
type mockClient struct{}

// NewMock creates a mock client. Completions echo a truncated input, captions
// and moderation return fixed safe values.
func NewMock() Client {
	return &mockClient{}
}

func (m *mockClient) IsConfigured() bool { return true }

func (m *mockClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	words := strings.Fields(req.User)
	if len(words) > 8 {
		words = words[:8]
	}

	return "Mock summary: " + strings.Join(words, " "), nil
}

func (m *mockClient) CaptionImage(_ context.Context, _ string, _ int) (string, error) {
	return "An image", nil
}

func (m *mockClient) Moderate(_ context.Context, _ string) (ModerationResult, error) {
	return ModerationResult{
		Flagged:        false,
		Categories:     map[string]bool{},
		CategoryScores: map[string]float64{},
	}, nil
}
