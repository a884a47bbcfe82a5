// Package llm provides the completion, captioning, and moderation client used
// by the pipeline. A single provider (OpenAI) backs all three operations;
// calls are rate limited and guarded by a circuit breaker.
package llm

import (
	"context"
)

// CompletionRequest is a single-shot prompt with token and temperature controls.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// ModerationResult is the flattened output of the safety classifier.
type ModerationResult struct {
	Flagged        bool
	Categories     map[string]bool
	CategoryScores map[string]float64
}

// Client is the interface to the completion/moderation provider.
type Client interface {
	// Complete runs a single-shot chat completion and returns the text output.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// CaptionImage describes the image at the given URL in one short factual
	// sentence, using low-detail image fidelity for cost control.
	CaptionImage(ctx context.Context, imageURL string, maxTokens int) (string, error)

	// Moderate classifies the input against the provider's safety categories.
	Moderate(ctx context.Context, input string) (ModerationResult, error)

	// IsConfigured reports whether the client has credentials to reach the
	// provider. Used by the health endpoint.
	IsConfigured() bool
}
