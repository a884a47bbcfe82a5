// Package moderate gates message content on the safety classifier. Moderation
// precedes summarization unconditionally: flagged content never reaches a
// summarization prompt or the vector index.
package moderate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	"github.com/driftchat/summary-worker/internal/core/llm"
)

// Truncated content sample kept on flagged records for review.
const contentSampleMaxLen = 200

// Decision is the gate output for one message.
type Decision struct {
	Flagged        bool
	Categories     map[string]bool
	CategoryScores map[string]float64
	ContentSample  string
}

// FlaggedCategories lists the category names that tripped the classifier.
func (d Decision) FlaggedCategories() []string {
	var flagged []string

	for name, hit := range d.Categories {
		if hit {
			flagged = append(flagged, name)
		}
	}

	return flagged
}

// Gate submits normalized content to the safety classifier.
type Gate struct {
	classifier llm.Client
	logger     *zerolog.Logger
}

// New creates a Gate.
func New(classifier llm.Client, logger *zerolog.Logger) *Gate {
	return &Gate{classifier: classifier, logger: logger}
}

// Check classifies the content. A classifier failure is returned to the
// caller: the pipeline cannot safely continue without a verdict.
func (g *Gate) Check(ctx context.Context, content string) (Decision, error) {
	result, err := g.classifier.Moderate(ctx, content)
	if err != nil {
		return Decision{}, fmt.Errorf("moderation check: %w", err)
	}

	decision := Decision{
		Flagged:        result.Flagged,
		Categories:     result.Categories,
		CategoryScores: result.CategoryScores,
		ContentSample:  truncate(content, contentSampleMaxLen),
	}

	if decision.Flagged {
		g.logger.Warn().
			Strs("categories", decision.FlaggedCategories()).
			Msg("content flagged by moderation")
	}

	return decision, nil
}

// Record builds the immutable moderation record for a flagged message.
func (d Decision) Record(msg *domain.Message) *domain.ModerationRecord {
	return &domain.ModerationRecord{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Flagged:        d.Flagged,
		Categories:     d.Categories,
		CategoryScores: d.CategoryScores,
		ContentSample:  d.ContentSample,
		ProcessedAt:    time.Now().UTC(),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	return s[:maxLen]
}
