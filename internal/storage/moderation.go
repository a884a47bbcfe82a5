package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/driftchat/summary-worker/internal/core/domain"
)

// SaveModerationRecord persists the verdict for flagged content. Records are
// immutable; repeated job delivery keeps the first write.
func (db *DB) SaveModerationRecord(ctx context.Context, rec *domain.ModerationRecord) error {
	categories, err := json.Marshal(rec.Categories)
	if err != nil {
		return fmt.Errorf("marshal moderation categories: %w", err)
	}

	scores, err := json.Marshal(rec.CategoryScores)
	if err != nil {
		return fmt.Errorf("marshal moderation scores: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO moderation_records (
			message_id, conversation_id, sender_id, flagged,
			categories, category_scores, content_sample, processed_at
		)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)
		ON CONFLICT (message_id) DO NOTHING
	`,
		rec.MessageID, rec.ConversationID, rec.SenderID, rec.Flagged,
		categories, scores, rec.ContentSample, rec.ProcessedAt,
	); err != nil {
		return fmt.Errorf("save moderation record: %w", err)
	}

	return nil
}
