package storage

import (
	"context"
	"fmt"

	"github.com/driftchat/summary-worker/internal/core/domain"
)

// SaveSummary persists a per-message summary. The write is idempotent on
// message id so at-least-once job delivery cannot duplicate records.
func (db *DB) SaveSummary(ctx context.Context, s *domain.Summary) error {
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO summaries (
			message_id, conversation_id, sender_id, summary_text, model,
			processing_time_ms, context_used, confidence, degraded,
			degraded_reason, moderation_passed, generated_at
		)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (message_id) DO NOTHING
	`,
		s.MessageID, s.ConversationID, s.SenderID, s.SummaryText, s.Model,
		s.ProcessingTimeMs, s.ContextUsed, s.Confidence, s.Degraded,
		s.DegradedReason, s.ModerationPassed, s.GeneratedAt,
	); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	return nil
}

// GetSummary loads the summary for a message, or nil when none exists.
func (db *DB) GetSummary(ctx context.Context, messageID string) (*domain.Summary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT message_id, COALESCE(conversation_id, ''), sender_id, summary_text, model,
		       processing_time_ms, context_used, confidence, degraded,
		       degraded_reason, moderation_passed, generated_at
		FROM summaries
		WHERE message_id = $1
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	defer rows.Close()

	summaries, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}

	if len(summaries) == 0 {
		return nil, nil
	}

	return &summaries[0], nil
}

// GetConversationSummaries returns every per-message summary for the
// conversation in ascending generation order, oldest first.
func (db *DB) GetConversationSummaries(ctx context.Context, conversationID string) ([]domain.Summary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT message_id, COALESCE(conversation_id, ''), sender_id, summary_text, model,
		       processing_time_ms, context_used, confidence, degraded,
		       degraded_reason, moderation_passed, generated_at
		FROM summaries
		WHERE conversation_id = $1
		ORDER BY generated_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation summaries: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// SaveConversationSummary persists a batch digest. Concurrent digests for the
// same batch key append idempotently.
func (db *DB) SaveConversationSummary(ctx context.Context, cs *domain.ConversationSummary) error {
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO conversation_summaries (
			id, conversation_id, batch_number, summary_text, messages_included,
			range_start, range_end, recent_messages_weight, older_messages_weight,
			confidence, model, processing_time_ms, generated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`,
		cs.ID, cs.ConversationID, cs.BatchNumber, cs.SummaryText, cs.MessagesIncluded,
		cs.RangeStart, cs.RangeEnd, cs.RecentMessagesWeight, cs.OlderMessagesWeight,
		cs.Confidence, cs.Model, cs.ProcessingTimeMs, cs.GeneratedAt,
	); err != nil {
		return fmt.Errorf("save conversation summary: %w", err)
	}

	return nil
}

type summaryRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanSummaries(rows summaryRows) ([]domain.Summary, error) {
	var summaries []domain.Summary

	for rows.Next() {
		var s domain.Summary
		if err := rows.Scan(
			&s.MessageID, &s.ConversationID, &s.SenderID, &s.SummaryText, &s.Model,
			&s.ProcessingTimeMs, &s.ContextUsed, &s.Confidence, &s.Degraded,
			&s.DegradedReason, &s.ModerationPassed, &s.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}

		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}

	return summaries, nil
}
