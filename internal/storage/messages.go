package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/driftchat/summary-worker/internal/core/domain"
	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
)

// GetMessage loads a message by id. Returns ErrMessageNotFound when absent.
func (db *DB) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	var (
		msg            domain.Message
		conversationID *string
		text           *string
		mediaURL       *string
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, text, media_url, media_type, sent_at,
		       ephemeral_only, delivered, blocked, has_summary, summary_generated
		FROM messages
		WHERE id = $1
	`, id).Scan(
		&msg.ID, &conversationID, &msg.SenderID, &text, &mediaURL, &msg.MediaType,
		&msg.SentAt, &msg.EphemeralOnly, &msg.Delivered, &msg.Blocked,
		&msg.HasSummary, &msg.SummaryGenerated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrMessageNotFound
		}

		return nil, fmt.Errorf("get message: %w", err)
	}

	if conversationID != nil {
		msg.ConversationID = *conversationID
	}

	if text != nil {
		msg.Text = *text
	}

	if mediaURL != nil {
		msg.MediaURL = *mediaURL
	}

	return &msg, nil
}

// MarkMessageDelivered records the successful terminal state: delivered with
// a generated summary.
func (db *DB) MarkMessageDelivered(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE messages
		SET delivered = TRUE, has_summary = TRUE, summary_generated = TRUE
		WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("mark message delivered: %w", err)
	}

	return nil
}

// MarkMessageDeliveredNoSummary records the no-content and best-effort
// failure terminal states: delivered without a summary.
func (db *DB) MarkMessageDeliveredNoSummary(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE messages
		SET delivered = TRUE, summary_generated = FALSE
		WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("mark message delivered without summary: %w", err)
	}

	return nil
}

// MarkMessageBlocked records the policy-block terminal state.
func (db *DB) MarkMessageBlocked(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE messages
		SET blocked = TRUE, delivered = FALSE
		WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("mark message blocked: %w", err)
	}

	return nil
}
