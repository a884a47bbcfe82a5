package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/driftchat/summary-worker/internal/core/domain"
	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
)

// GetConversation loads a conversation by id. Returns ErrConversationNotFound
// when absent.
func (db *DB) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation

	err := db.Pool.QueryRow(ctx, `
		SELECT id, participant_ids, message_count, last_processed_message_count, rag_enabled
		FROM conversations
		WHERE id = $1
	`, id).Scan(
		&conv.ID, &conv.ParticipantIDs, &conv.MessageCount,
		&conv.LastProcessedMessageCount, &conv.RAGEnabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrConversationNotFound
		}

		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return &conv, nil
}

// IncrementMessageCount atomically bumps the processed-message counter and
// returns the conversation state after the increment.
func (db *DB) IncrementMessageCount(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation

	err := db.Pool.QueryRow(ctx, `
		UPDATE conversations
		SET message_count = message_count + 1
		WHERE id = $1
		RETURNING id, participant_ids, message_count, last_processed_message_count, rag_enabled
	`, id).Scan(
		&conv.ID, &conv.ParticipantIDs, &conv.MessageCount,
		&conv.LastProcessedMessageCount, &conv.RAGEnabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrConversationNotFound
		}

		return nil, fmt.Errorf("increment message count: %w", err)
	}

	return &conv, nil
}

// AdvanceProcessedCount moves last_processed_message_count forward only when
// it still holds the value the caller read. Returns false when a concurrent
// digest already advanced it; callers must not regress the counter.
func (db *DB) AdvanceProcessedCount(ctx context.Context, id string, from, to int) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE conversations
		SET last_processed_message_count = $3
		WHERE id = $1 AND last_processed_message_count = $2 AND last_processed_message_count < $3
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("advance processed count: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// GetParticipantNames resolves display names for all participants of a
// conversation. Unknown users map to "Unknown".
func (db *DB) GetParticipantNames(ctx context.Context, conversationID string) (map[string]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT p.participant_id, COALESCE(u.display_name, 'Unknown')
		FROM (
			SELECT unnest(participant_ids) AS participant_id
			FROM conversations
			WHERE id = $1
		) p
		LEFT JOIN users u ON u.id = p.participant_id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get participant names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan participant name: %w", err)
		}

		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant names: %w", err)
	}

	return names, nil
}
