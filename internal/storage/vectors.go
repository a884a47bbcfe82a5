package storage

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/driftchat/summary-worker/internal/core/domain"
)

// UpsertSummaryVector writes a summary embedding into the conversation's
// namespace. Upsert by message id keeps re-delivered jobs idempotent.
func (db *DB) UpsertSummaryVector(ctx context.Context, rec *domain.VectorRecord) error {
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO summary_vectors (
			message_id, conversation_id, sender_id, summary_text, media_type, ts, embedding
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO UPDATE
		SET summary_text = EXCLUDED.summary_text,
		    embedding    = EXCLUDED.embedding
	`,
		rec.MessageID, rec.ConversationID, rec.SenderID, rec.SummaryText,
		rec.MediaType, rec.Timestamp, pgvector.NewVector(rec.Embedding),
	); err != nil {
		return fmt.Errorf("upsert summary vector: %w", err)
	}

	return nil
}

// QuerySimilar returns the topK nearest summaries in the conversation's
// namespace by cosine similarity, best match first. The score is
// 1 - cosine distance.
func (db *DB) QuerySimilar(ctx context.Context, conversationID string, embedding []float32, topK int) ([]domain.ContextResult, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT message_id, summary_text, sender_id, media_type, ts, 1 - (embedding <=> $2) AS score
		FROM summary_vectors
		WHERE conversation_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`, conversationID, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("query similar vectors: %w", err)
	}
	defer rows.Close()

	var results []domain.ContextResult

	for rows.Next() {
		var r domain.ContextResult
		if err := rows.Scan(&r.MessageID, &r.SummaryText, &r.SenderID, &r.MediaType, &r.Timestamp, &r.Score); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}

		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector matches: %w", err)
	}

	return results, nil
}
