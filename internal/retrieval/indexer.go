package retrieval

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	"github.com/driftchat/summary-worker/internal/core/embeddings"
)

// Store is the write side of the similarity index.
type Store interface {
	UpsertSummaryVector(ctx context.Context, rec *domain.VectorRecord) error
}

// Indexer embeds per-message summaries and writes them into the owning
// conversation's vector namespace.
type Indexer struct {
	embedder embeddings.Client
	store    Store
	logger   *zerolog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(embedder embeddings.Client, store Store, logger *zerolog.Logger) *Indexer {
	return &Indexer{embedder: embedder, store: store, logger: logger}
}

// IndexSummary embeds the summary text and upserts it keyed by message id.
// The upsert is idempotent, so re-delivered jobs cannot duplicate entries.
func (ix *Indexer) IndexSummary(ctx context.Context, msg *domain.Message, summaryText string) error {
	if summaryText == "" {
		return nil
	}

	embedding, err := ix.embedder.GetEmbedding(ctx, summaryText)
	if err != nil {
		return fmt.Errorf("embed summary: %w", err)
	}

	rec := &domain.VectorRecord{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SummaryText:    summaryText,
		MediaType:      msg.MediaType,
		Timestamp:      msg.SentAt,
		Embedding:      embedding,
	}

	if err := ix.store.UpsertSummaryVector(ctx, rec); err != nil {
		return fmt.Errorf("index summary: %w", err)
	}

	ix.logger.Debug().
		Str("message_id", msg.ID).
		Str("conversation_id", msg.ConversationID).
		Msg("summary indexed")

	return nil
}
