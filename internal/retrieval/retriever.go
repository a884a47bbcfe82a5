// Package retrieval performs semantic nearest-neighbor search over a
// conversation's vector namespace. It backs both the summarizer's context
// lookup and the interactive conversation-search endpoint.
package retrieval

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	"github.com/driftchat/summary-worker/internal/core/embeddings"
)

// Index is the namespace-scoped similarity index.
type Index interface {
	QuerySimilar(ctx context.Context, conversationID string, embedding []float32, topK int) ([]domain.ContextResult, error)
}

// Retriever embeds queries and searches the conversation namespace.
type Retriever struct {
	embedder embeddings.Client
	index    Index
	logger   *zerolog.Logger
}

// New creates a Retriever.
func New(embedder embeddings.Client, index Index, logger *zerolog.Logger) *Retriever {
	return &Retriever{embedder: embedder, index: index, logger: logger}
}

// Search returns up to maxResults prior summaries most similar to the query
// text, best match first, never including excludeMessageID.
//
// Any failure (embedding call, index unavailable) degrades to an empty result
// list: context retrieval is never fatal to the caller.
func (r *Retriever) Search(ctx context.Context, conversationID, query, excludeMessageID string, maxResults int) []domain.ContextResult {
	if conversationID == "" || query == "" || maxResults <= 0 {
		return nil
	}

	embedding, err := r.embedder.GetEmbedding(ctx, query)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("conversation_id", conversationID).
			Msg("query embedding failed, returning empty context")

		return nil
	}

	// Over-fetch by one so the excluded message cannot crowd out a result.
	matches, err := r.index.QuerySimilar(ctx, conversationID, embedding, maxResults+1)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("conversation_id", conversationID).
			Msg("vector query failed, returning empty context")

		return nil
	}

	results := make([]domain.ContextResult, 0, maxResults)

	for _, m := range matches {
		if m.MessageID == excludeMessageID {
			continue
		}

		results = append(results, m)
		if len(results) == maxResults {
			break
		}
	}

	return results
}
