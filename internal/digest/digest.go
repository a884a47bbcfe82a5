// Package digest tracks per-conversation message counts and generates the
// recency-weighted conversation summary once a batch threshold is crossed.
package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
	"github.com/driftchat/summary-worker/internal/core/llm"
)

// DigestConfidence is the fixed confidence stored on batch digests.
const DigestConfidence = 0.85

const (
	digestTemperature = 0.1

	digestSystemPromptFmt = "Produce a conversation digest of at most %d tokens from the weighted " +
		"message summaries below. Weight recent entries exponentially more than older ones. " +
		"Cover current topics, decisions, themes, and participant dynamics. " +
		"Be neutral and factual."
)

// Repository is the storage surface the aggregator needs.
type Repository interface {
	IncrementMessageCount(ctx context.Context, conversationID string) (*domain.Conversation, error)
	GetConversationSummaries(ctx context.Context, conversationID string) ([]domain.Summary, error)
	SaveConversationSummary(ctx context.Context, cs *domain.ConversationSummary) error
	AdvanceProcessedCount(ctx context.Context, conversationID string, from, to int) (bool, error)
	TryAcquireConversationLock(ctx context.Context, conversationID string) (bool, error)
	ReleaseConversationLock(ctx context.Context, conversationID string) error
}

// Dispatcher hands digest generation to a background worker so a slow or
// failing digest never delays message delivery.
type Dispatcher interface {
	Submit(name string, fn func(ctx context.Context)) error
}

// Metrics is the sink for aggregator counters.
type Metrics interface {
	DigestTriggered()
	DigestCompleted(status string)
	DigestDropped()
}

// Aggregator owns the batch-digest trigger and generation.
type Aggregator struct {
	repo       Repository
	completer  llm.Client
	dispatcher Dispatcher
	metrics    Metrics
	batchSize  int
	maxTokens  int
	model      string
	logger     *zerolog.Logger
}

// New creates an Aggregator.
func New(repo Repository, completer llm.Client, dispatcher Dispatcher, metrics Metrics,
	batchSize, maxTokens int, model string, logger *zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		repo:       repo,
		completer:  completer,
		dispatcher: dispatcher,
		metrics:    metrics,
		batchSize:  batchSize,
		maxTokens:  maxTokens,
		model:      model,
		logger:     logger,
	}
}

// OnMessageProcessed increments the conversation's message counter and, when
// a full batch has accumulated since the last digest, hands digest generation
// to the background dispatcher. The trigger is fire-and-forget: errors here
// never fail the originating message's delivery.
func (a *Aggregator) OnMessageProcessed(ctx context.Context, conversationID string) error {
	conv, err := a.repo.IncrementMessageCount(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("increment message count: %w", err)
	}

	if !conv.RAGEnabled {
		return nil
	}

	if conv.MessageCount-conv.LastProcessedMessageCount < a.batchSize {
		return nil
	}

	a.metrics.DigestTriggered()

	snapshot := *conv

	err = a.dispatcher.Submit("conversation-digest", func(taskCtx context.Context) {
		if err := a.GenerateBatchDigest(taskCtx, &snapshot); err != nil {
			a.metrics.DigestCompleted(StatusError)
			a.logger.Error().Err(err).
				Str("conversation_id", snapshot.ID).
				Msg("batch digest generation failed, will retry on next qualifying message")

			return
		}

		a.metrics.DigestCompleted(StatusOK)
	})
	if err != nil {
		if errors.Is(err, coreerrors.ErrQueueFull) {
			a.metrics.DigestDropped()
			a.logger.Warn().
				Str("conversation_id", conversationID).
				Msg("digest queue full, dropping trigger")

			return nil
		}

		return fmt.Errorf("submit digest task: %w", err)
	}

	return nil
}

// Digest completion statuses reported to the metrics sink.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// GenerateBatchDigest builds and stores one recency-weighted conversation
// summary. The processed-message counter advances only after the digest is
// durably stored, so a failed digest is retried by the next qualifying
// message. Concurrent invocations for the same conversation are serialized
// with a per-conversation lock; the counter never regresses.
func (a *Aggregator) GenerateBatchDigest(ctx context.Context, conv *domain.Conversation) error {
	acquired, err := a.repo.TryAcquireConversationLock(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("acquire conversation lock: %w", err)
	}

	if !acquired {
		// Another digest for this conversation is in flight; it will cover
		// the same summaries.
		a.metrics.DigestCompleted(StatusSkipped)

		return nil
	}

	defer func() {
		if err := a.repo.ReleaseConversationLock(context.WithoutCancel(ctx), conv.ID); err != nil {
			a.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("release conversation lock")
		}
	}()

	started := time.Now()

	summaries, err := a.repo.GetConversationSummaries(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("load summaries: %w", err)
	}

	if len(summaries) == 0 {
		return nil
	}

	weights := Weights(len(summaries))

	lines := make([]string, len(summaries))
	for i, s := range summaries {
		lines[i] = fmt.Sprintf("[Weight: %.2f] %s", weights[i], s.SummaryText)
	}

	text, err := a.completer.Complete(ctx, llm.CompletionRequest{
		System:      fmt.Sprintf(digestSystemPromptFmt, a.maxTokens),
		User:        strings.Join(lines, "\n"),
		MaxTokens:   a.maxTokens,
		Temperature: digestTemperature,
	})
	if err != nil {
		return fmt.Errorf("digest completion: %w", err)
	}

	batchNumber := (conv.MessageCount + a.batchSize - 1) / a.batchSize
	recentWeight, olderWeight := splitMeans(weights)

	cs := &domain.ConversationSummary{
		ID:                   fmt.Sprintf("%s_%d", conv.ID, batchNumber),
		ConversationID:       conv.ID,
		BatchNumber:          batchNumber,
		SummaryText:          text,
		MessagesIncluded:     len(summaries),
		RangeStart:           conv.LastProcessedMessageCount + 1,
		RangeEnd:             conv.MessageCount,
		RecentMessagesWeight: recentWeight,
		OlderMessagesWeight:  olderWeight,
		Confidence:           DigestConfidence,
		Model:                a.model,
		ProcessingTimeMs:     time.Since(started).Milliseconds(),
		GeneratedAt:          time.Now().UTC(),
	}

	if err := a.repo.SaveConversationSummary(ctx, cs); err != nil {
		return fmt.Errorf("save conversation summary: %w", err)
	}

	advanced, err := a.repo.AdvanceProcessedCount(ctx, conv.ID, conv.LastProcessedMessageCount, conv.MessageCount)
	if err != nil {
		return fmt.Errorf("advance processed count: %w", err)
	}

	if !advanced {
		a.logger.Info().
			Str("conversation_id", conv.ID).
			Int("batch_number", batchNumber).
			Msg("processed count already advanced by a concurrent digest")
	}

	a.logger.Info().
		Str("conversation_id", conv.ID).
		Int("batch_number", batchNumber).
		Int("messages_included", cs.MessagesIncluded).
		Msg("conversation digest stored")

	return nil
}
