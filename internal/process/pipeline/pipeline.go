// Package pipeline sequences the per-message processing stages and guarantees
// every job ends in a terminal message state. A failed stage degrades or, at
// worst, ends the message delivered without a summary; it never leaves the
// message stuck.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
	"github.com/driftchat/summary-worker/internal/process/moderate"
	"github.com/driftchat/summary-worker/internal/process/normalize"
	"github.com/driftchat/summary-worker/internal/process/summarize"
)

// Job statuses reported to callers and the metrics sink.
const (
	StatusSuccess          = "success"
	StatusNoContent        = "no_content"
	StatusBlocked          = "blocked"
	StatusAlreadyProcessed = "already_processed"
	StatusError            = "error"
)

// Degraded-stage labels.
const (
	StageCaption = "caption"
	StageSummary = "summary"
	StageIndex   = "index"
)

// Job is one inbound processing request. Jobs are delivered at least once;
// only MessageID is authoritative, the rest is advisory routing metadata from
// the event that created the message.
type Job struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId,omitempty"`
	SenderID       string    `json:"senderId,omitempty"`
	MediaType      string    `json:"mediaType,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

// Result is the terminal outcome of a job.
type Result struct {
	Status      string
	SummaryText string
	Degraded    bool
}

// Repository is the storage surface the orchestrator needs.
type Repository interface {
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	MarkMessageDelivered(ctx context.Context, id string) error
	MarkMessageDeliveredNoSummary(ctx context.Context, id string) error
	MarkMessageBlocked(ctx context.Context, id string) error
	SaveSummary(ctx context.Context, s *domain.Summary) error
	SaveModerationRecord(ctx context.Context, rec *domain.ModerationRecord) error
}

// Normalizer extracts processable text from a message.
type Normalizer interface {
	Normalize(ctx context.Context, msg *domain.Message) normalize.Content
}

// ModerationGate classifies normalized content.
type ModerationGate interface {
	Check(ctx context.Context, content string) (moderate.Decision, error)
}

// SummaryGenerator produces the per-message summary.
type SummaryGenerator interface {
	Summarize(ctx context.Context, req summarize.Request) summarize.Result
}

// SummaryIndexer writes summaries into the conversation vector namespace.
type SummaryIndexer interface {
	IndexSummary(ctx context.Context, msg *domain.Message, summaryText string) error
}

// Aggregator is notified after each successful delivery in a conversation.
type Aggregator interface {
	OnMessageProcessed(ctx context.Context, conversationID string) error
}

// Metrics is the sink for pipeline counters.
type Metrics interface {
	JobCompleted(status string, duration time.Duration)
	StageDegraded(stage string)
	Moderated(flagged bool)
}

// Pipeline is the per-message orchestrator.
type Pipeline struct {
	repo       Repository
	normalizer Normalizer
	gate       ModerationGate
	summarizer SummaryGenerator
	indexer    SummaryIndexer
	aggregator Aggregator
	metrics    Metrics
	model      string
	logger     *zerolog.Logger
}

// New creates a Pipeline.
func New(
	repo Repository,
	normalizer Normalizer,
	gate ModerationGate,
	summarizer SummaryGenerator,
	indexer SummaryIndexer,
	aggregator Aggregator,
	metrics Metrics,
	model string,
	logger *zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		repo:       repo,
		normalizer: normalizer,
		gate:       gate,
		summarizer: summarizer,
		indexer:    indexer,
		aggregator: aggregator,
		metrics:    metrics,
		model:      model,
		logger:     logger,
	}
}

// Process runs one message job to its terminal state. Stages run strictly in
// sequence; a not-found message aborts with no state change, any other failure
// still attempts the best-effort delivered-without-summary terminal write.
func (p *Pipeline) Process(ctx context.Context, job Job) (Result, error) {
	started := time.Now()

	result, err := p.process(ctx, job)

	status := result.Status
	if err != nil {
		status = StatusError
	}

	p.metrics.JobCompleted(status, time.Since(started))

	return result, err
}

func (p *Pipeline) process(ctx context.Context, job Job) (Result, error) {
	logger := p.logger.With().Str("message_id", job.MessageID).Logger()

	msg, err := p.repo.GetMessage(ctx, job.MessageID)
	if err != nil {
		if errors.Is(err, coreerrors.ErrMessageNotFound) {
			return Result{}, err
		}

		return Result{}, fmt.Errorf("fetch message: %w", err)
	}

	if msg.Terminal() || msg.SummaryGenerated {
		logger.Debug().Msg("message already processed, skipping")

		return Result{Status: StatusAlreadyProcessed}, nil
	}

	if msg.EphemeralOnly {
		logger.Debug().Msg("ephemeral message, skipping")

		return Result{Status: StatusAlreadyProcessed}, nil
	}

	content := p.normalizer.Normalize(ctx, msg)
	if content.CaptionDegraded {
		p.metrics.StageDegraded(StageCaption)
	}

	if content.Empty() {
		if err := p.repo.MarkMessageDeliveredNoSummary(ctx, msg.ID); err != nil {
			return Result{}, fmt.Errorf("mark no-content message delivered: %w", err)
		}

		logger.Info().Msg("no processable content, delivered without summary")

		return Result{Status: StatusNoContent}, nil
	}

	decision, err := p.gate.Check(ctx, content.FullText)
	if err != nil {
		// No verdict means the content cannot be cleared for summarization.
		return Result{}, p.failTerminal(ctx, msg.ID, err)
	}

	p.metrics.Moderated(decision.Flagged)

	if decision.Flagged {
		return p.block(ctx, msg, decision, logger)
	}

	conv, err := p.conversation(ctx, msg)
	if err != nil {
		return Result{}, p.failTerminal(ctx, msg.ID, err)
	}

	summaryStarted := time.Now()

	summary := p.summarizer.Summarize(ctx, summarize.Request{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        content.FullText,
		UseContext:     conv != nil && conv.RAGEnabled,
	})
	if summary.Degraded {
		p.metrics.StageDegraded(StageSummary)
	}

	record := &domain.Summary{
		MessageID:        msg.ID,
		ConversationID:   msg.ConversationID,
		SenderID:         msg.SenderID,
		SummaryText:      summary.Text,
		Model:            p.model,
		ProcessingTimeMs: time.Since(summaryStarted).Milliseconds(),
		ContextUsed:      summary.ContextUsed,
		Confidence:       summary.Confidence,
		Degraded:         summary.Degraded,
		DegradedReason:   summary.Reason,
		ModerationPassed: true,
		GeneratedAt:      time.Now().UTC(),
	}

	if err := p.repo.SaveSummary(ctx, record); err != nil {
		return Result{}, p.failTerminal(ctx, msg.ID, fmt.Errorf("save summary: %w", err))
	}

	if conv != nil && conv.RAGEnabled {
		if err := p.indexer.IndexSummary(ctx, msg, summary.Text); err != nil {
			p.metrics.StageDegraded(StageIndex)
			logger.Warn().Err(err).Msg("summary indexing failed, continuing without index entry")
		}
	}

	if err := p.repo.MarkMessageDelivered(ctx, msg.ID); err != nil {
		return Result{}, p.failTerminal(ctx, msg.ID, fmt.Errorf("mark message delivered: %w", err))
	}

	if msg.ConversationID != "" {
		// Fire-and-forget: the message is already delivered, a failed counter
		// bump or digest trigger must not fail the job.
		if err := p.aggregator.OnMessageProcessed(ctx, msg.ConversationID); err != nil {
			logger.Warn().Err(err).Msg("conversation aggregation failed")
		}
	}

	logger.Info().
		Bool("degraded", summary.Degraded).
		Float32("confidence", summary.Confidence).
		Msg("message processed")

	return Result{Status: StatusSuccess, SummaryText: summary.Text, Degraded: summary.Degraded}, nil
}

func (p *Pipeline) block(ctx context.Context, msg *domain.Message, decision moderate.Decision, logger zerolog.Logger) (Result, error) {
	if err := p.repo.SaveModerationRecord(ctx, decision.Record(msg)); err != nil {
		return Result{}, p.failTerminal(ctx, msg.ID, fmt.Errorf("save moderation record: %w", err))
	}

	if err := p.repo.MarkMessageBlocked(ctx, msg.ID); err != nil {
		return Result{}, p.failTerminal(ctx, msg.ID, fmt.Errorf("mark message blocked: %w", err))
	}

	logger.Warn().
		Strs("categories", decision.FlaggedCategories()).
		Msg("message blocked by moderation")

	return Result{Status: StatusBlocked}, nil
}

// conversation loads the owning conversation when the message has one. A
// missing conversation is a hard error: the aggregator counters and retrieval
// namespace have nowhere to live.
func (p *Pipeline) conversation(ctx context.Context, msg *domain.Message) (*domain.Conversation, error) {
	if msg.ConversationID == "" {
		return nil, nil
	}

	conv, err := p.repo.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}

	return conv, nil
}

// failTerminal attempts the best-effort delivered-without-summary write before
// surfacing the failure. Delivered with no summary beats stuck forever.
func (p *Pipeline) failTerminal(ctx context.Context, messageID string, cause error) error {
	if err := p.repo.MarkMessageDeliveredNoSummary(context.WithoutCancel(ctx), messageID); err != nil {
		p.logger.Error().Err(err).
			Str("message_id", messageID).
			Msg("best-effort terminal write failed")
	}

	return cause
}
