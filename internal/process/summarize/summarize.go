// Package summarize produces the one-sentence neutral summary of a message,
// either context-free or grounded in summaries retrieved from the
// conversation's history.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	"github.com/driftchat/summary-worker/internal/core/llm"
)

// Confidence levels per summary mode.
const (
	ConfidenceBase     = 0.7
	ConfidenceContext  = 0.9
	ConfidenceDegraded = 0.5

	// FallbackText is the generic summary used when the completion service
	// fails. Callers distinguish it via Result.Degraded, not by matching the
	// string.
	FallbackText = "Message sent"

	unknownSenderName = "Someone"

	temperature = 0.1

	basicSystemPrompt = "Generate a one-sentence neutral summary of the following message. " +
		"Keep it under 30 tokens and less detailed than the original. Be factual and concise."

	contextualSystemPrompt = basicSystemPrompt + `

IMPORTANT: Use the conversation context below to:
1. Resolve pronouns (e.g., "he" -> "Tom") when unambiguous
2. Reference ongoing topics or themes
3. Maintain conversational coherence

Recent conversation context:
%s`
)

// ContextSource retrieves prior summaries relevant to a query. Failures
// degrade to an empty slice inside the source.
type ContextSource interface {
	Search(ctx context.Context, conversationID, query, excludeMessageID string, maxResults int) []domain.ContextResult
}

// Repository provides the participant-name lookup for context windows.
type Repository interface {
	GetParticipantNames(ctx context.Context, conversationID string) (map[string]string, error)
}

// Request describes one message to summarize.
type Request struct {
	MessageID      string
	ConversationID string
	SenderID       string
	Content        string
	UseContext     bool // retrieval enabled for the owning conversation
}

// Result is the summarizer output. Degraded marks the fallback path; the
// pipeline still delivers the message.
type Result struct {
	Text        string
	ContextUsed []string
	Confidence  float32
	Degraded    bool
	Reason      string
}

// Summarizer generates per-message summaries.
type Summarizer struct {
	completer llm.Client
	retriever ContextSource
	repo      Repository
	maxTokens int
	topK      int
	logger    *zerolog.Logger
}

// New creates a Summarizer.
func New(completer llm.Client, retriever ContextSource, repo Repository, maxTokens, topK int, logger *zerolog.Logger) *Summarizer {
	return &Summarizer{
		completer: completer,
		retriever: retriever,
		repo:      repo,
		maxTokens: maxTokens,
		topK:      topK,
		logger:    logger,
	}
}

// Summarize produces the summary for a message. A completion failure returns
// the degraded fallback rather than an error: summarization failure is
// recoverable and must not block delivery.
func (s *Summarizer) Summarize(ctx context.Context, req Request) Result {
	if req.UseContext && req.ConversationID != "" {
		return s.contextual(ctx, req)
	}

	return s.contextFree(ctx, req)
}

func (s *Summarizer) contextFree(ctx context.Context, req Request) Result {
	text, err := s.completer.Complete(ctx, llm.CompletionRequest{
		System:      basicSystemPrompt,
		User:        req.Content,
		MaxTokens:   s.maxTokens,
		Temperature: temperature,
	})
	if err != nil || text == "" {
		return s.fallback(req, err)
	}

	return Result{Text: text, Confidence: ConfidenceBase}
}

func (s *Summarizer) contextual(ctx context.Context, req Request) Result {
	contextResults := s.retriever.Search(ctx, req.ConversationID, req.Content, req.MessageID, s.topK)
	if len(contextResults) == 0 {
		// Soft degradation in the retriever; fall back to the context-free
		// mode at base confidence.
		return s.contextFree(ctx, req)
	}

	names := s.participantNames(ctx, req.ConversationID)

	window := make([]string, len(contextResults))
	for i, c := range contextResults {
		window[i] = fmt.Sprintf("[%s]: %s", displayName(c.SenderID, names), c.SummaryText)
	}

	text, err := s.completer.Complete(ctx, llm.CompletionRequest{
		System:      fmt.Sprintf(contextualSystemPrompt, strings.Join(window, "\n")),
		User:        fmt.Sprintf("Current message from %s: %s", displayName(req.SenderID, names), req.Content),
		MaxTokens:   s.maxTokens,
		Temperature: temperature,
	})
	if err != nil || text == "" {
		return s.fallback(req, err)
	}

	contextUsed := make([]string, len(contextResults))
	for i, c := range contextResults {
		contextUsed[i] = c.MessageID
	}

	return Result{Text: text, ContextUsed: contextUsed, Confidence: ConfidenceContext}
}

func (s *Summarizer) fallback(req Request, err error) Result {
	reason := "empty completion"
	if err != nil {
		reason = err.Error()
	}

	s.logger.Warn().Str("message_id", req.MessageID).Str("reason", reason).
		Msg("summary generation failed, using fallback")

	return Result{
		Text:       FallbackText,
		Confidence: ConfidenceDegraded,
		Degraded:   true,
		Reason:     reason,
	}
}

func (s *Summarizer) participantNames(ctx context.Context, conversationID string) map[string]string {
	names, err := s.repo.GetParticipantNames(ctx, conversationID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("conversation_id", conversationID).
			Msg("participant name lookup failed")

		return nil
	}

	return names
}

func displayName(senderID string, names map[string]string) string {
	if name, ok := names[senderID]; ok && name != "" {
		return name
	}

	return unknownSenderName
}
