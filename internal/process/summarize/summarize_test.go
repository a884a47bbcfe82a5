package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	"github.com/driftchat/summary-worker/internal/core/llm"
)

type fakeCompleter struct {
	text       string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.calls++
	f.lastSystem = req.System
	f.lastUser = req.User

	return f.text, f.err
}

func (f *fakeCompleter) CaptionImage(_ context.Context, _ string, _ int) (string, error) {
	return "", nil
}

func (f *fakeCompleter) Moderate(_ context.Context, _ string) (llm.ModerationResult, error) {
	return llm.ModerationResult{}, nil
}

func (f *fakeCompleter) IsConfigured() bool { return true }

type fakeContextSource struct {
	results []domain.ContextResult
}

func (f *fakeContextSource) Search(_ context.Context, _, _, _ string, _ int) []domain.ContextResult {
	return f.results
}

type fakeNameRepo struct {
	names map[string]string
	err   error
}

func (f *fakeNameRepo) GetParticipantNames(_ context.Context, _ string) (map[string]string, error) {
	return f.names, f.err
}

func newTestSummarizer(completer *fakeCompleter, source *fakeContextSource, repo *fakeNameRepo) *Summarizer {
	logger := zerolog.Nop()

	return New(completer, source, repo, 30, 3, &logger)
}

func contextualRequest() Request {
	return Request{
		MessageID:      "m9",
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "see you there at 6",
		UseContext:     true,
	}
}

func TestSummarizeContextFree(t *testing.T) {
	completer := &fakeCompleter{text: "Plans confirmed for the evening."}
	s := newTestSummarizer(completer, &fakeContextSource{}, &fakeNameRepo{})

	result := s.Summarize(context.Background(), Request{MessageID: "m1", Content: "see you at 6"})

	if result.Text != "Plans confirmed for the evening." {
		t.Errorf("text = %q", result.Text)
	}

	if result.Confidence != ConfidenceBase {
		t.Errorf("confidence = %v, want %v", result.Confidence, ConfidenceBase)
	}

	if result.Degraded {
		t.Error("unexpected degraded result")
	}

	if len(result.ContextUsed) != 0 {
		t.Errorf("context used = %v, want none", result.ContextUsed)
	}
}

func TestSummarizeContextual(t *testing.T) {
	completer := &fakeCompleter{text: "Alice confirmed dinner with Bob at 6."}
	source := &fakeContextSource{results: []domain.ContextResult{
		{MessageID: "m1", SummaryText: "Bob suggested dinner", SenderID: "u2", Timestamp: time.Now(), Score: 0.91},
		{MessageID: "m2", SummaryText: "Alice asked about timing", SenderID: "u1", Timestamp: time.Now(), Score: 0.88},
	}}
	repo := &fakeNameRepo{names: map[string]string{"u1": "Alice", "u2": "Bob"}}

	s := newTestSummarizer(completer, source, repo)

	result := s.Summarize(context.Background(), contextualRequest())

	if result.Confidence != ConfidenceContext {
		t.Errorf("confidence = %v, want %v", result.Confidence, ConfidenceContext)
	}

	if len(result.ContextUsed) != 2 || result.ContextUsed[0] != "m1" || result.ContextUsed[1] != "m2" {
		t.Errorf("context used = %v, want [m1 m2]", result.ContextUsed)
	}

	if !strings.Contains(completer.lastSystem, "[Bob]: Bob suggested dinner") {
		t.Errorf("system prompt missing named context line: %q", completer.lastSystem)
	}

	if !strings.Contains(completer.lastUser, "Current message from Alice:") {
		t.Errorf("user prompt missing sender name: %q", completer.lastUser)
	}
}

func TestSummarizeEmptyContextFallsBackToBase(t *testing.T) {
	completer := &fakeCompleter{text: "A plain summary."}
	s := newTestSummarizer(completer, &fakeContextSource{}, &fakeNameRepo{})

	result := s.Summarize(context.Background(), contextualRequest())

	if result.Confidence != ConfidenceBase {
		t.Errorf("confidence = %v, want %v", result.Confidence, ConfidenceBase)
	}

	if strings.Contains(completer.lastSystem, "conversation context") {
		t.Error("contextual prompt used with no retrieved context")
	}
}

func TestSummarizeCompletionFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("provider timeout")}
	s := newTestSummarizer(completer, &fakeContextSource{}, &fakeNameRepo{})

	result := s.Summarize(context.Background(), Request{MessageID: "m1", Content: "hello"})

	if result.Text != FallbackText {
		t.Errorf("text = %q, want %q", result.Text, FallbackText)
	}

	if result.Confidence != ConfidenceDegraded {
		t.Errorf("confidence = %v, want %v", result.Confidence, ConfidenceDegraded)
	}

	if !result.Degraded || result.Reason != "provider timeout" {
		t.Errorf("result = %+v, want degraded with reason", result)
	}
}

func TestSummarizeEmptyCompletionIsDegraded(t *testing.T) {
	s := newTestSummarizer(&fakeCompleter{text: ""}, &fakeContextSource{}, &fakeNameRepo{})

	result := s.Summarize(context.Background(), Request{MessageID: "m1", Content: "hello"})

	if !result.Degraded || result.Text != FallbackText {
		t.Errorf("result = %+v, want fallback", result)
	}
}

func TestSummarizeUnknownSenderName(t *testing.T) {
	completer := &fakeCompleter{text: "A summary."}
	source := &fakeContextSource{results: []domain.ContextResult{
		{MessageID: "m1", SummaryText: "earlier note", SenderID: "ghost"},
	}}
	repo := &fakeNameRepo{err: errors.New("lookup failed")}

	s := newTestSummarizer(completer, source, repo)

	s.Summarize(context.Background(), contextualRequest())

	if !strings.Contains(completer.lastSystem, "[Someone]: earlier note") {
		t.Errorf("system prompt = %q, want Someone fallback", completer.lastSystem)
	}
}
