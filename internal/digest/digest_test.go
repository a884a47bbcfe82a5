package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
	"github.com/driftchat/summary-worker/internal/core/llm"
)

type fakeDigestRepo struct {
	conv *domain.Conversation

	summaries    []domain.Summary
	summariesErr error

	saved    []*domain.ConversationSummary
	saveErr  error
	advanced []int

	lockBusy bool
}

func (f *fakeDigestRepo) IncrementMessageCount(_ context.Context, _ string) (*domain.Conversation, error) {
	f.conv.MessageCount++
	snapshot := *f.conv

	return &snapshot, nil
}

func (f *fakeDigestRepo) GetConversationSummaries(_ context.Context, _ string) ([]domain.Summary, error) {
	return f.summaries, f.summariesErr
}

func (f *fakeDigestRepo) SaveConversationSummary(_ context.Context, cs *domain.ConversationSummary) error {
	if f.saveErr != nil {
		return f.saveErr
	}

	f.saved = append(f.saved, cs)

	return nil
}

func (f *fakeDigestRepo) AdvanceProcessedCount(_ context.Context, _ string, _, to int) (bool, error) {
	f.advanced = append(f.advanced, to)
	f.conv.LastProcessedMessageCount = to

	return true, nil
}

func (f *fakeDigestRepo) TryAcquireConversationLock(_ context.Context, _ string) (bool, error) {
	return !f.lockBusy, nil
}

func (f *fakeDigestRepo) ReleaseConversationLock(_ context.Context, _ string) error {
	return nil
}

type fakeCompleter struct {
	text     string
	err      error
	calls    int
	lastUser string
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.calls++
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

// inlineDispatcher runs submitted tasks synchronously so tests observe the
// digest side effects without goroutine coordination.
type inlineDispatcher struct {
	err error
}

func (d *inlineDispatcher) Submit(_ string, fn func(ctx context.Context)) error {
	if d.err != nil {
		return d.err
	}

	fn(context.Background())

	return nil
}

type recordingMetrics struct {
	triggered int
	dropped   int
	completed []string
}

func (m *recordingMetrics) DigestTriggered() { m.triggered++ }

func (m *recordingMetrics) DigestCompleted(status string) {
	m.completed = append(m.completed, status)
}

func (m *recordingMetrics) DigestDropped() { m.dropped++ }

func testSummaries(n int) []domain.Summary {
	summaries := make([]domain.Summary, n)
	for i := range summaries {
		summaries[i] = domain.Summary{
			MessageID:   fmt.Sprintf("m%d", i),
			SummaryText: fmt.Sprintf("summary %d", i),
			GeneratedAt: time.Date(2026, 8, 1, 0, i, 0, 0, time.UTC),
		}
	}

	return summaries
}

func newTestAggregator(repo *fakeDigestRepo, completer *fakeCompleter, dispatcher Dispatcher, metrics *recordingMetrics) *Aggregator {
	logger := zerolog.Nop()

	return New(repo, completer, dispatcher, metrics, 30, 150, "gpt-4o-mini", &logger)
}

func TestOnMessageProcessedBelowThreshold(t *testing.T) {
	repo := &fakeDigestRepo{conv: &domain.Conversation{ID: "c1", MessageCount: 10, RAGEnabled: true}}
	completer := &fakeCompleter{text: "digest"}
	metrics := &recordingMetrics{}

	agg := newTestAggregator(repo, completer, &inlineDispatcher{}, metrics)

	if err := agg.OnMessageProcessed(context.Background(), "c1"); err != nil {
		t.Fatalf("OnMessageProcessed: %v", err)
	}

	if metrics.triggered != 0 {
		t.Errorf("triggered = %d, want 0", metrics.triggered)
	}

	if completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0", completer.calls)
	}
}

func TestOnMessageProcessedTriggersAtBatchBoundary(t *testing.T) {
	repo := &fakeDigestRepo{
		conv:      &domain.Conversation{ID: "c1", MessageCount: 29, RAGEnabled: true},
		summaries: testSummaries(30),
	}
	completer := &fakeCompleter{text: "the digest"}
	metrics := &recordingMetrics{}

	agg := newTestAggregator(repo, completer, &inlineDispatcher{}, metrics)

	if err := agg.OnMessageProcessed(context.Background(), "c1"); err != nil {
		t.Fatalf("OnMessageProcessed: %v", err)
	}

	if metrics.triggered != 1 {
		t.Fatalf("triggered = %d, want 1", metrics.triggered)
	}

	if len(repo.saved) != 1 {
		t.Fatalf("saved %d digests, want 1", len(repo.saved))
	}

	cs := repo.saved[0]

	if cs.ID != "c1_1" {
		t.Errorf("digest ID = %q, want c1_1", cs.ID)
	}

	if cs.BatchNumber != 1 {
		t.Errorf("batch number = %d, want 1", cs.BatchNumber)
	}

	if cs.RangeStart != 1 || cs.RangeEnd != 30 {
		t.Errorf("range = [%d, %d], want [1, 30]", cs.RangeStart, cs.RangeEnd)
	}

	if cs.SummaryText != "the digest" {
		t.Errorf("summary text = %q", cs.SummaryText)
	}

	if cs.Confidence != DigestConfidence {
		t.Errorf("confidence = %v, want %v", cs.Confidence, DigestConfidence)
	}

	if len(repo.advanced) != 1 || repo.advanced[0] != 30 {
		t.Errorf("advanced = %v, want [30]", repo.advanced)
	}
}

func TestOnMessageProcessedSubsequentBatches(t *testing.T) {
	repo := &fakeDigestRepo{
		conv:      &domain.Conversation{ID: "c1", MessageCount: 30, LastProcessedMessageCount: 30, RAGEnabled: true},
		summaries: testSummaries(30),
	}
	completer := &fakeCompleter{text: "digest two"}
	metrics := &recordingMetrics{}

	agg := newTestAggregator(repo, completer, &inlineDispatcher{}, metrics)

	// Messages 31..59 accumulate without a trigger, 60 fires batch 2.
	for i := 0; i < 30; i++ {
		if err := agg.OnMessageProcessed(context.Background(), "c1"); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
	}

	if metrics.triggered != 1 {
		t.Fatalf("triggered = %d, want 1", metrics.triggered)
	}

	if len(repo.saved) != 1 {
		t.Fatalf("saved %d digests, want 1", len(repo.saved))
	}

	if repo.saved[0].BatchNumber != 2 {
		t.Errorf("batch number = %d, want 2", repo.saved[0].BatchNumber)
	}

	if repo.saved[0].RangeStart != 31 || repo.saved[0].RangeEnd != 60 {
		t.Errorf("range = [%d, %d], want [31, 60]", repo.saved[0].RangeStart, repo.saved[0].RangeEnd)
	}
}

func TestOnMessageProcessedRetrievalDisabled(t *testing.T) {
	repo := &fakeDigestRepo{
		conv:      &domain.Conversation{ID: "c1", MessageCount: 29, RAGEnabled: false},
		summaries: testSummaries(30),
	}
	metrics := &recordingMetrics{}

	agg := newTestAggregator(repo, &fakeCompleter{text: "digest"}, &inlineDispatcher{}, metrics)

	if err := agg.OnMessageProcessed(context.Background(), "c1"); err != nil {
		t.Fatalf("OnMessageProcessed: %v", err)
	}

	if metrics.triggered != 0 {
		t.Errorf("triggered = %d, want 0", metrics.triggered)
	}
}

func TestOnMessageProcessedQueueFull(t *testing.T) {
	repo := &fakeDigestRepo{
		conv:      &domain.Conversation{ID: "c1", MessageCount: 29, RAGEnabled: true},
		summaries: testSummaries(30),
	}
	metrics := &recordingMetrics{}

	agg := newTestAggregator(repo, &fakeCompleter{text: "digest"}, &inlineDispatcher{err: coreerrors.ErrQueueFull}, metrics)

	// A full queue drops the trigger without failing the message job.
	if err := agg.OnMessageProcessed(context.Background(), "c1"); err != nil {
		t.Fatalf("OnMessageProcessed: %v", err)
	}

	if metrics.dropped != 1 {
		t.Errorf("dropped = %d, want 1", metrics.dropped)
	}

	if len(repo.saved) != 0 {
		t.Errorf("saved %d digests, want 0", len(repo.saved))
	}
}

func TestGenerateBatchDigestLockBusy(t *testing.T) {
	repo := &fakeDigestRepo{
		conv:      &domain.Conversation{ID: "c1", MessageCount: 30, RAGEnabled: true},
		summaries: testSummaries(30),
		lockBusy:  true,
	}
	completer := &fakeCompleter{text: "digest"}
	metrics := &recordingMetrics{}

	agg := newTestAggregator(repo, completer, &inlineDispatcher{}, metrics)

	if err := agg.GenerateBatchDigest(context.Background(), repo.conv); err != nil {
		t.Fatalf("GenerateBatchDigest: %v", err)
	}

	if completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0", completer.calls)
	}

	if len(metrics.completed) != 1 || metrics.completed[0] != StatusSkipped {
		t.Errorf("completed = %v, want [%s]", metrics.completed, StatusSkipped)
	}
}

func TestGenerateBatchDigestCompletionFailure(t *testing.T) {
	repo := &fakeDigestRepo{
		conv:      &domain.Conversation{ID: "c1", MessageCount: 30, RAGEnabled: true},
		summaries: testSummaries(30),
	}
	completer := &fakeCompleter{err: errors.New("provider down")}
	metrics := &recordingMetrics{}

	agg := newTestAggregator(repo, completer, &inlineDispatcher{}, metrics)

	if err := agg.GenerateBatchDigest(context.Background(), repo.conv); err == nil {
		t.Fatal("expected error")
	}

	// The counter must not advance on failure so the next qualifying message
	// retries the digest.
	if len(repo.advanced) != 0 {
		t.Errorf("advanced = %v, want none", repo.advanced)
	}

	if len(repo.saved) != 0 {
		t.Errorf("saved %d digests, want 0", len(repo.saved))
	}
}

func TestGenerateBatchDigestWeightedPrompt(t *testing.T) {
	repo := &fakeDigestRepo{
		conv:      &domain.Conversation{ID: "c1", MessageCount: 30, RAGEnabled: true},
		summaries: testSummaries(5),
	}
	completer := &fakeCompleter{text: "digest"}

	agg := newTestAggregator(repo, completer, &inlineDispatcher{}, &recordingMetrics{})

	if err := agg.GenerateBatchDigest(context.Background(), repo.conv); err != nil {
		t.Fatalf("GenerateBatchDigest: %v", err)
	}

	lines := strings.Split(completer.lastUser, "\n")
	if len(lines) != 5 {
		t.Fatalf("prompt has %d lines, want 5", len(lines))
	}

	if !strings.HasPrefix(lines[0], "[Weight: 0.30]") {
		t.Errorf("oldest line = %q, want weight 0.30 prefix", lines[0])
	}

	if !strings.HasPrefix(lines[4], "[Weight: 1.00]") {
		t.Errorf("newest line = %q, want weight 1.00 prefix", lines[4])
	}
}

func TestGenerateBatchDigestNoSummaries(t *testing.T) {
	repo := &fakeDigestRepo{
		conv: &domain.Conversation{ID: "c1", MessageCount: 30, RAGEnabled: true},
	}
	completer := &fakeCompleter{text: "digest"}

	agg := newTestAggregator(repo, completer, &inlineDispatcher{}, &recordingMetrics{})

	if err := agg.GenerateBatchDigest(context.Background(), repo.conv); err != nil {
		t.Fatalf("GenerateBatchDigest: %v", err)
	}

	if completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0", completer.calls)
	}
}
