package moderate

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	"github.com/driftchat/summary-worker/internal/core/llm"
)

type fakeClassifier struct {
	result llm.ModerationResult
	err    error
}

func (f *fakeClassifier) Moderate(_ context.Context, _ string) (llm.ModerationResult, error) {
	return f.result, f.err
}

func (f *fakeClassifier) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	return "", nil
}

func (f *fakeClassifier) CaptionImage(_ context.Context, _ string, _ int) (string, error) {
	return "", nil
}

func (f *fakeClassifier) IsConfigured() bool { return true }

func newTestGate(classifier *fakeClassifier) *Gate {
	logger := zerolog.Nop()

	return New(classifier, &logger)
}

func TestCheckClean(t *testing.T) {
	gate := newTestGate(&fakeClassifier{result: llm.ModerationResult{Flagged: false}})

	decision, err := gate.Check(context.Background(), "good morning")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if decision.Flagged {
		t.Error("clean content flagged")
	}
}

func TestCheckFlagged(t *testing.T) {
	gate := newTestGate(&fakeClassifier{result: llm.ModerationResult{
		Flagged:        true,
		Categories:     map[string]bool{"harassment": true, "violence": false},
		CategoryScores: map[string]float64{"harassment": 0.95, "violence": 0.1},
	}})

	decision, err := gate.Check(context.Background(), "bad content")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if !decision.Flagged {
		t.Fatal("flagged content not flagged")
	}

	flagged := decision.FlaggedCategories()
	sort.Strings(flagged)

	if len(flagged) != 1 || flagged[0] != "harassment" {
		t.Errorf("flagged categories = %v, want [harassment]", flagged)
	}

	if decision.ContentSample != "bad content" {
		t.Errorf("content sample = %q", decision.ContentSample)
	}
}

func TestCheckClassifierFailure(t *testing.T) {
	gate := newTestGate(&fakeClassifier{err: errors.New("service down")})

	if _, err := gate.Check(context.Background(), "anything"); err == nil {
		t.Fatal("expected error on classifier failure")
	}
}

func TestCheckTruncatesSample(t *testing.T) {
	gate := newTestGate(&fakeClassifier{result: llm.ModerationResult{Flagged: true}})

	long := strings.Repeat("a", 500)

	decision, err := gate.Check(context.Background(), long)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if len(decision.ContentSample) != contentSampleMaxLen {
		t.Errorf("sample length = %d, want %d", len(decision.ContentSample), contentSampleMaxLen)
	}
}

func TestDecisionRecord(t *testing.T) {
	decision := Decision{
		Flagged:        true,
		Categories:     map[string]bool{"hate": true},
		CategoryScores: map[string]float64{"hate": 0.9},
		ContentSample:  "sample",
	}

	msg := &domain.Message{ID: "m1", ConversationID: "c1", SenderID: "u1"}

	rec := decision.Record(msg)

	if rec.MessageID != "m1" || rec.ConversationID != "c1" || rec.SenderID != "u1" {
		t.Errorf("record identity = %+v", rec)
	}

	if !rec.Flagged || !rec.Categories["hate"] {
		t.Errorf("record verdict = %+v", rec)
	}

	if rec.ProcessedAt.IsZero() {
		t.Error("ProcessedAt not set")
	}
}
