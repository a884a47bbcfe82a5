package normalize

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
)

type fakeCaptioner struct {
	caption string
	err     error
	calls   int
}

func (f *fakeCaptioner) CaptionImage(_ context.Context, _ string, _ int) (string, error) {
	f.calls++

	return f.caption, f.err
}

func newTestNormalizer(captioner *fakeCaptioner) *Normalizer {
	logger := zerolog.Nop()

	return New(captioner, 75, &logger)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		msg          domain.Message
		caption      string
		captionErr   error
		wantFullText string
		wantDegraded bool
		wantCalls    int
	}{
		{
			name:         "text only",
			msg:          domain.Message{ID: "m1", Text: "  hello there  "},
			wantFullText: "hello there",
		},
		{
			name:         "empty message",
			msg:          domain.Message{ID: "m1"},
			wantFullText: "",
		},
		{
			name:         "image with caption",
			msg:          domain.Message{ID: "m1", Text: "look at this", MediaType: "image", MediaURL: "https://cdn.example/pic.jpg"},
			caption:      "A dog on a beach",
			wantFullText: "look at this A dog on a beach",
			wantCalls:    1,
		},
		{
			name:         "photo media type also captioned",
			msg:          domain.Message{ID: "m1", MediaType: "Photo", MediaURL: "https://cdn.example/pic.jpg"},
			caption:      "A sunset",
			wantFullText: "A sunset",
			wantCalls:    1,
		},
		{
			name:         "caption failure keeps authored text",
			msg:          domain.Message{ID: "m1", Text: "check this out", MediaType: "image", MediaURL: "https://cdn.example/pic.jpg"},
			captionErr:   errors.New("vision service down"),
			wantFullText: "check this out",
			wantDegraded: true,
			wantCalls:    1,
		},
		{
			name:         "image without url skips captioning",
			msg:          domain.Message{ID: "m1", Text: "hi", MediaType: "image"},
			wantFullText: "hi",
		},
		{
			name:         "video gets generic label",
			msg:          domain.Message{ID: "m1", Text: "watch", MediaType: "video", MediaURL: "https://cdn.example/clip.mp4"},
			wantFullText: "watch video shared",
		},
		{
			name:         "video without text",
			msg:          domain.Message{ID: "m1", MediaType: "video", MediaURL: "https://cdn.example/clip.mp4"},
			wantFullText: "video shared",
		},
		{
			name:         "unknown media type ignored",
			msg:          domain.Message{ID: "m1", Text: "a file", MediaType: "document", MediaURL: "https://cdn.example/doc.pdf"},
			wantFullText: "a file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captioner := &fakeCaptioner{caption: tt.caption, err: tt.captionErr}
			n := newTestNormalizer(captioner)

			content := n.Normalize(context.Background(), &tt.msg)

			if content.FullText != tt.wantFullText {
				t.Errorf("FullText = %q, want %q", content.FullText, tt.wantFullText)
			}

			if content.CaptionDegraded != tt.wantDegraded {
				t.Errorf("CaptionDegraded = %v, want %v", content.CaptionDegraded, tt.wantDegraded)
			}

			if captioner.calls != tt.wantCalls {
				t.Errorf("captioner calls = %d, want %d", captioner.calls, tt.wantCalls)
			}
		})
	}
}

func TestContentEmpty(t *testing.T) {
	if !(Content{}).Empty() {
		t.Error("zero Content not reported empty")
	}

	if (Content{FullText: "x"}).Empty() {
		t.Error("non-empty Content reported empty")
	}
}

func TestNormalizeMediaType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"IMAGE", "image"},
		{" Video ", "video"},
		{"", ""},
		{"photo", "photo"},
	}

	for _, tt := range tests {
		if got := NormalizeMediaType(tt.raw); got != tt.want {
			t.Errorf("NormalizeMediaType(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
