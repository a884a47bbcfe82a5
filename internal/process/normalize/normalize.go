// Package normalize extracts processable text from a message: the authored
// text plus, for media attachments, a short caption.
package normalize

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
)

// Recognized media categories after case/whitespace normalization.
const (
	MediaImage = "image"
	MediaPhoto = "photo"
	MediaVideo = "video"

	genericVideoLabel = "video shared"
)

// Captioner produces a one-sentence description of the image at the URL.
// A real video-captioning backend can be substituted here without changing
// the orchestrator contract.
type Captioner interface {
	CaptionImage(ctx context.Context, imageURL string, maxTokens int) (string, error)
}

// Content is the normalizer output. CaptionDegraded distinguishes a caption
// lost to a provider failure from a message that simply has no media.
type Content struct {
	FullText        string
	Caption         string
	CaptionDegraded bool
	DegradedReason  string
}

// Empty reports whether there is nothing to moderate or summarize.
func (c Content) Empty() bool {
	return c.FullText == ""
}

// Normalizer builds pipeline input text from message bodies.
type Normalizer struct {
	captioner        Captioner
	captionMaxTokens int
	logger           *zerolog.Logger
}

// New creates a Normalizer.
func New(captioner Captioner, captionMaxTokens int, logger *zerolog.Logger) *Normalizer {
	return &Normalizer{
		captioner:        captioner,
		captionMaxTokens: captionMaxTokens,
		logger:           logger,
	}
}

// Normalize produces the space-joined, trimmed content for a message.
// Captioning failure is never fatal: the caption is dropped and the result is
// marked degraded.
func (n *Normalizer) Normalize(ctx context.Context, msg *domain.Message) Content {
	content := Content{}

	text := strings.TrimSpace(msg.Text)

	switch NormalizeMediaType(msg.MediaType) {
	case MediaImage, MediaPhoto:
		if msg.MediaURL == "" {
			break
		}

		caption, err := n.captioner.CaptionImage(ctx, msg.MediaURL, n.captionMaxTokens)
		if err != nil {
			n.logger.Warn().Err(err).
				Str("message_id", msg.ID).
				Msg("image captioning failed, continuing without caption")

			content.CaptionDegraded = true
			content.DegradedReason = err.Error()

			break
		}

		content.Caption = strings.TrimSpace(caption)
	case MediaVideo:
		// No frame analysis; a fixed label joined to the authored text keeps
		// the content deterministic and marks that a video went by.
		content.Caption = genericVideoLabel
	case "", "text":
	default:
		n.logger.Debug().
			Str("message_id", msg.ID).
			Str("media_type", msg.MediaType).
			Msg("unrecognized media type, skipping caption")
	}

	parts := make([]string, 0, 2)
	if text != "" {
		parts = append(parts, text)
	}

	if content.Caption != "" {
		parts = append(parts, content.Caption)
	}

	content.FullText = strings.TrimSpace(strings.Join(parts, " "))

	return content
}

// NormalizeMediaType lowers and trims a raw media type value.
func NormalizeMediaType(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
