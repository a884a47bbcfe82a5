package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
	"github.com/driftchat/summary-worker/internal/platform/config"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute
	rateLimiterBurst        = 5

	captionSystemPrompt = "Describe this image in one short sentence. Be factual and neutral."

	errRateLimiter = "rate limiter: %w"
)

type openaiClient struct {
	cfg    *config.Config
	client *openai.Client
	logger *zerolog.Logger

	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

// NewOpenAI creates the OpenAI-backed client.
func NewOpenAI(cfg *config.Config, logger *zerolog.Logger) Client {
	return &openaiClient{
		cfg:         cfg,
		client:      openai.NewClient(cfg.LLMAPIKey),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPS)), rateLimiterBurst),
	}
}

func (c *openaiClient) checkCircuit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Before(c.circuitOpenUntil) {
		return fmt.Errorf("%w until %v", coreerrors.ErrCircuitBreakerOpen, c.circuitOpenUntil)
	}

	return nil
}

func (c *openaiClient) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
}

func (c *openaiClient) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	if c.consecutiveFailures >= circuitBreakerThreshold {
		c.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		c.logger.Warn().
			Int("consecutive_failures", c.consecutiveFailures).
			Time("open_until", c.circuitOpenUntil).
			Msg("Circuit breaker opened")
	}
}

func (c *openaiClient) IsConfigured() bool {
	return c.cfg.LLMAPIKey != ""
}

func (c *openaiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := c.checkCircuit(); err != nil {
		return "", err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf(errRateLimiter, err)
	}

	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.LLMModel,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		c.recordFailure()

		return "", fmt.Errorf("chat completion: %w", err)
	}

	c.recordSuccess()

	if len(resp.Choices) == 0 {
		return "", coreerrors.ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *openaiClient) CaptionImage(ctx context.Context, imageURL string, maxTokens int) (string, error) {
	if err := c.checkCircuit(); err != nil {
		return "", err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf(errRateLimiter, err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.LLMModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: captionSystemPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens:   maxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		c.recordFailure()

		return "", fmt.Errorf("image caption: %w", err)
	}

	c.recordSuccess()

	if len(resp.Choices) == 0 {
		return "", coreerrors.ErrEmptyResponse
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *openaiClient) Moderate(ctx context.Context, input string) (ModerationResult, error) {
	if err := c.checkCircuit(); err != nil {
		return ModerationResult{}, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return ModerationResult{}, fmt.Errorf(errRateLimiter, err)
	}

	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{
		Input: input,
		Model: c.cfg.ModerationModel,
	})
	if err != nil {
		c.recordFailure()

		return ModerationResult{}, fmt.Errorf("moderation: %w", err)
	}

	c.recordSuccess()

	if len(resp.Results) == 0 {
		return ModerationResult{}, coreerrors.ErrEmptyResponse
	}

	return flattenModeration(resp.Results[0]), nil
}

// flattenModeration converts the provider's category structs into maps keyed
// by the wire category names.
func flattenModeration(r openai.Result) ModerationResult {
	return ModerationResult{
		Flagged: r.Flagged,
		Categories: map[string]bool{
			"hate":                   r.Categories.Hate,
			"hate/threatening":       r.Categories.HateThreatening,
			"harassment":             r.Categories.Harassment,
			"harassment/threatening": r.Categories.HarassmentThreatening,
			"self-harm":              r.Categories.SelfHarm,
			"self-harm/intent":       r.Categories.SelfHarmIntent,
			"self-harm/instructions": r.Categories.SelfHarmInstructions,
			"sexual":                 r.Categories.Sexual,
			"sexual/minors":          r.Categories.SexualMinors,
			"violence":               r.Categories.Violence,
			"violence/graphic":       r.Categories.ViolenceGraphic,
		},
		CategoryScores: map[string]float64{
			"hate":                   float64(r.CategoryScores.Hate),
			"hate/threatening":       float64(r.CategoryScores.HateThreatening),
			"harassment":             float64(r.CategoryScores.Harassment),
			"harassment/threatening": float64(r.CategoryScores.HarassmentThreatening),
			"self-harm":              float64(r.CategoryScores.SelfHarm),
			"self-harm/intent":       float64(r.CategoryScores.SelfHarmIntent),
			"self-harm/instructions": float64(r.CategoryScores.SelfHarmInstructions),
			"sexual":                 float64(r.CategoryScores.Sexual),
			"sexual/minors":          float64(r.CategoryScores.SexualMinors),
			"violence":               float64(r.CategoryScores.Violence),
			"violence/graphic":       float64(r.CategoryScores.ViolenceGraphic),
		},
	}
}
