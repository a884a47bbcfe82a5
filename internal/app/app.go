// Package app wires the processing pipeline together and runs the worker.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/embeddings"
	"github.com/driftchat/summary-worker/internal/core/llm"
	"github.com/driftchat/summary-worker/internal/digest"
	"github.com/driftchat/summary-worker/internal/platform/config"
	"github.com/driftchat/summary-worker/internal/platform/observability"
	"github.com/driftchat/summary-worker/internal/platform/worker"
	"github.com/driftchat/summary-worker/internal/process/moderate"
	"github.com/driftchat/summary-worker/internal/process/normalize"
	"github.com/driftchat/summary-worker/internal/process/pipeline"
	"github.com/driftchat/summary-worker/internal/process/summarize"
	"github.com/driftchat/summary-worker/internal/retrieval"
	"github.com/driftchat/summary-worker/internal/server"
	db "github.com/driftchat/summary-worker/internal/storage"
)

const llmAPIKeyMock = "mock"

// The database is the single repository implementation behind every component.
var (
	_ pipeline.Repository  = (*db.DB)(nil)
	_ digest.Repository    = (*db.DB)(nil)
	_ summarize.Repository = (*db.DB)(nil)
	_ retrieval.Index      = (*db.DB)(nil)
	_ retrieval.Store      = (*db.DB)(nil)
)

// App holds the application dependencies.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
	}
}

// Run builds the pipeline and serves the worker API until the context is
// canceled.
func (a *App) Run(ctx context.Context) error {
	llmClient := a.newLLMClient()
	embedder := a.newEmbeddingClient()
	metrics := observability.NewMetrics()

	dispatcher := worker.NewDispatcher(a.cfg.DigestQueueSize, a.cfg.DigestMaxWorkers, a.logger)

	retriever := retrieval.New(embedder, a.database, a.logger)
	indexer := retrieval.NewIndexer(embedder, a.database, a.logger)
	normalizer := normalize.New(llmClient, a.cfg.CaptionMaxTokens, a.logger)
	gate := moderate.New(llmClient, a.logger)
	summarizer := summarize.New(llmClient, retriever, a.database,
		a.cfg.SummaryMaxTokens, a.cfg.ContextTopK, a.logger)
	aggregator := digest.New(a.database, llmClient, dispatcher, metrics,
		a.cfg.DigestBatchSize, a.cfg.DigestMaxTokens, a.cfg.LLMModel, a.logger)
	pipe := pipeline.New(a.database, normalizer, gate, summarizer, indexer,
		aggregator, metrics, a.cfg.LLMModel, a.logger)

	srv := server.New(pipe, retriever, a.database, llmClient, embedder, metrics,
		a.cfg.APIPort, a.cfg.SearchDefaultResults, a.cfg.SearchMaxResults, a.logger)

	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error().Err(err).Msg("digest dispatcher stopped")
		}
	}()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	return nil
}

// StartHealthServer starts the liveness, readiness, and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	srv := observability.NewServer(a.database, a.cfg.HealthPort, a.logger)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("health server start: %w", err)
	}

	return nil
}

// newLLMClient creates the completion, captioning, and moderation client. The
// mock key selects the in-process fake for local runs and tests.
func (a *App) newLLMClient() llm.Client {
	if a.cfg.LLMAPIKey == llmAPIKeyMock {
		a.logger.Warn().Msg("using mock LLM client")

		return llm.NewMock()
	}

	return llm.NewOpenAI(a.cfg, a.logger)
}

func (a *App) newEmbeddingClient() embeddings.Client {
	if a.cfg.LLMAPIKey == llmAPIKeyMock {
		a.logger.Warn().Msg("using mock embedding client")

		return embeddings.NewMock(a.cfg.EmbeddingDimensions)
	}

	return embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
		APIKey:     a.cfg.LLMAPIKey,
		Model:      a.cfg.EmbeddingModel,
		Dimensions: a.cfg.EmbeddingDimensions,
		RateLimit:  a.cfg.RateLimitRPS,
	})
}
