// Package server exposes the worker's HTTP surface: the message-job intake,
// the interactive conversation search, and the service health report.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/driftchat/summary-worker/internal/core/domain"
	coreerrors "github.com/driftchat/summary-worker/internal/core/errors"
	"github.com/driftchat/summary-worker/internal/process/pipeline"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Processor runs one message job to its terminal state.
type Processor interface {
	Process(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

// Searcher answers interactive conversation searches.
type Searcher interface {
	Search(ctx context.Context, conversationID, query, excludeMessageID string, maxResults int) []domain.ContextResult
}

// Pinger reports document-store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Configured reports whether an external provider has credentials.
type Configured interface {
	IsConfigured() bool
}

// Metrics is the sink for search analytics.
type Metrics interface {
	SearchPerformed(resultCount int)
}

// Server is the worker's HTTP API.
type Server struct {
	processor Processor
	searcher  Searcher
	db        Pinger
	completer Configured
	embedder  Configured
	metrics   Metrics

	port           int
	defaultResults int
	maxResults     int

	logger *zerolog.Logger
}

// New creates a Server.
func New(
	processor Processor,
	searcher Searcher,
	db Pinger,
	completer, embedder Configured,
	metrics Metrics,
	port, defaultResults, maxResults int,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		processor:      processor,
		searcher:       searcher,
		db:             db,
		completer:      completer,
		embedder:       embedder,
		metrics:        metrics,
		port:           port,
		defaultResults: defaultResults,
		maxResults:     maxResults,
		logger:         logger,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestID)
	r.HandleFunc("/v1/jobs/message", s.handleMessageJob).Methods(http.MethodPost)
	r.HandleFunc("/v1/conversations/search", s.handleSearch).Methods(http.MethodPost)
	r.HandleFunc("/v1/health", s.handleHealth).Methods(http.MethodGet)

	return r
}

// Start serves until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)

		defer cancel()

		//nolint:errcheck,contextcheck // shutdown in signal handler is best-effort, non-inherited context intentional
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("api server starting")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// requestID tags every request with an id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", id)

		logger := s.logger.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

type jobResponse struct {
	Status   string `json:"status"`
	Summary  string `json:"summary,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

func (s *Server) handleMessageJob(w http.ResponseWriter, r *http.Request) {
	var job pipeline.Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	if job.MessageID == "" {
		s.writeError(w, http.StatusBadRequest, "messageId is required")

		return
	}

	result, err := s.processor.Process(r.Context(), job)
	if err != nil {
		if errors.Is(err, coreerrors.ErrMessageNotFound) || errors.Is(err, coreerrors.ErrConversationNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())

			return
		}

		s.logger.Error().Err(err).Str("message_id", job.MessageID).Msg("message job failed")
		s.writeError(w, http.StatusInternalServerError, "message processing failed")

		return
	}

	s.writeJSON(w, http.StatusOK, jobResponse{
		Status:   result.Status,
		Summary:  result.SummaryText,
		Degraded: result.Degraded,
	})
}

type searchRequest struct {
	ConversationID string `json:"conversationId"`
	Query          string `json:"query"`
	MaxResults     int    `json:"maxResults"`
}

type searchResult struct {
	MessageID string    `json:"messageId"`
	Summary   string    `json:"summary"`
	SenderID  string    `json:"senderId"`
	MediaType string    `json:"mediaType,omitempty"`
	SentAt    time.Time `json:"sentAt"`
	Score     float32   `json:"score"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	if req.ConversationID == "" || req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "conversationId and query are required")

		return
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = s.defaultResults
	}

	if maxResults > s.maxResults {
		maxResults = s.maxResults
	}

	matches := s.searcher.Search(r.Context(), req.ConversationID, req.Query, "", maxResults)

	s.metrics.SearchPerformed(len(matches))

	results := make([]searchResult, len(matches))
	for i, m := range matches {
		results[i] = searchResult{
			MessageID: m.MessageID,
			Summary:   m.SummaryText,
			SenderID:  m.SenderID,
			MediaType: m.MediaType,
			SentAt:    m.Timestamp,
			Score:     m.Score,
		}
	}

	s.writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

type healthResponse struct {
	Status           string          `json:"status"`
	Services         map[string]bool `json:"services"`
	PipelineOperable bool            `json:"pipelineOperable"`
	RAGEnabled       bool            `json:"ragEnabled"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeUp := s.db.Ping(r.Context()) == nil
	completionUp := s.completer.IsConfigured()
	embeddingsUp := s.embedder.IsConfigured()

	// The pipeline can deliver messages without embeddings, but not without
	// the store or the completion service. Retrieval additionally needs the
	// embedding provider; the vector index lives in the same database.
	operable := storeUp && completionUp
	ragEnabled := operable && embeddingsUp

	status := "ok"
	if !ragEnabled {
		status = "degraded"
	}

	code := http.StatusOK
	if !operable {
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, healthResponse{
		Status: status,
		Services: map[string]bool{
			"documentStore": storeUp,
			"completion":    completionUp,
			"embeddings":    embeddingsUp,
			"vectorIndex":   storeUp,
		},
		PipelineOperable: operable,
		RAGEnabled:       ragEnabled,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
