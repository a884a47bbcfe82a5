package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_jobs_total",
		Help: "The total number of message jobs processed, by terminal status",
	}, []string{"status"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "worker_job_duration_seconds",
		Help:    "End-to-end duration of message processing jobs",
		Buckets: prometheus.DefBuckets,
	})

	stagesDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_stage_degraded_total",
		Help: "Total number of stage executions that fell back to a degraded outcome",
	}, []string{"stage"})

	messagesModerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_messages_moderated_total",
		Help: "Moderation verdicts by outcome",
	}, []string{"outcome"})

	digestsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_digests_triggered_total",
		Help: "Batch digest triggers fired by the aggregator",
	})

	digestsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_digests_completed_total",
		Help: "Batch digest completions by status",
	}, []string{"status"})

	digestsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_digests_dropped_total",
		Help: "Batch digest triggers dropped because the dispatch queue was full",
	})

	searchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_conversation_searches_total",
		Help: "Interactive conversation searches served",
	})

	searchesEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_conversation_searches_empty_total",
		Help: "Interactive conversation searches that returned no results",
	})

	searchResultCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "worker_conversation_search_results",
		Help:    "Result counts of interactive conversation searches",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})
)

// Metrics is the injected sink for pipeline, aggregator, and search counters.
// Keeping it behind an interface at the call sites makes the processing code
// testable without touching process-wide prometheus state.
type Metrics struct{}

// NewMetrics creates the prometheus-backed metrics sink.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// JobCompleted records a finished message job and its terminal status.
func (m *Metrics) JobCompleted(status string, duration time.Duration) {
	jobsProcessed.WithLabelValues(status).Inc()
	jobDuration.Observe(duration.Seconds())
}

// StageDegraded records a stage falling back to its degraded outcome.
func (m *Metrics) StageDegraded(stage string) {
	stagesDegraded.WithLabelValues(stage).Inc()
}

// Moderated records a moderation verdict.
func (m *Metrics) Moderated(flagged bool) {
	outcome := "clean"
	if flagged {
		outcome = "flagged"
	}

	messagesModerated.WithLabelValues(outcome).Inc()
}

// DigestTriggered records a batch threshold crossing.
func (m *Metrics) DigestTriggered() {
	digestsTriggered.Inc()
}

// DigestCompleted records a digest generation attempt finishing.
func (m *Metrics) DigestCompleted(status string) {
	digestsCompleted.WithLabelValues(status).Inc()
}

// DigestDropped records a trigger rejected by the full dispatch queue.
func (m *Metrics) DigestDropped() {
	digestsDropped.Inc()
}

// SearchPerformed records an interactive conversation search.
func (m *Metrics) SearchPerformed(resultCount int) {
	searchesTotal.Inc()
	searchResultCount.Observe(float64(resultCount))

	if resultCount == 0 {
		searchesEmpty.Inc()
	}
}
