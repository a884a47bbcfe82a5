// Package domain defines the entities shared across the processing pipeline.
//
// Messages are immutable once created except for the pipeline-owned state
// fields (Delivered, Blocked, HasSummary, SummaryGenerated). Summaries,
// conversation summaries and moderation records are written once and never
// mutated.
package domain

import "time"

// Message is a chat message as stored in the document store.
type Message struct {
	ID             string
	ConversationID string // empty for direct messages
	SenderID       string
	Text           string
	MediaURL       string
	MediaType      string
	SentAt         time.Time
	EphemeralOnly  bool

	// Pipeline-owned state. Exactly one of blocked, summary generated, or
	// no-content holds once Delivered is true.
	Delivered        bool
	Blocked          bool
	HasSummary       bool
	SummaryGenerated bool
}

// Terminal reports whether the pipeline has finished with this message.
func (m *Message) Terminal() bool {
	return m.Delivered || m.Blocked
}

// Conversation carries the per-conversation counters consumed by the
// aggregator. ParticipantIDs are used for display-name resolution only.
type Conversation struct {
	ID                        string
	ParticipantIDs            []string
	MessageCount              int
	LastProcessedMessageCount int
	RAGEnabled                bool
}

// Summary is the one-sentence per-message summary record.
type Summary struct {
	MessageID        string
	ConversationID   string
	SenderID         string
	SummaryText      string
	Model            string
	ProcessingTimeMs int64
	ContextUsed      []string // message IDs of retrieved context, empty if context-free
	Confidence       float32
	Degraded         bool
	DegradedReason   string
	ModerationPassed bool
	GeneratedAt      time.Time
}

// ConversationSummary is the recency-weighted digest written once per
// completed batch of messages.
type ConversationSummary struct {
	ID                   string // "{conversationID}_{batchNumber}"
	ConversationID       string
	BatchNumber          int
	SummaryText          string
	MessagesIncluded     int
	RangeStart           int
	RangeEnd             int
	RecentMessagesWeight float32
	OlderMessagesWeight  float32
	Confidence           float32
	Model                string
	ProcessingTimeMs     int64
	GeneratedAt          time.Time
}

// ModerationRecord is written only for flagged content.
type ModerationRecord struct {
	MessageID      string
	ConversationID string
	SenderID       string
	Flagged        bool
	Categories     map[string]bool
	CategoryScores map[string]float64
	ContentSample  string
	ProcessedAt    time.Time
}

// ContextResult is a ranked match from the conversation vector namespace.
type ContextResult struct {
	MessageID   string
	SummaryText string
	SenderID    string
	MediaType   string
	Timestamp   time.Time
	Score       float32
}

// VectorRecord is an entry in a conversation's vector namespace. Records are
// created by the indexer and queried by the retriever; they are never updated
// or deleted by the pipeline.
type VectorRecord struct {
	MessageID      string
	ConversationID string
	SenderID       string
	SummaryText    string
	MediaType      string
	Timestamp      time.Time
	Embedding      []float32
}
