package domain

import (
	"time"

	"github.com/google/uuid"
)

// Turn roles. Transcripts and memories only ever carry these two.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Source kinds.
const (
	KindDocument = "document"
	KindURL      = "url"
)

// Conversation is a chat thread with its transcript and ingested sources.
type Conversation struct {
	ID        uuid.UUID
	Title     string
	Turns     []Turn
	Sources   []Source
	CreatedAt time.Time
}

// Turn is a single role-tagged message in a conversation transcript.
// Turns are appended in chronological order and never mutated.
type Turn struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Source records an ingested document or URL. Its name doubles as the
// deletion tag shared by every segment produced from it.
type Source struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Name           string
	Kind           string
	CreatedAt      time.Time
}

// RawDocument is one unit of loaded source text before splitting,
// e.g. a single PDF page or a fetched web page.
type RawDocument struct {
	Text string
	Page int
}

// Segment is a bounded slice of source text plus its embedding,
// scoped to exactly one conversation and tagged for deletion by source.
type Segment struct {
	ConversationID string
	SourceTag      string
	Kind           string
	Content        string
	Embedding      []float32
}

// SearchResult is a retrieved segment with its similarity score.
// Results are ordered most similar first.
type SearchResult struct {
	Segment Segment
	Score   float64
}

// MemoryEntry is one long-term memory snippet scoped to a conversation.
type MemoryEntry struct {
	ID             string
	ConversationID string
	Role           string
	Text           string
}
