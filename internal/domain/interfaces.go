package domain

import "context"

// Embedder converts text into a fixed-dimension vector. Both ingestion and
// query-time retrieval go through the same implementation so that segment
// and query vectors live in the same space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// MemoryStore is the long-term memory service, scoped per conversation.
// The service decides internally what to keep, merge or discard; callers
// treat it as a black box and tolerate its failures.
type MemoryStore interface {
	Add(ctx context.Context, conversationID, role, text string) error
	Search(ctx context.Context, conversationID, query string, limit int) ([]MemoryEntry, error)
}
