// Package vectorindex defines the per-conversation vector index contract.
// Backends live in subpackages: pgvector (Postgres) and chromem (embedded).
package vectorindex

import (
	"context"

	"github.com/recall-ai/cli/internal/domain"
)

// Index stores and retrieves embedded segments scoped to one conversation.
type Index interface {
	// Upsert writes segments into the conversation's collection, creating
	// it if absent. Segments without an embedding are embedded first.
	Upsert(ctx context.Context, conversationID string, segments []domain.Segment) error

	// Search embeds the query and returns up to k nearest segments of the
	// conversation, most similar first. A conversation with no ingested
	// segments yields an empty result, not an error.
	Search(ctx context.Context, conversationID, query string, k int) ([]domain.SearchResult, error)

	// DeleteByTag removes every segment whose source tag matches.
	// Removing a tag with no segments is a no-op.
	DeleteByTag(ctx context.Context, conversationID, tag string) error

	// DropConversation removes the conversation's entire collection.
	DropConversation(ctx context.Context, conversationID string) error
}
