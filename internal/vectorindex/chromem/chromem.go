// Package chromem implements the vector index on chromem-go, a pure Go
// embedded vector database. One chromem collection per conversation keeps
// retrieval scope isolated and makes dropping a conversation trivial.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	chromemgo "github.com/philippgille/chromem-go"

	"github.com/recall-ai/cli/internal/domain"
	"github.com/recall-ai/cli/internal/vectorindex"
)

// Ensure Index implements the interface.
var _ vectorindex.Index = (*Index)(nil)

// Index stores segments in per-conversation chromem collections.
type Index struct {
	db       *chromemgo.DB
	embedder domain.Embedder

	mu          sync.RWMutex
	collections map[string]*chromemgo.Collection
}

// New creates an in-memory chromem-backed index.
func New(embedder domain.Embedder) *Index {
	return &Index{
		db:          chromemgo.NewDB(),
		embedder:    embedder,
		collections: make(map[string]*chromemgo.Collection),
	}
}

func collectionName(conversationID string) string {
	return "conversation_" + conversationID
}

// getOrCreateCollection returns the collection for a conversation.
func (ix *Index) getOrCreateCollection(conversationID string) (*chromemgo.Collection, error) {
	ix.mu.RLock()
	col, exists := ix.collections[conversationID]
	ix.mu.RUnlock()
	if exists {
		return col, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := ix.collections[conversationID]; exists {
		return col, nil
	}

	col, err := ix.db.CreateCollection(
		collectionName(conversationID),
		nil, // no collection metadata
		nil, // embeddings are provided, no embedding func
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	ix.collections[conversationID] = col
	return col, nil
}

// getCollection returns the conversation's collection or nil when the
// conversation never ingested anything.
func (ix *Index) getCollection(conversationID string) *chromemgo.Collection {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.collections[conversationID]
}

// Upsert writes segments into the conversation's collection. Segments are
// embedded up front so an embedding failure leaves the collection untouched.
func (ix *Index) Upsert(ctx context.Context, conversationID string, segments []domain.Segment) error {
	if len(segments) == 0 {
		return nil
	}

	for i := range segments {
		if segments[i].Embedding != nil {
			continue
		}
		emb, err := ix.embedder.Embed(ctx, segments[i].Content)
		if err != nil {
			return fmt.Errorf("failed to embed segment %d: %w", i, err)
		}
		segments[i].Embedding = emb
	}

	col, err := ix.getOrCreateCollection(conversationID)
	if err != nil {
		return err
	}

	// Documents land one at a time; on a mid-batch failure the ones
	// already written are removed again so a source is indexed completely
	// or not at all.
	written := make([]string, 0, len(segments))
	for i, seg := range segments {
		doc := chromemgo.Document{
			ID:        uuid.New().String(),
			Content:   seg.Content,
			Embedding: seg.Embedding,
			Metadata: map[string]string{
				"conversation_id": conversationID,
				"source_tag":      seg.SourceTag,
				"kind":            seg.Kind,
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			if len(written) > 0 {
				if delErr := col.Delete(ctx, nil, nil, written...); delErr != nil {
					log.Printf("[INDEX] Failed to roll back %d segments for conversation %s: %v", len(written), conversationID, delErr)
				}
			}
			return fmt.Errorf("failed to add segment %d: %w", i, err)
		}
		written = append(written, doc.ID)
	}
	return nil
}

// Search embeds the query and returns up to k nearest segments.
func (ix *Index) Search(ctx context.Context, conversationID, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 4
	}

	col := ix.getCollection(conversationID)
	if col == nil {
		return nil, nil
	}

	// chromem rejects nResults larger than the collection size
	if count := col.Count(); count < k {
		if count == 0 {
			return nil, nil
		}
		k = count
	}

	embedding, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, domain.SearchResult{
			Segment: domain.Segment{
				ConversationID: conversationID,
				SourceTag:      r.Metadata["source_tag"],
				Kind:           r.Metadata["kind"],
				Content:        r.Content,
				Embedding:      r.Embedding,
			},
			Score: float64(r.Similarity),
		})
	}
	return out, nil
}

// DeleteByTag removes every segment of the source from the conversation.
func (ix *Index) DeleteByTag(ctx context.Context, conversationID, tag string) error {
	col := ix.getCollection(conversationID)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{"source_tag": tag}, nil); err != nil {
		return fmt.Errorf("failed to delete segments by tag: %w", err)
	}
	return nil
}

// DropConversation deletes the conversation's collection entirely.
func (ix *Index) DropConversation(ctx context.Context, conversationID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.collections[conversationID]; !exists {
		return nil
	}
	if err := ix.db.DeleteCollection(collectionName(conversationID)); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	delete(ix.collections, conversationID)
	return nil
}
