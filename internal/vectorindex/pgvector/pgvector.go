// Package pgvector implements the vector index on Postgres with the
// pgvector extension. All conversations share one table; the conversation
// id column is the isolation boundary.
package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/recall-ai/cli/internal/domain"
	"github.com/recall-ai/cli/internal/vectorindex"
)

// Ensure Index implements the interface.
var _ vectorindex.Index = (*Index)(nil)

// Index stores segments in the segments table.
type Index struct {
	pool     *pgxpool.Pool
	embedder domain.Embedder
}

// New creates a pgvector-backed index sharing the application's pool.
func New(pool *pgxpool.Pool, embedder domain.Embedder) *Index {
	return &Index{pool: pool, embedder: embedder}
}

// Upsert inserts segments in a single transaction so that a failure leaves
// no partial writes for the source behind.
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

	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, seg := range segments {
		batch.Queue(
			`INSERT INTO segments (conversation_id, source_tag, kind, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			conversationID, seg.SourceTag, seg.Kind, seg.Content, pgv.NewVector(seg.Embedding),
		)
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < len(segments); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert segment %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// Search embeds the query and runs a cosine-distance scan over the
// conversation's segments.
func (ix *Index) Search(ctx context.Context, conversationID, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 4
	}

	embedding, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := ix.pool.Query(ctx,
		`SELECT source_tag, kind, content, 1 - (embedding <=> $2) AS score
		 FROM segments
		 WHERE conversation_id = $1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		conversationID, pgv.NewVector(embedding), k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search segments: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var res domain.SearchResult
		res.Segment.ConversationID = conversationID
		if err := rows.Scan(&res.Segment.SourceTag, &res.Segment.Kind, &res.Segment.Content, &res.Score); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// DeleteByTag removes every segment of the source from the conversation.
func (ix *Index) DeleteByTag(ctx context.Context, conversationID, tag string) error {
	_, err := ix.pool.Exec(ctx,
		`DELETE FROM segments WHERE conversation_id = $1 AND source_tag = $2`,
		conversationID, tag,
	)
	if err != nil {
		return fmt.Errorf("failed to delete segments by tag: %w", err)
	}
	return nil
}

// DropConversation removes every segment of the conversation.
func (ix *Index) DropConversation(ctx context.Context, conversationID string) error {
	_, err := ix.pool.Exec(ctx,
		`DELETE FROM segments WHERE conversation_id = $1`,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to drop conversation segments: %w", err)
	}
	return nil
}
