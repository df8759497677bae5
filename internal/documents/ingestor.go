package documents

import (
	"context"
	"fmt"
	"log"

	"github.com/recall-ai/cli/internal/domain"
	"github.com/recall-ai/cli/internal/vectorindex"
)

// Ingestor orchestrates the ingestion path: load a source, split it into
// segments, embed them and upsert into the conversation's vector index.
// Every segment is embedded before the first index write, so a failure at
// any step leaves the index untouched for this source.
type Ingestor struct {
	loader       *Loader
	embedder     domain.Embedder
	index        vectorindex.Index
	chunkSize    int
	chunkOverlap int
}

// NewIngestor creates a new ingestor.
func NewIngestor(loader *Loader, embedder domain.Embedder, index vectorindex.Index, chunkSize, chunkOverlap int) *Ingestor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Ingestor{
		loader:       loader,
		embedder:     embedder,
		index:        index,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestPDF indexes an uploaded PDF under its file name as the source tag.
// Returns the number of segments written.
func (ing *Ingestor) IngestPDF(ctx context.Context, conversationID, name string, data []byte) (int, error) {
	docs, err := ing.loader.LoadPDF(data)
	if err != nil {
		return 0, err
	}
	return ing.ingest(ctx, conversationID, name, domain.KindDocument, docs)
}

// IngestURL fetches and indexes a web page under its URL as the source tag.
// Returns the number of segments written.
func (ing *Ingestor) IngestURL(ctx context.Context, conversationID, url string) (int, error) {
	docs, err := ing.loader.LoadURL(ctx, url)
	if err != nil {
		return 0, err
	}
	return ing.ingest(ctx, conversationID, url, domain.KindURL, docs)
}

func (ing *Ingestor) ingest(ctx context.Context, conversationID, tag, kind string, docs []domain.RawDocument) (int, error) {
	texts := Split(docs, ing.chunkSize, ing.chunkOverlap)
	if len(texts) == 0 {
		return 0, fmt.Errorf("source %q produced no segments", tag)
	}

	embeddings, err := ing.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed source %q: %w", tag, err)
	}

	segments := make([]domain.Segment, len(texts))
	for i, text := range texts {
		segments[i] = domain.Segment{
			ConversationID: conversationID,
			SourceTag:      tag,
			Kind:           kind,
			Content:        text,
			Embedding:      embeddings[i],
		}
	}

	if err := ing.index.Upsert(ctx, conversationID, segments); err != nil {
		return 0, fmt.Errorf("failed to index source %q: %w", tag, err)
	}

	log.Printf("[INGEST] Indexed %d segments from %q for conversation %s", len(segments), tag, conversationID)
	return len(segments), nil
}
