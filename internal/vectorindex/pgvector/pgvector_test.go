package pgvector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-ai/cli/internal/domain"
)

// failingEmbedder rejects every call. The index under test gets a nil pool,
// so these cases also prove that embedding strictly precedes any database
// access: touching the pool would panic.
type failingEmbedder struct {
	err error
}

func (e *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, e.err
}

func (e *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, e.err
}

func (e *failingEmbedder) Dimensions() int { return 768 }

func TestUpsertEmbedFailureWritesNothing(t *testing.T) {
	ix := New(nil, &failingEmbedder{err: errors.New("embedder down")})

	err := ix.Upsert(context.Background(), "conv-1", []domain.Segment{
		{ConversationID: "conv-1", SourceTag: "a.pdf", Content: "some text"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed segment")
}

func TestUpsertEmptyBatchIsNoOp(t *testing.T) {
	ix := New(nil, &failingEmbedder{err: errors.New("embedder down")})

	assert.NoError(t, ix.Upsert(context.Background(), "conv-1", nil))
}

func TestSearchEmbedFailure(t *testing.T) {
	ix := New(nil, &failingEmbedder{err: errors.New("embedder down")})

	_, err := ix.Search(context.Background(), "conv-1", "query", 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}
