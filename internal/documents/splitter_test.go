package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-ai/cli/internal/domain"
)

func TestSplitShortDocument(t *testing.T) {
	docs := []domain.RawDocument{{Text: "a short paragraph", Page: 1}}

	chunks := Split(docs, 1000, 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph", chunks[0])
}

func TestSplitOverlappingWindows(t *testing.T) {
	// 2400 characters with size 1000 and overlap 200 steps by 800,
	// giving windows at 0, 800 and 1600.
	text := strings.Repeat("x", 2400)
	docs := []domain.RawDocument{{Text: text, Page: 1}}

	chunks := Split(docs, 1000, 200)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 800)
}

func TestSplitPreservesOverlap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("word ")
	}
	docs := []domain.RawDocument{{Text: sb.String(), Page: 1}}

	chunks := Split(docs, 500, 100)
	require.Greater(t, len(chunks), 1)

	// The tail of each chunk reappears at the head of the next one.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := strings.TrimSpace(string(prev[len(prev)-50:]))
		assert.Contains(t, chunks[i], tail)
	}
}

func TestSplitPreservesDocumentOrder(t *testing.T) {
	docs := []domain.RawDocument{
		{Text: "first page", Page: 1},
		{Text: "second page", Page: 2},
	}

	chunks := Split(docs, 1000, 200)

	require.Len(t, chunks, 2)
	assert.Equal(t, "first page", chunks[0])
	assert.Equal(t, "second page", chunks[1])
}

func TestSplitSkipsWhitespaceOnlyChunks(t *testing.T) {
	docs := []domain.RawDocument{{Text: "   \n\t  ", Page: 1}}

	chunks := Split(docs, 1000, 200)

	assert.Empty(t, chunks)
}

func TestSplitMultibyteRunes(t *testing.T) {
	// Chunk boundaries must land on rune boundaries, not bytes.
	text := strings.Repeat("héllo wörld ", 100)
	docs := []domain.RawDocument{{Text: text, Page: 1}}

	chunks := Split(docs, 300, 50)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 300)
		assert.True(t, strings.HasPrefix(c, "h") || strings.HasPrefix(c, "w") ||
			strings.HasPrefix(c, "é") || strings.HasPrefix(c, "ö") ||
			strings.HasPrefix(c, "l") || strings.HasPrefix(c, "o") ||
			strings.HasPrefix(c, "r") || strings.HasPrefix(c, "d"))
	}
}

func TestSplitInvalidParamsFallBack(t *testing.T) {
	text := strings.Repeat("y", 1500)
	docs := []domain.RawDocument{{Text: text, Page: 1}}

	// Zero size and negative overlap fall back to the defaults.
	chunks := Split(docs, 0, -1)

	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], DefaultChunkSize)
}
