package documents

import (
	"strings"

	"github.com/recall-ai/cli/internal/domain"
)

// Default chunking parameters. Overlap keeps sentences that span a chunk
// boundary retrievable from both sides, at the cost of redundant embedding.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Split cuts loaded documents into fixed-size overlapping chunks of at most
// chunkSize characters, preserving document order. A document of length L
// yields ceil((L-O)/(C-O)) chunks.
func Split(docs []domain.RawDocument, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}

	var chunks []string
	for _, doc := range docs {
		runes := []rune(doc.Text)
		step := chunkSize - overlap

		for start := 0; start < len(runes); start += step {
			end := start + chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			chunk := strings.TrimSpace(string(runes[start:end]))
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			if end == len(runes) {
				break
			}
		}
	}
	return chunks
}
