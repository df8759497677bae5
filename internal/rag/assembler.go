// Package rag assembles the retrieval context for one chat turn.
package rag

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/recall-ai/cli/internal/domain"
	"github.com/recall-ai/cli/internal/vectorindex"
)

// Block labels and separators as they appear in the assembled prompt.
const (
	memoriesLabel  = "Relevant memories from previous conversations:"
	documentsLabel = "Context from uploaded documents:"
	segmentDivider = "\n---\n"
	questionPrefix = "User question: "
)

// Assembler gathers memory and document context for a query and formats a
// single bounded block. Memory results take priority position over document
// results. Either retrieval branch may fail without affecting the other;
// with both empty the result degrades to the bare question.
type Assembler struct {
	index       vectorindex.Index
	memories    domain.MemoryStore
	topK        int
	memoryLimit int
}

// NewAssembler creates a new context assembler.
func NewAssembler(index vectorindex.Index, memories domain.MemoryStore, topK, memoryLimit int) *Assembler {
	if topK <= 0 {
		topK = 4
	}
	if memoryLimit <= 0 {
		memoryLimit = 5
	}
	return &Assembler{
		index:       index,
		memories:    memories,
		topK:        topK,
		memoryLimit: memoryLimit,
	}
}

// Assemble runs both retrieval branches concurrently and formats the
// context block. It never fails: branch errors are logged and treated as
// empty results.
func (a *Assembler) Assemble(ctx context.Context, conversationID, query string) string {
	var (
		wg       sync.WaitGroup
		entries  []domain.MemoryEntry
		segments []domain.SearchResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		res, err := a.memories.Search(ctx, conversationID, query, a.memoryLimit)
		if err != nil {
			log.Printf("[CONTEXT] Memory search failed for conversation %s: %v", conversationID, err)
			return
		}
		entries = res
	}()
	go func() {
		defer wg.Done()
		res, err := a.index.Search(ctx, conversationID, query, a.topK)
		if err != nil {
			log.Printf("[CONTEXT] Vector search failed for conversation %s: %v", conversationID, err)
			return
		}
		segments = res
	}()
	wg.Wait()

	var parts []string
	if block := formatMemories(entries); block != "" {
		parts = append(parts, block)
	}
	if block := formatSegments(segments); block != "" {
		parts = append(parts, block)
	}
	if len(parts) == 0 {
		return query
	}

	parts = append(parts, questionPrefix+query)
	return strings.Join(parts, "\n\n")
}

// formatMemories renders retrieved memories, one per line.
func formatMemories(entries []domain.MemoryEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(memoriesLabel)
	for _, e := range entries {
		b.WriteString("\n- ")
		b.WriteString(e.Text)
	}
	return b.String()
}

// formatSegments renders retrieved segments in rank order.
func formatSegments(results []domain.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Segment.Content)
	}
	return documentsLabel + "\n" + strings.Join(texts, segmentDivider)
}
