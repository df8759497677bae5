// Package chat runs one conversation turn: context assembly, streaming
// generation and deferred persistence of its side effects.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/recall-ai/cli/internal/domain"
	"github.com/recall-ai/cli/internal/gateway"
)

// SystemPrompt pins the strict grounding policy: the model answers from the
// supplied context and memories only, and declines when there is none.
const SystemPrompt = "You are a helpful assistant. Answer the user's questions based on the provided context, " +
	"which may include memories from previous conversations and content from uploaded documents. " +
	"If no relevant context is provided, say you don't have enough information to answer instead of " +
	"answering from general knowledge. Be conversational and helpful."

// Generator streams model output token by token.
type Generator interface {
	Stream(ctx context.Context, model string, messages []gateway.Message, onToken func(string) error) error
}

// ContextAssembler builds the retrieval context block for a query.
type ContextAssembler interface {
	Assemble(ctx context.Context, conversationID, query string) string
}

// TurnRequest is one chat turn to orchestrate.
type TurnRequest struct {
	ConversationID uuid.UUID
	Model          string
	History        []domain.Turn
	Query          string
}

// Orchestrator drives a chat turn end to end. User-turn persistence is
// scheduled before generation starts and assistant-turn persistence after
// the stream completes naturally, so the stored transcript keeps
// chronological order without ever blocking the stream.
type Orchestrator struct {
	assembler ContextAssembler
	generator Generator
	sink      *Sink
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(assembler ContextAssembler, generator Generator, sink *Sink) *Orchestrator {
	return &Orchestrator{
		assembler: assembler,
		generator: generator,
		sink:      sink,
	}
}

// Stream runs one turn, forwarding every token to onToken as it arrives,
// and returns the full answer text. When generation fails or the caller
// disconnects, the error is returned, no completion side effects fire and
// no assistant turn is persisted.
func (o *Orchestrator) Stream(ctx context.Context, req TurnRequest, onToken func(string) error) (string, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", fmt.Errorf("empty query")
	}

	model, err := ResolveModel(req.Model)
	if err != nil {
		return "", fmt.Errorf("model %q: %w", req.Model, err)
	}

	// Issued before generation so the transcript keeps turn order even
	// though persistence runs off the critical path.
	o.sink.UserTurn(req.ConversationID, query)

	prompt := o.assembler.Assemble(ctx, req.ConversationID.String(), query)

	messages := make([]gateway.Message, 0, len(req.History)+2)
	messages = append(messages, gateway.Message{Role: "system", Content: SystemPrompt})
	for _, turn := range req.History {
		messages = append(messages, gateway.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, gateway.Message{Role: domain.RoleUser, Content: prompt})

	var answer strings.Builder
	err = o.generator.Stream(ctx, model, messages, func(token string) error {
		answer.WriteString(token)
		return onToken(token)
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// The caller went away; an aborted stream never completes.
		return "", err
	}

	text := answer.String()
	o.sink.AssistantTurn(req.ConversationID, text)
	return text, nil
}
