package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recall-ai/cli/internal/domain"
)

// TranscriptStore appends turns to the durable conversation transcript.
type TranscriptStore interface {
	AppendTurn(ctx context.Context, conversationID uuid.UUID, role, content string) error
}

// Sink records chat-turn side effects (transcript entry plus memory entry)
// off the response path. Jobs run on a single worker in submission order,
// so user turns land before the assistant turns that answer them. Failures
// are logged and swallowed: persistence never alters an answer the caller
// has already received.
type Sink struct {
	transcripts TranscriptStore
	memories    domain.MemoryStore
	timeout     time.Duration

	jobs chan sinkJob
	wg   sync.WaitGroup
}

type sinkJob struct {
	conversationID uuid.UUID
	role           string
	text           string
}

// NewSink creates a sink and starts its worker.
func NewSink(transcripts TranscriptStore, memories domain.MemoryStore) *Sink {
	s := &Sink{
		transcripts: transcripts,
		memories:    memories,
		timeout:     30 * time.Second,
		jobs:        make(chan sinkJob, 128),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// UserTurn schedules persistence of a user message.
func (s *Sink) UserTurn(conversationID uuid.UUID, text string) {
	s.enqueue(sinkJob{conversationID: conversationID, role: domain.RoleUser, text: text})
}

// AssistantTurn schedules persistence of a completed assistant answer.
func (s *Sink) AssistantTurn(conversationID uuid.UUID, text string) {
	s.enqueue(sinkJob{conversationID: conversationID, role: domain.RoleAssistant, text: text})
}

// Close stops accepting jobs and drains the queue.
func (s *Sink) Close() {
	close(s.jobs)
	s.wg.Wait()
}

func (s *Sink) enqueue(job sinkJob) {
	select {
	case s.jobs <- job:
	default:
		// Best-effort contract: under sustained backlog we drop rather
		// than stall the caller.
		log.Printf("[SINK] Queue full, dropping %s turn for conversation %s", job.role, job.conversationID)
	}
}

func (s *Sink) run() {
	defer s.wg.Done()
	for job := range s.jobs {
		s.persist(job)
	}
}

// persist performs both sub-steps independently; one failing does not stop
// the other.
func (s *Sink) persist(job sinkJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.transcripts.AppendTurn(ctx, job.conversationID, job.role, job.text); err != nil {
		log.Printf("[SINK] Failed to append %s turn for conversation %s: %v", job.role, job.conversationID, err)
	}
	if err := s.memories.Add(ctx, job.conversationID.String(), job.role, job.text); err != nil {
		log.Printf("[SINK] Failed to add %s memory for conversation %s: %v", job.role, job.conversationID, err)
	}
}
