// Package server exposes the ingestion, deletion and chat-turn operations
// over HTTP. Chat answers stream as server-sent events terminated by a
// [DONE] marker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recall-ai/cli/internal/chat"
	"github.com/recall-ai/cli/internal/domain"
	"github.com/recall-ai/cli/internal/vectorindex"
)

// ConversationStore is the transcript and source-list storage the server
// consumes.
type ConversationStore interface {
	CreateConversation(ctx context.Context, title string) (*domain.Conversation, error)
	ListConversations(ctx context.Context) ([]*domain.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	AddSource(ctx context.Context, conversationID uuid.UUID, name, kind string) error
	RemoveSource(ctx context.Context, conversationID uuid.UUID, name string) error
}

// Ingestor indexes uploaded documents and URLs.
type Ingestor interface {
	IngestPDF(ctx context.Context, conversationID, name string, data []byte) (int, error)
	IngestURL(ctx context.Context, conversationID, url string) (int, error)
}

// TurnStreamer runs one chat turn, streaming tokens to the callback.
type TurnStreamer interface {
	Stream(ctx context.Context, req chat.TurnRequest, onToken func(string) error) (string, error)
}

// Server wires the HTTP routes to the pipeline.
type Server struct {
	store    ConversationStore
	ingestor Ingestor
	index    vectorindex.Index
	turns    TurnStreamer
	mux      *http.ServeMux
}

// New creates the server and registers its routes.
func New(store ConversationStore, ingestor Ingestor, index vectorindex.Index, turns TurnStreamer) *Server {
	s := &Server{
		store:    store,
		ingestor: ingestor,
		index:    index,
		turns:    turns,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/chats", s.handleCreateChat)
	s.mux.HandleFunc("GET /api/chats", s.handleListChats)
	s.mux.HandleFunc("GET /api/chats/{id}", s.handleGetChat)
	s.mux.HandleFunc("DELETE /api/chats/{id}", s.handleDeleteChat)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/upload/url", s.handleUploadURL)
	s.mux.HandleFunc("POST /api/delete", s.handleDeleteSource)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// --- Wire types ---

type conversationJSON struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"createdAt"`
	Messages  []turnJSON   `json:"messages,omitempty"`
	Sources   []sourceJSON `json:"sources,omitempty"`
}

type turnJSON struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type sourceJSON struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func toConversationJSON(conv *domain.Conversation) conversationJSON {
	out := conversationJSON{
		ID:        conv.ID.String(),
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
	}
	for _, t := range conv.Turns {
		out.Messages = append(out.Messages, turnJSON{Role: t.Role, Content: t.Content, CreatedAt: t.CreatedAt})
	}
	for _, src := range conv.Sources {
		out.Sources = append(out.Sources, sourceJSON{Name: src.Name, Kind: src.Kind})
	}
	return out
}

// --- Conversation CRUD ---

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	// An empty body is fine; the title defaults.
	_ = json.NewDecoder(r.Body).Decode(&req)

	conv, err := s.store.CreateConversation(r.Context(), req.Title)
	if err != nil {
		log.Printf("[SERVER] Failed to create conversation: %v", err)
		http.Error(w, "failed to create conversation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toConversationJSON(conv))
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListConversations(r.Context())
	if err != nil {
		log.Printf("[SERVER] Failed to list conversations: %v", err)
		http.Error(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}
	out := make([]conversationJSON, 0, len(convs))
	for _, conv := range convs {
		out = append(out, toConversationJSON(conv))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r.PathValue("id"))
	if !ok {
		return
	}
	conv, err := s.store.GetConversation(r.Context(), id)
	if errors.Is(err, domain.ErrConversationNotFound) {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[SERVER] Failed to get conversation %s: %v", id, err)
		http.Error(w, "failed to get conversation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toConversationJSON(conv))
}

// handleDeleteChat removes the conversation and cascades into its vector
// collection. The cascade is best-effort: an index failure is logged and
// the record still goes away.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r.PathValue("id"))
	if !ok {
		return
	}
	if err := s.index.DropConversation(r.Context(), id.String()); err != nil {
		log.Printf("[SERVER] Failed to drop vector collection for %s: %v", id, err)
	}
	err := s.store.DeleteConversation(r.Context(), id)
	if errors.Is(err, domain.ErrConversationNotFound) {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[SERVER] Failed to delete conversation %s: %v", id, err)
		http.Error(w, "failed to delete conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Ingestion ---

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "no file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	id, ok := parseID(w, r.FormValue("chatId"))
	if !ok {
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	count, err := s.ingestor.IngestPDF(r.Context(), id.String(), header.Filename, data)
	if err != nil {
		log.Printf("[SERVER] Failed to ingest %q for %s: %v", header.Filename, id, err)
		http.Error(w, "failed to index document", http.StatusBadGateway)
		return
	}

	// Recording the source is best-effort, like the rest of the
	// transcript-side bookkeeping.
	if err := s.store.AddSource(r.Context(), id, header.Filename, domain.KindDocument); err != nil {
		log.Printf("[SERVER] Failed to record source %q for %s: %v", header.Filename, id, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "indexed", "segments": count})
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string `json:"url"`
		ChatID string `json:"chatId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "no url provided", http.StatusBadRequest)
		return
	}
	id, ok := parseID(w, req.ChatID)
	if !ok {
		return
	}

	count, err := s.ingestor.IngestURL(r.Context(), id.String(), req.URL)
	if err != nil {
		log.Printf("[SERVER] Failed to ingest URL %q for %s: %v", req.URL, id, err)
		http.Error(w, "failed to index url", http.StatusBadGateway)
		return
	}

	if err := s.store.AddSource(r.Context(), id, req.URL, domain.KindURL); err != nil {
		log.Printf("[SERVER] Failed to record source %q for %s: %v", req.URL, id, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "indexed", "segments": count})
}

// handleDeleteSource removes a source's segments from the index and its
// record from the conversation. The two steps are independent; each is
// attempted even when the other fails.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName string `json:"fileName"`
		ChatID   string `json:"chatId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		http.Error(w, "no fileName provided", http.StatusBadRequest)
		return
	}
	id, ok := parseID(w, req.ChatID)
	if !ok {
		return
	}

	indexErr := s.index.DeleteByTag(r.Context(), id.String(), req.FileName)
	if indexErr != nil {
		log.Printf("[SERVER] Failed to delete segments %q for %s: %v", req.FileName, id, indexErr)
	}
	storeErr := s.store.RemoveSource(r.Context(), id, req.FileName)
	if storeErr != nil {
		log.Printf("[SERVER] Failed to remove source %q for %s: %v", req.FileName, id, storeErr)
	}

	if indexErr != nil || storeErr != nil {
		http.Error(w, "failed to delete source", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// --- Chat turn ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	ChatID   string        `json:"chatId"`
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// handleChat validates the turn, then streams tokens as SSE data events
// until the generator finishes, ending with a [DONE] marker. Input errors
// are rejected before any side effect; a generation failure after the
// stream started can only terminate the stream.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id, ok := parseID(w, req.ChatID)
	if !ok {
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "no messages provided", http.StatusBadRequest)
		return
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role != domain.RoleUser || strings.TrimSpace(last.Content) == "" {
		http.Error(w, "last message must be a non-empty user message", http.StatusBadRequest)
		return
	}

	model, err := chat.ResolveModel(req.Model)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown model %q", req.Model), http.StatusBadRequest)
		return
	}

	history := make([]domain.Turn, 0, len(req.Messages)-1)
	for _, m := range req.Messages[:len(req.Messages)-1] {
		history = append(history, domain.Turn{Role: m.Role, Content: m.Content})
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	turn := chat.TurnRequest{
		ConversationID: id,
		Model:          model,
		History:        history,
		Query:          last.Content,
	}
	_, err = s.turns.Stream(r.Context(), turn, func(token string) error {
		payload, err := json.Marshal(map[string]string{"token": token})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		log.Printf("[SERVER] Chat turn failed for %s: %v", id, err)
		fmt.Fprintf(w, "event: error\ndata: %q\n\n", "generation failed")
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// --- Helpers ---

// parseID validates a conversation id, writing a client error when it is
// missing or malformed.
func parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if raw == "" {
		http.Error(w, "chat id is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[SERVER] Failed to encode response: %v", err)
	}
}
