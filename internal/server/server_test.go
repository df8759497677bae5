package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-ai/cli/internal/chat"
	"github.com/recall-ai/cli/internal/domain"
)

type fakeStore struct {
	conversations map[uuid.UUID]*domain.Conversation
	addedSources  []domain.Source
	removed       []string
	deleteErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{conversations: make(map[uuid.UUID]*domain.Conversation)}
}

func (f *fakeStore) CreateConversation(ctx context.Context, title string) (*domain.Conversation, error) {
	if title == "" {
		title = "New Chat"
	}
	conv := &domain.Conversation{ID: uuid.New(), Title: title, CreatedAt: time.Now()}
	f.conversations[conv.ID] = conv
	return conv, nil
}

func (f *fakeStore) ListConversations(ctx context.Context) ([]*domain.Conversation, error) {
	out := make([]*domain.Conversation, 0, len(f.conversations))
	for _, c := range f.conversations {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	conv, ok := f.conversations[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return conv, nil
}

func (f *fakeStore) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.conversations[id]; !ok {
		return domain.ErrConversationNotFound
	}
	delete(f.conversations, id)
	return nil
}

func (f *fakeStore) AddSource(ctx context.Context, conversationID uuid.UUID, name, kind string) error {
	f.addedSources = append(f.addedSources, domain.Source{ConversationID: conversationID, Name: name, Kind: kind})
	return nil
}

func (f *fakeStore) RemoveSource(ctx context.Context, conversationID uuid.UUID, name string) error {
	f.removed = append(f.removed, name)
	return nil
}

type fakeIngestor struct {
	pdfCalls []string
	urlCalls []string
	count    int
	err      error
}

func (f *fakeIngestor) IngestPDF(ctx context.Context, conversationID, name string, data []byte) (int, error) {
	f.pdfCalls = append(f.pdfCalls, name)
	return f.count, f.err
}

func (f *fakeIngestor) IngestURL(ctx context.Context, conversationID, url string) (int, error) {
	f.urlCalls = append(f.urlCalls, url)
	return f.count, f.err
}

type fakeIndex struct {
	deletedTags []string
	dropped     []string
	deleteErr   error
}

func (f *fakeIndex) Upsert(ctx context.Context, conversationID string, segments []domain.Segment) error {
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, conversationID, query string, k int) ([]domain.SearchResult, error) {
	return nil, nil
}

func (f *fakeIndex) DeleteByTag(ctx context.Context, conversationID, tag string) error {
	f.deletedTags = append(f.deletedTags, tag)
	return f.deleteErr
}

func (f *fakeIndex) DropConversation(ctx context.Context, conversationID string) error {
	f.dropped = append(f.dropped, conversationID)
	return nil
}

type fakeStreamer struct {
	tokens []string
	err    error
	got    *chat.TurnRequest
	called bool
}

func (f *fakeStreamer) Stream(ctx context.Context, req chat.TurnRequest, onToken func(string) error) (string, error) {
	f.called = true
	f.got = &req
	var sb strings.Builder
	for _, tok := range f.tokens {
		if err := onToken(tok); err != nil {
			return "", err
		}
		sb.WriteString(tok)
	}
	if f.err != nil {
		return "", f.err
	}
	return sb.String(), nil
}

type testEnv struct {
	store    *fakeStore
	ingestor *fakeIngestor
	index    *fakeIndex
	streamer *fakeStreamer
	srv      *Server
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newFakeStore(),
		ingestor: &fakeIngestor{count: 3},
		index:    &fakeIndex{},
		streamer: &fakeStreamer{tokens: []string{"Hi", " there"}},
	}
	env.srv = New(env.store, env.ingestor, env.index, env.streamer)
	return env
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// --- Conversation CRUD ---

func TestCreateChat(t *testing.T) {
	env := newTestEnv()

	rec := postJSON(t, env.srv, "/api/chats", map[string]string{"title": "My research"})

	require.Equal(t, http.StatusCreated, rec.Code)
	var conv conversationJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, "My research", conv.Title)
	assert.NotEmpty(t, conv.ID)
}

func TestCreateChatEmptyBodyDefaultsTitle(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest("POST", "/api/chats", nil)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var conv conversationJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, "New Chat", conv.Title)
}

func TestGetChatNotFound(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest("GET", "/api/chats/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetChatInvalidID(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest("GET", "/api/chats/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteChatCascadesIntoIndex(t *testing.T) {
	env := newTestEnv()
	conv, err := env.store.CreateConversation(context.Background(), "doomed")
	require.NoError(t, err)

	req := httptest.NewRequest("DELETE", "/api/chats/"+conv.ID.String(), nil)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{conv.ID.String()}, env.index.dropped)
	_, err = env.store.GetConversation(context.Background(), conv.ID)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestDeleteChatNotFound(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest("DELETE", "/api/chats/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Ingestion ---

func multipartUpload(t *testing.T, chatID, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("chatId", chatID))
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadIndexesAndRecordsSource(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()

	body, contentType := multipartUpload(t, id.String(), "paper.pdf", []byte("%PDF-1.4 ..."))
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"paper.pdf"}, env.ingestor.pdfCalls)
	require.Len(t, env.store.addedSources, 1)
	assert.Equal(t, "paper.pdf", env.store.addedSources[0].Name)
	assert.Equal(t, domain.KindDocument, env.store.addedSources[0].Kind)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(3), resp["segments"])
}

func TestUploadMissingChatID(t *testing.T) {
	env := newTestEnv()

	body, contentType := multipartUpload(t, "", "paper.pdf", []byte("x"))
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.ingestor.pdfCalls, "validation failures must precede ingestion")
}

func TestUploadIngestFailure(t *testing.T) {
	env := newTestEnv()
	env.ingestor.err = errors.New("embedding service down")

	body, contentType := multipartUpload(t, uuid.NewString(), "paper.pdf", []byte("x"))
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, env.store.addedSources, "a failed ingest must not record a source")
}

func TestUploadURL(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()

	rec := postJSON(t, env.srv, "/api/upload/url", map[string]string{
		"url":    "https://example.com/article",
		"chatId": id.String(),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"https://example.com/article"}, env.ingestor.urlCalls)
	require.Len(t, env.store.addedSources, 1)
	assert.Equal(t, domain.KindURL, env.store.addedSources[0].Kind)
}

func TestUploadURLMissingURL(t *testing.T) {
	env := newTestEnv()

	rec := postJSON(t, env.srv, "/api/upload/url", map[string]string{"chatId": uuid.NewString()})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.ingestor.urlCalls)
}

// --- Source deletion ---

func TestDeleteSourceRemovesBothSides(t *testing.T) {
	env := newTestEnv()

	rec := postJSON(t, env.srv, "/api/delete", map[string]string{
		"fileName": "paper.pdf",
		"chatId":   uuid.NewString(),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"paper.pdf"}, env.index.deletedTags)
	assert.Equal(t, []string{"paper.pdf"}, env.store.removed)
}

func TestDeleteSourceIndexFailureStillRemovesRecord(t *testing.T) {
	env := newTestEnv()
	env.index.deleteErr = errors.New("index unavailable")

	rec := postJSON(t, env.srv, "/api/delete", map[string]string{
		"fileName": "paper.pdf",
		"chatId":   uuid.NewString(),
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, []string{"paper.pdf"}, env.store.removed,
		"the record removal is attempted even when the index step fails")
}

// --- Chat turn ---

func chatBody(chatID string, model string, messages ...[2]string) map[string]any {
	msgs := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, map[string]string{"role": m[0], "content": m[1]})
	}
	return map[string]any{"chatId": chatID, "model": model, "messages": msgs}
}

func TestChatStreamsSSE(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()

	rec := postJSON(t, env.srv, "/api/chat", chatBody(id.String(), "",
		[2]string{"user", "hello"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `data: {"token":"Hi"}`)
	assert.Contains(t, body, `data: {"token":" there"}`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"), "stream must end with the done marker")

	require.NotNil(t, env.streamer.got)
	assert.Equal(t, id, env.streamer.got.ConversationID)
	assert.Equal(t, "hello", env.streamer.got.Query)
	assert.Empty(t, env.streamer.got.History)
}

func TestChatPassesHistoryWithoutLastMessage(t *testing.T) {
	env := newTestEnv()

	rec := postJSON(t, env.srv, "/api/chat", chatBody(uuid.NewString(), "mistral/mistral-nemo",
		[2]string{"user", "first"},
		[2]string{"assistant", "answer"},
		[2]string{"user", "second"}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.streamer.got)
	assert.Equal(t, "second", env.streamer.got.Query)
	require.Len(t, env.streamer.got.History, 2)
	assert.Equal(t, "first", env.streamer.got.History[0].Content)
	assert.Equal(t, "mistral/mistral-nemo", env.streamer.got.Model)
}

func TestChatMissingChatID(t *testing.T) {
	env := newTestEnv()

	rec := postJSON(t, env.srv, "/api/chat", chatBody("", "", [2]string{"user", "hello"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.streamer.called, "validation failures must precede any side effect")
}

func TestChatUnknownModel(t *testing.T) {
	env := newTestEnv()

	rec := postJSON(t, env.srv, "/api/chat", chatBody(uuid.NewString(), "acme/imaginary-1",
		[2]string{"user", "hello"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.streamer.called)
}

func TestChatLastMessageMustBeUser(t *testing.T) {
	env := newTestEnv()

	rec := postJSON(t, env.srv, "/api/chat", chatBody(uuid.NewString(), "",
		[2]string{"user", "hello"},
		[2]string{"assistant", "hi"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.streamer.called)
}

func TestChatEmptyMessages(t *testing.T) {
	env := newTestEnv()

	rec := postJSON(t, env.srv, "/api/chat", chatBody(uuid.NewString(), ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatGenerationFailureEmitsErrorEvent(t *testing.T) {
	env := newTestEnv()
	env.streamer.tokens = []string{"par"}
	env.streamer.err = fmt.Errorf("gateway timeout")

	rec := postJSON(t, env.srv, "/api/chat", chatBody(uuid.NewString(), "",
		[2]string{"user", "hello"}))

	body := rec.Body.String()
	assert.Contains(t, body, "event: error")
	assert.NotContains(t, body, "[DONE]")
}
