// Package memorystore is a REST adapter for the long-term memory service.
// The service owns extraction and consolidation; this client only adds raw
// conversation messages and searches semantically, scoped per conversation.
package memorystore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/recall-ai/cli/internal/domain"
)

// Ensure Client implements the interface.
var _ domain.MemoryStore = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.mem0.ai"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the memory service client.
type Config struct {
	// BaseURL is the memory service API base URL.
	BaseURL string

	// APIKey authenticates requests (required by the hosted service).
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Client talks to a mem0-compatible memory API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new memory service client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type addRequest struct {
	Messages []message `json:"messages"`
	UserID   string    `json:"user_id"`
}

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

type memoryResult struct {
	ID     string  `json:"id"`
	Memory string  `json:"memory"`
	Score  float64 `json:"score"`
}

// Add stores one conversation message in the conversation's memory scope.
// The service may summarize, merge or discard it.
func (c *Client) Add(ctx context.Context, conversationID, role, text string) error {
	body := addRequest{
		Messages: []message{{Role: role, Content: text}},
		UserID:   conversationID,
	}
	return c.post(ctx, "/v1/memories/", body, nil)
}

// Search returns up to limit memories relevant to the query, most relevant
// first, scoped to the conversation.
func (c *Client) Search(ctx context.Context, conversationID, query string, limit int) ([]domain.MemoryEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	body := searchRequest{Query: query, UserID: conversationID, Limit: limit}

	var results []memoryResult
	if err := c.post(ctx, "/v1/memories/search/", body, &results); err != nil {
		return nil, err
	}

	entries := make([]domain.MemoryEntry, 0, len(results))
	for _, r := range results {
		if r.Memory == "" {
			continue
		}
		entries = append(entries, domain.MemoryEntry{
			ID:             r.ID,
			ConversationID: conversationID,
			Text:           r.Memory,
		})
	}
	return entries, nil
}

// post sends a JSON request and optionally decodes the JSON response.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("memory API error: %d - %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
