package documents

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"

	"github.com/recall-ai/cli/internal/domain"
)

// Loader turns raw sources (PDF bytes, web pages) into page-ordered text.
// A load failure aborts ingestion for the whole source; the caller never
// indexes a half-loaded source.
type Loader struct {
	httpClient *http.Client
}

// NewLoader creates a new loader.
func NewLoader() *Loader {
	return &Loader{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LoadPDF extracts text from PDF bytes, one RawDocument per page.
func (l *Loader) LoadPDF(data []byte) ([]domain.RawDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var docs []domain.RawDocument
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, domain.RawDocument{Text: text, Page: i + 1})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no readable text in PDF")
	}
	return docs, nil
}

// LoadURL fetches a web page and extracts its visible text.
func (l *Loader) LoadURL(ctx context.Context, url string) ([]domain.RawDocument, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	text := strings.TrimSpace(extractTextFromHTML(string(body)))
	if text == "" {
		return nil, fmt.Errorf("no readable text at URL")
	}
	return []domain.RawDocument{{Text: text, Page: 1}}, nil
}

// extractTextFromHTML strips tags, script and style content, collapsing
// the remainder into whitespace-separated text.
func extractTextFromHTML(html string) string {
	var result strings.Builder
	inTag := false
	skipDepth := 0
	lower := strings.ToLower(html)

	for i := 0; i < len(html); i++ {
		r := html[i]
		if r == '<' {
			inTag = true
			rest := lower[i:]
			switch {
			case strings.HasPrefix(rest, "<script"), strings.HasPrefix(rest, "<style"):
				skipDepth++
			case strings.HasPrefix(rest, "</script"), strings.HasPrefix(rest, "</style"):
				if skipDepth > 0 {
					skipDepth--
				}
			}
			continue
		}
		if r == '>' {
			inTag = false
			result.WriteByte(' ')
			continue
		}
		if !inTag && skipDepth == 0 {
			result.WriteByte(r)
		}
	}

	return strings.Join(strings.Fields(result.String()), " ")
}
