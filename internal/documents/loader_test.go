package documents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadURLExtractsVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>
			<head><title>Test Page</title><style>body { color: red; }</style></head>
			<body>
				<script>console.log("hidden");</script>
				<h1>Heading</h1>
				<p>Some   body
				text.</p>
			</body>
		</html>`))
	}))
	defer srv.Close()

	loader := NewLoader()
	docs, err := loader.LoadURL(context.Background(), srv.URL)

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 1, docs[0].Page)
	assert.Contains(t, docs[0].Text, "Heading")
	assert.Contains(t, docs[0].Text, "Some body text.")
	assert.NotContains(t, docs[0].Text, "console.log")
	assert.NotContains(t, docs[0].Text, "color: red")
}

func TestLoadURLNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	loader := NewLoader()
	_, err := loader.LoadURL(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestLoadURLEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><script>var x = 1;</script></head><body></body></html>`))
	}))
	defer srv.Close()

	loader := NewLoader()
	_, err := loader.LoadURL(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no readable text")
}

func TestLoadPDFInvalidBytes(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadPDF([]byte("not a pdf"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open PDF")
}

func TestExtractTextFromHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "plain tags",
			html: "<p>hello</p><p>world</p>",
			want: "hello world",
		},
		{
			name: "nested script stripped",
			html: "<div>before<script>alert(1)</script>after</div>",
			want: "before after",
		},
		{
			name: "style stripped",
			html: "<style>.a{}</style>visible",
			want: "visible",
		},
		{
			name: "whitespace collapsed",
			html: "a\n\n   b\t\tc",
			want: "a b c",
		},
		{
			name: "attributes ignored",
			html: `<a href="https://example.com">link</a>`,
			want: "link",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTextFromHTML(tt.html))
		})
	}
}
