package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitByBytes(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		max   int
		parts int
	}{
		{name: "short", text: "hello", max: 10, parts: 1},
		{name: "exact", text: "hello", max: 5, parts: 1},
		{name: "ascii", text: strings.Repeat("a", 25), max: 10, parts: 3},
		{name: "multibyte", text: strings.Repeat("ж", 10), max: 5, parts: 5},
		{name: "no limit", text: "hello", max: 0, parts: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := splitByBytes(tt.text, tt.max)
			assert.Len(t, parts, tt.parts)
			assert.Equal(t, tt.text, strings.Join(parts, ""))
			for _, p := range parts {
				assert.True(t, utf8.ValidString(p))
				if tt.max > 0 {
					assert.LessOrEqual(t, len(p), tt.max)
				}
			}
		})
	}
}

func TestTruncateByBytes(t *testing.T) {
	assert.Equal(t, "hello", truncateByBytes("hello", 10))
	assert.Equal(t, "hel", truncateByBytes("hello", 3))
	assert.Equal(t, "жж", truncateByBytes("жжж", 5))
}

func TestFetch(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(png)
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := &Client{httpClient: srv.Client()}

	img, err := c.fetch(context.Background(), srv.URL+"/photo")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, png, img.Data)

	_, err = c.fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", extension("image/png"))
	assert.Equal(t, ".mp4", extension("video/mp4"))
	assert.Equal(t, ".jpg", extension("application/octet-stream"))
}
