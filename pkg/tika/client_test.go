package tika

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"copilot-chat-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write([]byte("extracted: " + string(body)))
	}))
	defer srv.Close()

	client := NewClient(config.TikaConfig{ServerURL: srv.URL})
	text, err := client.ExtractText(context.Background(), strings.NewReader("raw"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "extracted: raw", text)
}

func TestExtractTextServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(config.TikaConfig{ServerURL: srv.URL})
	_, err := client.ExtractText(context.Background(), strings.NewReader("raw"), "x.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", DetectMimeType("README"))
	assert.Equal(t, "application/octet-stream", DetectMimeType("file.unknownext"))
	assert.Equal(t, "application/pdf", DetectMimeType("paper.pdf"))
}
