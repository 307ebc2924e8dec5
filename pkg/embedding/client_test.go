package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/config"
)

func TestOllamaClientBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		out := ollamaEmbedResponse{}
		for i := range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{Provider: "ollama", BaseURL: srv.URL + "/", Model: "nomic-embed-text"})
	vectors, err := c.CreateEmbeddings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{2, 1}, vectors[2])

	one, err := c.CreateEmbedding(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, one)
}

func TestOpenAIClientRestoresInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0.5]},{"index":0,"embedding":[0.25]}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{Provider: "openai", BaseURL: srv.URL, APIKey: "secret", Model: "m"})
	vectors, err := c.CreateEmbeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.25}, {0.5}}, vectors)
}

func TestUnreachableBackendIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(config.EmbeddingConfig{BaseURL: url, Model: "m"})
	_, err := c.CreateEmbeddings(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestRejectedRequestIsNotUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "input too long", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{BaseURL: srv.URL, Model: "m"})
	_, err := c.CreateEmbeddings(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))
}
