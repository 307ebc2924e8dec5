// Package embedding provides clients for embedding models.
package embedding

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"docrag/internal/config"
)

// ErrUnavailable marks failures to reach the embedding backend at all
// (connection refused, timeout), as opposed to a rejected request.
var ErrUnavailable = errors.New("embedding backend unavailable")

// Client defines the interface for an embedding client.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// CreateEmbeddings returns one vector per input, in input order.
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// NewClient creates a new embedding client based on the provider in the config.
func NewClient(cfg config.EmbeddingConfig) Client {
	httpClient := &http.Client{Timeout: 120 * time.Second}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &openAICompatibleClient{cfg: cfg, client: httpClient}
	default:
		return &ollamaClient{cfg: cfg, client: httpClient}
	}
}

// single adapts a batch call to a single text.
func single(ctx context.Context, c Client, text string) ([]float32, error) {
	vectors, err := c.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
