// Package llm provides a client for an Ollama-style text generation backend.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docrag/internal/config"
	"docrag/pkg/log"
)

// Client defines the interface for a generation client.
type Client interface {
	// Generate returns the concatenation of every streamed fragment.
	Generate(ctx context.Context, model, prompt string) (string, error)
	// Stream calls fn with each fragment in arrival order.
	Stream(ctx context.Context, model, prompt string, fn func(fragment string) error) error
}

type ollamaClient struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new generation client from the config.
func NewClient(cfg config.LLMConfig) Client {
	return &ollamaClient{
		baseURL: cfg.Endpoint(),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

func (c *ollamaClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	var sb strings.Builder
	err := c.Stream(ctx, model, prompt, func(fragment string) error {
		sb.WriteString(fragment)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (c *ollamaClient) Stream(ctx context.Context, model, prompt string, fn func(fragment string) error) error {
	reqBytes, err := json.Marshal(generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &UpstreamError{Op: "call generate api", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Op: "call generate api", StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}

	for frame, err := range Frames(resp.Body) {
		if err != nil {
			return &UpstreamError{Op: "read generate stream", Err: err}
		}
		if frame.Skipped {
			log.Warnf("[LLMClient] 跳过无法解析的响应帧: %q", frame.Raw)
			continue
		}
		if frame.Response == "" {
			continue
		}
		if err := fn(frame.Response); err != nil {
			return err
		}
	}
	return nil
}
