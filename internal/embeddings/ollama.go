// Package embeddings provides the low-level HTTP client the Embedding
// Router's local provider calls into (component B, spec §4.B). Kept
// separate from internal/embedding so the wire format of a specific local
// backend never leaks into the provider-selection logic.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client generates a single embedding vector per call.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ollamaClient struct {
	host   string
	model  string
	client *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewClient constructs a Client backed by Ollama's /api/embeddings endpoint.
func NewClient(host, model string, timeout time.Duration) Client {
	return &ollamaClient{
		host:  strings.TrimRight(host, "/"),
		model: model,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *ollamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	url := fmt.Sprintf("%s/api/embeddings", c.host)

	reqBody, err := json.Marshal(ollamaRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ollama embeddings API: %w", err)
	}
	defer resp.Body.Close()

	var payload ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}

	vec := make([]float32, len(payload.Embedding))
	for i, value := range payload.Embedding {
		vec[i] = float32(value)
	}
	return vec, nil
}
