// Package llm provides a single-shot text-completion capability over the
// Anthropic SDK, scoped to what component L's contradiction detector needs:
// send a strict-JSON prompt, get a text reply back. It deliberately skips
// the multi-turn/tool-calling/streaming surface of a general chat client.
package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fabfab/ragcore/internal/apperr"
)

// Client issues single-shot completions against an LLM backend.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type anthropicClient struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

// New builds a Client backed by the Anthropic SDK. baseURL may be empty to
// use the SDK's default endpoint.
func New(apiKey, baseURL, model string) Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &anthropicClient{
		sdk:       anthropic.NewClient(opts...),
		model:     model,
		maxTokens: 1024,
	}
}

func (c *anthropicClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", apperr.LLM("anthropic completion call failed", err)
	}

	var text string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}
	if text == "" {
		return "", apperr.LLM("anthropic completion returned no text content", nil)
	}
	return text, nil
}
