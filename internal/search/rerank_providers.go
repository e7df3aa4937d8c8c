package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/ollama"
)

// CloudRerankProvider scores (query, candidate) pairs with a cloud chat
// model prompted to return a single relevance number, since the pack's
// cloud SDKs expose chat completion rather than a dedicated rerank
// endpoint.
type CloudRerankProvider struct {
	client openai.Client
	model  string
}

// NewCloudRerankProvider builds a CloudRerankProvider.
func NewCloudRerankProvider(apiKey, baseURL, model string) *CloudRerankProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &CloudRerankProvider{client: openai.NewClient(opts...), model: model}
}

func (p *CloudRerankProvider) ID() string { return "cloud_rerank" }

func (p *CloudRerankProvider) ScoreBatch(ctx context.Context, query string, candidates []string) ([]float64, error) {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: p.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(rerankSystemPrompt),
				openai.UserMessage(fmt.Sprintf("Query: %s\n\nCandidate: %s", query, c)),
			},
		})
		if err != nil {
			return nil, apperr.Rerank("cloud rerank call failed", err)
		}
		if len(resp.Choices) == 0 {
			return nil, apperr.Rerank("cloud rerank returned no choices", nil)
		}
		scores[i] = parseScore(resp.Choices[0].Message.Content)
	}
	return scores, nil
}

const rerankSystemPrompt = "Score how relevant the candidate passage is to the query on a scale from 0.0 to 1.0. Reply with only the number."

func parseScore(text string) float64 {
	text = strings.TrimSpace(text)
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		if f < 0 {
			return 0
		}
		if f > 1 {
			return 1
		}
		return f
	}
	return 0.5
}

// LocalRerankProvider scores pairs with an on-host chat model via Ollama,
// lazily initializing its client on first use and guarding against
// duplicate initialization (spec §5: "single shared instance protected
// against duplicate initialization").
type LocalRerankProvider struct {
	host  string
	model string

	once   sync.Once
	client ollama.Client
}

// NewLocalRerankProvider builds a LocalRerankProvider. The underlying
// client is not created until the first ScoreBatch call.
func NewLocalRerankProvider(host, model string) *LocalRerankProvider {
	return &LocalRerankProvider{host: host, model: model}
}

func (p *LocalRerankProvider) ID() string { return "local_rerank" }

func (p *LocalRerankProvider) ensure() {
	p.once.Do(func() {
		p.client = ollama.NewClient(p.host, p.model)
	})
}

func (p *LocalRerankProvider) ScoreBatch(ctx context.Context, query string, candidates []string) ([]float64, error) {
	p.ensure()
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		reply, err := p.client.Generate(ctx, []ollama.Message{
			{Role: "system", Content: rerankSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Query: %s\n\nCandidate: %s", query, c)},
		})
		if err != nil {
			return nil, apperr.Rerank("local rerank call failed", err)
		}
		scores[i] = parseScore(reply)
	}
	return scores, nil
}
