package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/fabfab/ragcore/internal/apperr"
)

// pricePerThousandTokens is a static approximation used to stamp a Cost
// Record for cloud embedding calls; real billing is reconciled out of band.
const pricePerThousandTokens = 0.00002

// CloudProvider calls an OpenAI-compatible embeddings endpoint. Two
// instances back the registry's general_cloud and code_cloud entries,
// differing only in model and declared id.
type CloudProvider struct {
	id         string
	model      string
	dimensions int
	client     openai.Client
}

// NewCloudProvider builds a CloudProvider. baseURL may be empty to use
// OpenAI's default endpoint, or point at a compatible gateway.
func NewCloudProvider(id, apiKey, baseURL, model string, dimensions int) *CloudProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &CloudProvider{
		id:         id,
		model:      model,
		dimensions: dimensions,
		client:     openai.NewClient(opts...),
	}
}

func (p *CloudProvider) ID() string      { return p.id }
func (p *CloudProvider) Model() string   { return p.model }
func (p *CloudProvider) Dimensions() int { return p.dimensions }

func (p *CloudProvider) Embed(ctx context.Context, texts []string) (Result, error) {
	if len(texts) == 0 {
		return Result{ProviderID: p.id, ModelID: p.model, Dimensions: p.dimensions}, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: p.model,
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return Result{}, apperr.Embedding(fmt.Sprintf("%s embedding call failed", p.id), err)
	}
	if len(resp.Data) != len(texts) {
		return Result{}, apperr.Embedding(fmt.Sprintf("%s returned %d embeddings for %d inputs", p.id, len(resp.Data), len(texts)), nil)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}

	tokens := int(resp.Usage.TotalTokens)
	return Result{
		Vectors:    vectors,
		ProviderID: p.id,
		ModelID:    p.model,
		Dimensions: p.dimensions,
		TokensUsed: tokens,
		CostUSD:    float64(tokens) / 1000 * pricePerThousandTokens,
	}, nil
}
