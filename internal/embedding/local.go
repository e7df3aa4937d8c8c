package embedding

import (
	"context"
	"fmt"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/embeddings"
)

// LocalProvider wraps the embeddings.Client local HTTP backend. It is the
// fallback of last resort and declares no cost.
type LocalProvider struct {
	model     string
	dimension int
	client    embeddings.Client
}

// NewLocalProvider builds a LocalProvider over an embeddings.Client.
func NewLocalProvider(client embeddings.Client, model string, dimension int) *LocalProvider {
	return &LocalProvider{client: client, model: model, dimension: dimension}
}

func (p *LocalProvider) ID() string      { return ProviderLocal }
func (p *LocalProvider) Model() string   { return p.model }
func (p *LocalProvider) Dimensions() int { return p.dimension }

func (p *LocalProvider) Embed(ctx context.Context, texts []string) (Result, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := p.client.Embed(ctx, text)
		if err != nil {
			return Result{}, apperr.Embedding("local embedding call failed", err)
		}
		if p.dimension > 0 && len(vec) != p.dimension {
			return Result{}, apperr.Embedding(fmt.Sprintf("local embedding dimension mismatch: expected %d got %d", p.dimension, len(vec)), nil)
		}
		vectors = append(vectors, vec)
	}
	return Result{
		Vectors:    vectors,
		ProviderID: ProviderLocal,
		ModelID:    p.model,
		Dimensions: p.dimension,
	}, nil
}
