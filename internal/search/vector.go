package search

import (
	"context"
	"strings"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/embedding"
	"github.com/fabfab/ragcore/internal/storage"
)

// vectorStore is the subset of storage.Store component G needs.
type vectorStore interface {
	VectorQuery(ctx context.Context, collectionID string, embedding []float32, limit int) ([]storage.VectorHit, error)
	CollectionEmbeddingProvider(ctx context.Context, collectionID string) (string, bool, error)
}

// VectorSearcher is component G.
type VectorSearcher struct {
	store  vectorStore
	router *embedding.Router
}

// NewVectorSearcher builds a VectorSearcher.
func NewVectorSearcher(store vectorStore, router *embedding.Router) *VectorSearcher {
	return &VectorSearcher{store: store, router: router}
}

// VectorQuery describes one vector-search invocation (spec §4.G).
type VectorQuery struct {
	Query            string
	CollectionID     string
	TopK             int
	MinSimilarity    float64
	ProviderOverride string
}

// Search embeds the query with the collection's declared provider and
// returns the top_k nearest chunks above min_similarity.
func (s *VectorSearcher) Search(ctx context.Context, q VectorQuery) ([]Result, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, apperr.Validation("query must not be empty", nil)
	}
	if q.TopK <= 0 {
		return nil, apperr.Validation("top_k must be positive", nil)
	}
	minSim := q.MinSimilarity
	if minSim == 0 {
		minSim = 0.5
	}

	cc := embedding.ContentContext{CollectionID: q.CollectionID}
	if provider, ok, err := s.store.CollectionEmbeddingProvider(ctx, q.CollectionID); err == nil && ok {
		q.ProviderOverride = provider
	}

	embedded, err := s.router.Embed(ctx, q.Query, cc, q.ProviderOverride)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.VectorQuery(ctx, q.CollectionID, embedded.Vectors[0], q.TopK*3+q.TopK)
	if err != nil {
		return nil, err
	}

	var out []Result
	for _, h := range hits {
		if h.Similarity < minSim {
			continue
		}
		out = append(out, toResult(h, len(out)))
		if len(out) >= q.TopK {
			break
		}
	}
	return out, nil
}

func toResult(h storage.VectorHit, rank int) Result {
	citation := Citation{Title: h.DocTitle}
	if page, ok := h.ChunkMetadata.String("page"); ok {
		citation.Page = page
	}
	if section, ok := h.ChunkMetadata.String("section"); ok {
		citation.Section = section
	}
	return Result{
		ChunkID:    h.ChunkID,
		DocumentID: h.DocumentID,
		Text:       h.Text,
		DocTitle:   h.DocTitle,
		Metadata:   h.ChunkMetadata,
		Citation:   citation,
		Similarity: h.Similarity,
		VectorRank: rank,
		BM25Rank:   -1,
	}
}
