// Package search implements components G-K: vector search, BM25 search,
// reciprocal-rank-fusion hybrid fusion, trust/recency rescoring, and
// cross-encoder reranking.
package search

import "github.com/fabfab/ragcore/internal/model"

// Citation is the subset of a chunk's provenance surfaced to callers.
type Citation struct {
	Title   string
	Page    string
	Section string
}

// Result is one retrieved chunk, accumulating fields as it passes through
// G/H/I, then optionally J and K.
type Result struct {
	ChunkID    int64
	DocumentID string
	Text       string
	DocTitle   string
	SourceURL  *string
	Metadata   model.Metadata
	Citation   Citation

	Similarity float64 // from G
	VectorRank int     // 0-based rank in G's result set, -1 if absent

	BM25Score float64 // from H, normalized [0,1]
	BM25Rank  int     // 0-based rank in H's result set, -1 if absent

	FusedScore float64 // from I
	Source     string  // "vector" | "bm25" | "both"

	// BaseSimilarity preserves the pre-rescore/pre-rerank score so callers
	// that want the original ranking signal do not have to recompute it.
	BaseSimilarity float64
	TrustWeight    float64
	RecencyWeight  float64

	RerankScore    float64
	RerankProvider string
}
