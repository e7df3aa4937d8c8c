package search

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// Weights controls the per-source contribution to Reciprocal Rank Fusion.
type Weights struct {
	Vector float64
	BM25   float64
}

// DefaultWeights is used when caller-supplied weights are missing or
// invalid (spec §4.I).
var DefaultWeights = Weights{Vector: 0.7, BM25: 0.3}

func (w Weights) normalized() Weights {
	if !(w.Vector > 0) || !(w.BM25 > 0) || math.IsInf(w.Vector, 0) || math.IsInf(w.BM25, 0) ||
		math.IsNaN(w.Vector) || math.IsNaN(w.BM25) {
		w = DefaultWeights
	}
	sum := w.Vector + w.BM25
	return Weights{Vector: w.Vector / sum, BM25: w.BM25 / sum}
}

// HybridFuser is component I.
type HybridFuser struct {
	vector *VectorSearcher
	bm25   *BM25Searcher
}

// NewHybridFuser builds a HybridFuser over an existing vector and BM25
// searcher.
func NewHybridFuser(vector *VectorSearcher, bm25 *BM25Searcher) *HybridFuser {
	return &HybridFuser{vector: vector, bm25: bm25}
}

// HybridQuery describes one hybrid-search invocation.
type HybridQuery struct {
	Query         string
	CollectionID  string
	TopK          int
	Weights       Weights
	RRFK          int
	MinSimilarity float64
	Provider      string
}

// Search runs G and H concurrently, expanding top_k 3x before fusion, then
// combines results with weighted Reciprocal Rank Fusion (spec §4.I).
func (f *HybridFuser) Search(ctx context.Context, q HybridQuery) ([]Result, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 10
	}
	rrfK := q.RRFK
	if rrfK <= 0 {
		rrfK = 60
	}
	expanded := topK * 3
	if expanded < topK {
		expanded = topK
	}
	weights := q.Weights.normalized()

	var vectorResults, bm25Results []Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := f.vector.Search(gctx, VectorQuery{
			Query: q.Query, CollectionID: q.CollectionID, TopK: expanded,
			MinSimilarity: q.MinSimilarity, ProviderOverride: q.Provider,
		})
		if err != nil {
			return err
		}
		vectorResults = res
		return nil
	})
	g.Go(func() error {
		res, err := f.bm25.Search(gctx, TextQuery{Query: q.Query, CollectionID: q.CollectionID, TopK: expanded})
		if err != nil {
			return err
		}
		bm25Results = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fuse(vectorResults, bm25Results, weights, rrfK, topK), nil
}

// fuse combines two ranked result sets with per-source-weighted RRF, then
// truncates to topK, breaking ties by stable insertion order (spec §4.I,
// §5 ordering guarantee).
func fuse(vectorResults, bm25Results []Result, weights Weights, rrfK, topK int) []Result {
	byID := make(map[int64]*Result)
	var order []int64

	addContribution := func(res []Result, weight float64, isVector bool) {
		for i, r := range res {
			existing, ok := byID[r.ChunkID]
			if !ok {
				cp := r
				cp.FusedScore = 0
				byID[r.ChunkID] = &cp
				order = append(order, r.ChunkID)
				existing = byID[r.ChunkID]
			}
			contribution := weight / float64(rrfK+i+1)
			existing.FusedScore += contribution
			if isVector {
				existing.Similarity = r.Similarity
				existing.VectorRank = i
			} else {
				existing.BM25Score = r.BM25Score
				existing.BM25Rank = i
			}
		}
	}

	addContribution(vectorResults, weights.Vector, true)
	addContribution(bm25Results, weights.BM25, false)

	out := make([]Result, 0, len(order))
	for _, id := range order {
		r := byID[id]
		switch {
		case r.VectorRank >= 0 && r.BM25Rank >= 0:
			r.Source = "both"
		case r.VectorRank >= 0:
			r.Source = "vector"
		default:
			r.Source = "bm25"
		}
		r.BaseSimilarity = r.FusedScore
		out = append(out, *r)
	}

	stableSortByFusedScoreDesc(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// stableSortByFusedScoreDesc sorts by FusedScore descending, preserving the
// relative order of equal-score elements (spec §5: "stable tie-break by
// insertion order").
func stableSortByFusedScoreDesc(results []Result) {
	// insertion sort is stable and fine at hybrid result-set sizes (≤ a few hundred)
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j-1].FusedScore < results[j].FusedScore {
			results[j-1], results[j] = results[j], results[j-1]
			j--
		}
	}
}
