package search

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/fabfab/ragcore/internal/cost"
	"github.com/fabfab/ragcore/internal/runtime"
)

const (
	hardMaxCandidates = 50
	defaultBatchSize  = 8
)

// RerankProvider scores (query, candidate) pairs. Implementations back the
// cloud_rerank and local_rerank entries; Reranker itself implements the
// none/pass-through behavior.
type RerankProvider interface {
	ID() string
	ScoreBatch(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// tracker is the subset of cost.Tracker the reranker needs.
type tracker interface {
	Track(ctx context.Context, in cost.TrackInput) error
}

// Reranker is component K: cross-encoder reranking with a cloud→local→
// pass-through fallback chain.
type Reranker struct {
	cloud     RerankProvider
	local     RerankProvider
	tracker   tracker
	batchSize int
	overrides *runtime.Store
	log       *zap.Logger
}

// NewReranker builds a Reranker. Either provider may be nil if not
// configured; a nil cloud or local provider is simply skipped in the
// fallback chain. A nil logger falls back to zap.NewNop(). overrides is
// consulted on every call: fallback mode forces local_rerank regardless of
// any per-call Options.Provider (spec §8 invariant 10).
func NewReranker(cloud, local RerankProvider, tr tracker, batchSize int, overrides *runtime.Store, logger *zap.Logger) *Reranker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{cloud: cloud, local: local, tracker: tr, batchSize: batchSize, overrides: overrides, log: logger}
}

// Options configures one rerank call (spec §4.K).
type Options struct {
	Provider      string // cloud_rerank | local_rerank | none; "" defaults to cloud_rerank
	TopK          int
	MaxCandidates int
}

// Rerank slices to max_candidates, calls the selected provider, falls back
// cloud→local→pass-through on failure, sorts by rerank_score descending,
// and slices to top_k.
func (r *Reranker) Rerank(ctx context.Context, query string, results []Result, opts Options) ([]Result, error) {
	maxCandidates := opts.MaxCandidates
	if maxCandidates <= 0 || maxCandidates > hardMaxCandidates {
		maxCandidates = hardMaxCandidates
	}
	candidates := results
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	provider, scores := r.scoreWithFallback(ctx, query, candidates, opts.Provider)

	out := make([]Result, len(candidates))
	for i, c := range candidates {
		if c.BaseSimilarity == 0 {
			c.BaseSimilarity = c.Similarity
		}
		c.RerankScore = scores[i]
		c.RerankProvider = provider
		out[i] = c
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RerankScore > out[j].RerankScore })

	topK := opts.TopK
	if topK <= 0 || topK > len(out) {
		topK = len(out)
	}
	return out[:topK], nil
}

// scoreWithFallback resolves a starting provider from requestedProvider
// (fallback mode overrides it to local_rerank unconditionally, per spec §8
// invariant 10) and walks cloud→local→pass-through from there.
func (r *Reranker) scoreWithFallback(ctx context.Context, query string, candidates []Result, requestedProvider string) (string, []float64) {
	tryCloud, tryLocal := true, true
	if r.overrides != nil && r.overrides.Load().FallbackMode {
		tryCloud = false
	} else {
		switch requestedProvider {
		case "local_rerank":
			tryCloud = false
		case "none":
			tryCloud, tryLocal = false, false
		}
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	if tryCloud && r.cloud != nil {
		scores, err := r.scoreBatched(ctx, r.cloud, query, texts)
		if err == nil {
			if trackErr := r.tracker.Track(ctx, cost.TrackInput{Provider: "cloud_rerank", Operation: "rerank", Tokens: 1}); trackErr != nil {
				r.log.Error("cost tracking failed", zap.Error(trackErr))
			}
			return "cloud_rerank", scores
		}
		r.log.Warn("cloud rerank failed, falling back to local", zap.Error(err))
	}

	if tryLocal && r.local != nil {
		scores, err := r.scoreBatched(ctx, r.local, query, texts)
		if err == nil {
			return "local_rerank", scores
		}
		r.log.Warn("local rerank failed, passing through", zap.Error(err))
	}

	// Pass-through contract (spec §4.K): rerank_score = similarity,
	// rerank_provider = none.
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Similarity
	}
	return "none", scores
}

func (r *Reranker) scoreBatched(ctx context.Context, p RerankProvider, query string, texts []string) ([]float64, error) {
	out := make([]float64, 0, len(texts))
	for start := 0; start < len(texts); start += r.batchSize {
		end := start + r.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		scores, err := p.ScoreBatch(ctx, query, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, scores...)
	}
	return out, nil
}
