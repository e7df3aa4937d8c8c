// Package synthesis implements component L: clustering top search results
// into "approaches" with consensus scoring, and detecting contradictions
// between them.
package synthesis

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fabfab/ragcore/internal/embedding"
	"github.com/fabfab/ragcore/internal/llm"
	"github.com/fabfab/ragcore/internal/runtime"
	"github.com/fabfab/ragcore/internal/search"
)

const (
	defaultMaxResults  = 15
	snippetChars       = 600
	summaryChars       = 360
	sourceSnippetChars = 420
)

// Source is one contributing result behind an Approach.
type Source struct {
	Title   string
	URL     string
	Snippet string
}

// Approach is one cluster of results, synthesized into a single narrative.
type Approach struct {
	Topic     string
	Method    string
	Summary   string
	Sources   []Source
	Consensus float64

	centroid    []float64
	clusterRefs []search.Result
}

// Conflict is a detected contradiction between two approaches.
type Conflict struct {
	ApproachA   string
	ApproachB   string
	Severity    string // high | medium | low
	Confidence  float64
	Explanation string
}

// Output is the full result of a Synthesize call.
type Output struct {
	Approaches  []Approach
	Conflicts   []Conflict
	Recommended string
}

// Options configures one Synthesize call (spec §4.L).
type Options struct {
	MaxResults             int
	ContradictionDetection bool // feature flag; false skips step 6 entirely
	MinOverlap, MaxOverlap float64
	MaxPairs               int
}

func (o Options) normalized() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = defaultMaxResults
	}
	if o.MaxOverlap <= 0 {
		o.MinOverlap, o.MaxOverlap = 0.2, 0.7
	}
	if o.MaxPairs <= 0 || o.MaxPairs > 6 {
		o.MaxPairs = 6
	}
	return o
}

// Engine is component L.
type Engine struct {
	router    *embedding.Router
	llm       llm.Client
	now       func() time.Time
	overrides *runtime.Store
	log       *zap.Logger
}

// NewEngine builds an Engine. llmClient may be nil, in which case
// contradiction detection is skipped regardless of Options. A nil logger
// falls back to zap.NewNop(). Fallback mode (overrides) disables
// contradiction detection globally, the sole path by which the cost guard
// affects synthesis output (spec §9).
func NewEngine(router *embedding.Router, llmClient llm.Client, now func() time.Time, overrides *runtime.Store, logger *zap.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{router: router, llm: llmClient, now: now, overrides: overrides, log: logger}
}

// Synthesize runs the full component-L pipeline over results (typically the
// output of I then K).
func (e *Engine) Synthesize(ctx context.Context, query string, results []search.Result, opts Options) (Output, error) {
	opts = opts.normalized()

	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	if len(results) == 0 {
		return Output{}, nil
	}

	vectors := make([][]float64, len(results))
	for i, r := range results {
		vectors[i] = e.embedSnippet(ctx, r.Text)
	}

	n := len(results)
	k := n / 3
	if k == 0 {
		k = 1
	}
	if k > 3 {
		k = 3
	}
	assignments, centroids := kMeansCluster(vectors, k)

	clusters := make(map[int][]int) // cluster -> result indices
	for i, c := range assignments {
		clusters[c] = append(clusters[c], i)
	}

	clusterIDs := make([]int, 0, len(clusters))
	for c := range clusters {
		clusterIDs = append(clusterIDs, c)
	}
	sort.Ints(clusterIDs)

	approaches := make([]Approach, 0, len(clusterIDs))
	for _, c := range clusterIDs {
		idxs := clusters[c]
		if len(idxs) == 0 {
			continue
		}
		clusterResults := make([]search.Result, len(idxs))
		clusterVectors := make([][]float64, len(idxs))
		for i, idx := range idxs {
			clusterResults[i] = results[idx]
			clusterVectors[i] = vectors[idx]
		}
		approach := buildApproach(query, clusterResults)
		approach.centroid = centroids[c]
		approach.clusterRefs = clusterResults
		approach.Consensus = consensusScore(clusterResults, clusterVectors, centroids[c], e.now())
		approaches = append(approaches, approach)
	}

	fallback := e.overrides != nil && e.overrides.Load().FallbackMode
	var conflicts []Conflict
	if opts.ContradictionDetection && e.llm != nil && !fallback {
		conflicts = e.detectContradictions(ctx, approaches, opts)
	}

	recommended := selectRecommended(approaches, conflicts)

	return Output{Approaches: stripInternal(approaches), Conflicts: conflicts, Recommended: recommended}, nil
}

func stripInternal(approaches []Approach) []Approach {
	out := make([]Approach, len(approaches))
	for i, a := range approaches {
		a.centroid = nil
		a.clusterRefs = nil
		out[i] = a
	}
	return out
}

// embedSnippet embeds the first snippetChars of text via component B,
// falling back to a deterministic pseudo-embedding on failure (spec §4.L
// step 2).
func (e *Engine) embedSnippet(ctx context.Context, text string) []float64 {
	snippet := truncateRunes(text, snippetChars)
	if e.router != nil {
		res, err := e.router.Embed(ctx, snippet, embedding.ContentContext{Type: "docs"}, "")
		if err == nil && len(res.Vectors) > 0 {
			return toFloat64(res.Vectors[0])
		}
		e.log.Warn("synthesis embedding failed, using pseudo-embedding fallback", zap.Error(err))
	}
	return pseudoEmbedding(snippet)
}

const pseudoEmbeddingDim = 16

// pseudoEmbedding derives a fixed, low-dimensional deterministic vector from
// character codes when component B is unavailable. Output carries no marker
// of which results were embedded this way.
func pseudoEmbedding(text string) []float64 {
	vec := make([]float64, pseudoEmbeddingDim)
	for i, r := range text {
		vec[i%pseudoEmbeddingDim] += float64(r)
	}
	return vec
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
