package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/ragcore/internal/cost"
	"github.com/fabfab/ragcore/internal/runtime"
)

type fakeRerankProvider struct {
	id      string
	failErr error
	calls   int
	// scoreFn, when set, replaces the default scoring, which assigns a
	// descending score by candidate index so ordering is deterministic and
	// distinguishable from the input order.
	scoreFn func(candidates []string) []float64
}

func (p *fakeRerankProvider) ID() string { return p.id }

func (p *fakeRerankProvider) ScoreBatch(ctx context.Context, query string, candidates []string) ([]float64, error) {
	p.calls++
	if p.failErr != nil {
		return nil, p.failErr
	}
	if p.scoreFn != nil {
		return p.scoreFn(candidates), nil
	}
	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = float64(len(candidates) - i)
	}
	return scores, nil
}

type fakeRerankTracker struct{ tracked []cost.TrackInput }

func (f *fakeRerankTracker) Track(ctx context.Context, in cost.TrackInput) error {
	f.tracked = append(f.tracked, in)
	return nil
}

func sampleResults(n int) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = Result{ChunkID: int64(i), Text: "chunk text", Similarity: 0.5}
	}
	return out
}

func TestRerank_ReordersByCloudScoreDescending(t *testing.T) {
	cloud := &fakeRerankProvider{id: "cloud_rerank", scoreFn: func(c []string) []float64 {
		return []float64{0.2, 0.9, 0.5}
	}}
	tr := &fakeRerankTracker{}
	r := NewReranker(cloud, nil, tr, 8, runtime.NewStore(), nil)

	out, err := r.Rerank(context.Background(), "q", sampleResults(3), Options{})

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, int64(1), out[0].ChunkID)
	assert.Equal(t, int64(2), out[1].ChunkID)
	assert.Equal(t, int64(0), out[2].ChunkID)
	assert.Equal(t, "cloud_rerank", out[0].RerankProvider)
	require.Len(t, tr.tracked, 1)
	assert.Equal(t, "cloud_rerank", tr.tracked[0].Provider)
}

func TestRerank_FallsBackToLocalWhenCloudFails(t *testing.T) {
	cloud := &fakeRerankProvider{id: "cloud_rerank", failErr: errors.New("timeout")}
	local := &fakeRerankProvider{id: "local_rerank"}
	tr := &fakeRerankTracker{}
	r := NewReranker(cloud, local, tr, 8, runtime.NewStore(), nil)

	out, err := r.Rerank(context.Background(), "q", sampleResults(2), Options{})

	require.NoError(t, err)
	assert.Equal(t, "local_rerank", out[0].RerankProvider)
	assert.Empty(t, tr.tracked)
}

func TestRerank_FallsBackToPassThroughWhenBothFail(t *testing.T) {
	cloud := &fakeRerankProvider{id: "cloud_rerank", failErr: errors.New("down")}
	local := &fakeRerankProvider{id: "local_rerank", failErr: errors.New("down")}
	r := NewReranker(cloud, local, &fakeRerankTracker{}, 8, runtime.NewStore(), nil)

	out, err := r.Rerank(context.Background(), "q", sampleResults(3), Options{})

	require.NoError(t, err)
	assert.Equal(t, "none", out[0].RerankProvider)
	// Then: rerank_score equals the candidate's similarity, per the
	// pass-through contract, and original order is preserved.
	assert.Equal(t, out[0].Similarity, out[0].RerankScore)
	assert.Equal(t, int64(0), out[0].ChunkID)
	assert.Equal(t, int64(1), out[1].ChunkID)
}

func TestRerank_FallbackModeForcesLocalRegardlessOfRequestedProvider(t *testing.T) {
	overrides := runtime.NewStore()
	overrides.EnableFallback()
	cloud := &fakeRerankProvider{id: "cloud_rerank"}
	local := &fakeRerankProvider{id: "local_rerank"}
	r := NewReranker(cloud, local, &fakeRerankTracker{}, 8, overrides, nil)

	out, err := r.Rerank(context.Background(), "q", sampleResults(2), Options{Provider: "cloud_rerank"})

	require.NoError(t, err)
	assert.Equal(t, "local_rerank", out[0].RerankProvider)
}

func TestRerank_NoneProviderSkipsScoringEntirely(t *testing.T) {
	cloud := &fakeRerankProvider{id: "cloud_rerank"}
	r := NewReranker(cloud, nil, &fakeRerankTracker{}, 8, runtime.NewStore(), nil)

	out, err := r.Rerank(context.Background(), "q", sampleResults(2), Options{Provider: "none"})

	require.NoError(t, err)
	assert.Equal(t, "none", out[0].RerankProvider)
	assert.Equal(t, out[0].Similarity, out[0].RerankScore)
	assert.Equal(t, 0, cloud.calls)
}

func TestRerank_TruncatesToTopK(t *testing.T) {
	cloud := &fakeRerankProvider{id: "cloud_rerank"}
	r := NewReranker(cloud, nil, &fakeRerankTracker{}, 8, runtime.NewStore(), nil)

	out, err := r.Rerank(context.Background(), "q", sampleResults(5), Options{TopK: 2})

	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestRerank_ClampsMaxCandidatesToHardLimit(t *testing.T) {
	cloud := &fakeRerankProvider{id: "cloud_rerank"}
	r := NewReranker(cloud, nil, &fakeRerankTracker{}, 8, runtime.NewStore(), nil)

	out, err := r.Rerank(context.Background(), "q", sampleResults(60), Options{MaxCandidates: 1000})

	require.NoError(t, err)
	assert.Len(t, out, hardMaxCandidates)
}

func TestRerank_PreservesBaseSimilarity(t *testing.T) {
	cloud := &fakeRerankProvider{id: "cloud_rerank"}
	r := NewReranker(cloud, nil, &fakeRerankTracker{}, 8, runtime.NewStore(), nil)

	results := sampleResults(1)
	results[0].Similarity = 0.77

	out, err := r.Rerank(context.Background(), "q", results, Options{})

	require.NoError(t, err)
	assert.Equal(t, 0.77, out[0].BaseSimilarity)
}
