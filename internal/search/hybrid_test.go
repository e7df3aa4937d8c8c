package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeights_NormalizedSumsToOne(t *testing.T) {
	w := Weights{Vector: 2, BM25: 2}.normalized()
	assert.InDelta(t, 0.5, w.Vector, 1e-9)
	assert.InDelta(t, 0.5, w.BM25, 1e-9)
}

func TestWeights_NormalizedFallsBackToDefaultOnInvalidInput(t *testing.T) {
	cases := []Weights{
		{Vector: 0, BM25: 0.5},
		{Vector: -1, BM25: 0.5},
		{Vector: 0.5, BM25: 0},
	}
	for _, w := range cases {
		got := w.normalized()
		assert.InDelta(t, DefaultWeights.Vector/(DefaultWeights.Vector+DefaultWeights.BM25), got.Vector, 1e-9)
	}
}

func TestFuse_OverlappingResultIsMarkedBoth(t *testing.T) {
	// Given: a chunk present at the top of both vector and bm25 rankings
	vector := []Result{{ChunkID: 1, Similarity: 0.9, VectorRank: 0, BM25Rank: -1}}
	bm25 := []Result{{ChunkID: 1, BM25Score: 0.8, VectorRank: -1, BM25Rank: 0}}

	// When: fusing
	out := fuse(vector, bm25, DefaultWeights, 60, 10)

	// Then: the result carries both ranks and is marked "both"
	require.Len(t, out, 1)
	assert.Equal(t, "both", out[0].Source)
	assert.Equal(t, 0, out[0].VectorRank)
	assert.Equal(t, 0, out[0].BM25Rank)
}

func TestFuse_VectorOnlyResultIsMarkedVector(t *testing.T) {
	vector := []Result{{ChunkID: 1, Similarity: 0.9, VectorRank: 0, BM25Rank: -1}}

	out := fuse(vector, nil, DefaultWeights, 60, 10)

	require.Len(t, out, 1)
	assert.Equal(t, "vector", out[0].Source)
}

func TestFuse_BM25OnlyResultIsMarkedBM25(t *testing.T) {
	bm25 := []Result{{ChunkID: 7, BM25Score: 0.5, VectorRank: -1, BM25Rank: 0}}

	out := fuse(nil, bm25, DefaultWeights, 60, 10)

	require.Len(t, out, 1)
	assert.Equal(t, "bm25", out[0].Source)
}

func TestFuse_HigherRankedInBothSourcesWinsOverSingleSource(t *testing.T) {
	// Given: chunk 1 ranks first in both lists, chunk 2 only appears in vector
	vector := []Result{
		{ChunkID: 1, Similarity: 0.9, VectorRank: 0, BM25Rank: -1},
		{ChunkID: 2, Similarity: 0.85, VectorRank: 1, BM25Rank: -1},
	}
	bm25 := []Result{
		{ChunkID: 1, BM25Score: 0.8, VectorRank: -1, BM25Rank: 0},
	}

	// When: fusing
	out := fuse(vector, bm25, DefaultWeights, 60, 10)

	// Then: chunk 1 (dual-source) outranks chunk 2 (single-source)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ChunkID)
	assert.Equal(t, int64(2), out[1].ChunkID)
}

func TestFuse_TruncatesToTopK(t *testing.T) {
	vector := make([]Result, 5)
	for i := range vector {
		vector[i] = Result{ChunkID: int64(i), Similarity: 1 - float64(i)*0.1, VectorRank: i, BM25Rank: -1}
	}

	out := fuse(vector, nil, DefaultWeights, 60, 2)

	assert.Len(t, out, 2)
}
