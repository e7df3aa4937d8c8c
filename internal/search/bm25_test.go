package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/ragcore/internal/storage"
)

type fakeTextStore struct {
	hits       []storage.VectorHit
	gotQuery   string
	gotLimit   int
	gotCollect string
}

func (f *fakeTextStore) FullTextQuery(ctx context.Context, collectionID, queryText string, limit int) ([]storage.VectorHit, error) {
	f.gotCollect = collectionID
	f.gotQuery = queryText
	f.gotLimit = limit
	return f.hits, nil
}

func TestNormalizeTerms_AppendsPrefixWildcardToEachTerm(t *testing.T) {
	terms := normalizeTerms("auth token")
	assert.Equal(t, []string{"auth:*", "token:*"}, terms)
}

func TestNormalizeTerms_StripsReservedTsqueryOperators(t *testing.T) {
	terms := normalizeTerms(`auth & token | (evil) 'quote'`)
	assert.Equal(t, []string{"auth:*", "token:*", "evil:*", "quote:*"}, terms)
}

func TestNormalizeTerms_EmptyQueryReturnsNoTerms(t *testing.T) {
	assert.Empty(t, normalizeTerms("   "))
}

func TestSearch_JoinsPrefixExpandedTermsWithAnd(t *testing.T) {
	store := &fakeTextStore{}
	s := NewBM25Searcher(store, "")

	_, err := s.Search(context.Background(), TextQuery{Query: "auth token", CollectionID: "col-1"})

	require.NoError(t, err)
	assert.Equal(t, "auth:* & token:*", store.gotQuery)
}

func TestSearch_RejectsQueryWithNoSearchableTerms(t *testing.T) {
	store := &fakeTextStore{}
	s := NewBM25Searcher(store, "")

	_, err := s.Search(context.Background(), TextQuery{Query: "***", CollectionID: "col-1"})

	assert.Error(t, err)
}

func TestSearch_NormalizesScoresByTheFixedDenominatorFloor(t *testing.T) {
	// Given: raw ts_rank_cd values are all well under 1, as they normally are
	store := &fakeTextStore{hits: []storage.VectorHit{
		{ChunkID: 1, Similarity: 0.08},
		{ChunkID: 2, Similarity: 0.04},
	}}
	s := NewBM25Searcher(store, "")

	// When: searching
	results, err := s.Search(context.Background(), TextQuery{Query: "auth", CollectionID: "col-1"})

	// Then: scores are left as their raw ts_rank_cd value, not rescaled to
	// make the top hit 1.0 (spec §4.H: score = raw_rank / max(raw_rank, 1)).
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, 0.08, results[0].BM25Score, 1e-9)
	assert.InDelta(t, 0.04, results[1].BM25Score, 1e-9)
	assert.Equal(t, 0, results[0].BM25Rank)
	assert.Equal(t, 1, results[1].BM25Rank)
}

func TestSearch_NormalizesScoresWhenRawRankExceedsOne(t *testing.T) {
	store := &fakeTextStore{hits: []storage.VectorHit{
		{ChunkID: 1, Similarity: 2.0},
		{ChunkID: 2, Similarity: 1.0},
	}}
	s := NewBM25Searcher(store, "")

	results, err := s.Search(context.Background(), TextQuery{Query: "auth", CollectionID: "col-1"})

	require.NoError(t, err)
	assert.InDelta(t, 1.0, results[0].BM25Score, 1e-9)
	assert.InDelta(t, 0.5, results[1].BM25Score, 1e-9)
}

func TestSearch_DefaultsTopKWhenUnset(t *testing.T) {
	store := &fakeTextStore{}
	s := NewBM25Searcher(store, "")

	_, err := s.Search(context.Background(), TextQuery{Query: "auth", CollectionID: "col-1"})

	require.NoError(t, err)
	assert.Equal(t, 30, store.gotLimit)
}
