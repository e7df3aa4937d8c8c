package synthesis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLLM struct {
	reply string
	err   error
	calls int
}

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestJaccard_IdenticalSetsScoreOne(t *testing.T) {
	set := tokenSet("postgres vector search")
	assert.InDelta(t, 1.0, jaccard(set, set), 1e-9)
}

func TestJaccard_DisjointSetsScoreZero(t *testing.T) {
	a := tokenSet("postgres vector search")
	b := tokenSet("redis cache eviction")
	assert.Equal(t, 0.0, jaccard(a, b))
}

func TestJaccard_EmptySetScoresZero(t *testing.T) {
	a := tokenSet("")
	b := tokenSet("anything")
	assert.Equal(t, 0.0, jaccard(a, b))
}

func TestParseContradictionJSON_ExtractsObjectFromSurroundingProse(t *testing.T) {
	text := `Sure thing! {"contradiction": true, "severity": "high", "confidence": 0.9, "explanation": "they disagree"} hope that helps.`

	parsed, ok := parseContradictionJSON(text)

	require.True(t, ok)
	assert.True(t, parsed.Contradiction)
	assert.Equal(t, "high", parsed.Severity)
	assert.InDelta(t, 0.9, parsed.Confidence, 1e-9)
}

func TestParseContradictionJSON_FalseForNoBraces(t *testing.T) {
	_, ok := parseContradictionJSON("no json here")
	assert.False(t, ok)
}

func TestNormalizeSeverity_UnknownDefaultsToMedium(t *testing.T) {
	assert.Equal(t, "medium", normalizeSeverity("unexpected"))
	assert.Equal(t, "high", normalizeSeverity("HIGH"))
	assert.Equal(t, "low", normalizeSeverity(" low "))
}

func TestJudgeContradiction_ReturnsConflictWhenLLMConfirms(t *testing.T) {
	llm := &fakeLLM{reply: `{"contradiction": true, "severity": "high", "confidence": 0.8, "explanation": "mutually exclusive claims"}`}
	e := &Engine{llm: llm, log: zap.NewNop()}

	a := Approach{Topic: "topic-a"}
	b := Approach{Topic: "topic-b"}

	conflict, ok := e.judgeContradiction(context.Background(), a, b)

	require.True(t, ok)
	assert.Equal(t, "topic-a", conflict.ApproachA)
	assert.Equal(t, "topic-b", conflict.ApproachB)
	assert.Equal(t, "high", conflict.Severity)
}

func TestJudgeContradiction_FalseWhenLLMSaysNoContradiction(t *testing.T) {
	llm := &fakeLLM{reply: `{"contradiction": false}`}
	e := &Engine{llm: llm, log: zap.NewNop()}

	_, ok := e.judgeContradiction(context.Background(), Approach{Topic: "a"}, Approach{Topic: "b"})

	assert.False(t, ok)
}

func TestJudgeContradiction_FalseWhenLLMCallFails(t *testing.T) {
	llm := &fakeLLM{err: assertErr{}}
	e := &Engine{llm: llm, log: zap.NewNop()}

	_, ok := e.judgeContradiction(context.Background(), Approach{Topic: "a"}, Approach{Topic: "b"})

	assert.False(t, ok)
}

func TestDetectContradictions_SkipsPairsOutsideOverlapRange(t *testing.T) {
	llm := &fakeLLM{reply: `{"contradiction": true, "severity": "high", "confidence": 0.9}`}
	e := &Engine{llm: llm, log: zap.NewNop()}

	approaches := []Approach{
		{Topic: "a", Summary: "completely unrelated text about gardening"},
		{Topic: "b", Summary: "totally different subject involving astronomy"},
	}
	opts := Options{MinOverlap: 0.9, MaxOverlap: 1.0, MaxPairs: 6}

	conflicts := e.detectContradictions(context.Background(), approaches, opts)

	assert.Empty(t, conflicts)
	assert.Equal(t, 0, llm.calls)
}

func TestDetectContradictions_FewerThanTwoApproachesReturnsNil(t *testing.T) {
	e := &Engine{llm: &fakeLLM{}, log: zap.NewNop()}

	conflicts := e.detectContradictions(context.Background(), []Approach{{Topic: "solo"}}, Options{MaxPairs: 6})

	assert.Nil(t, conflicts)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
