package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/ragcore/internal/cost"
	"github.com/fabfab/ragcore/internal/runtime"
)

type fakeProvider struct {
	id      string
	failErr error
	calls   int
}

func (p *fakeProvider) ID() string      { return p.id }
func (p *fakeProvider) Model() string   { return "fake-model" }
func (p *fakeProvider) Dimensions() int { return 4 }
func (p *fakeProvider) Embed(ctx context.Context, texts []string) (Result, error) {
	p.calls++
	if p.failErr != nil {
		return Result{}, p.failErr
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{1, 2, 3, 4}
	}
	return Result{Vectors: vecs, ProviderID: p.id, ModelID: "fake-model", Dimensions: 4, TokensUsed: 10}, nil
}

type fakeTracker struct{ tracked []cost.TrackInput }

func (f *fakeTracker) Track(ctx context.Context, in cost.TrackInput) error {
	f.tracked = append(f.tracked, in)
	return nil
}

func newTestRouter(local, general, code *fakeProvider, typeDefaults map[string]string, globalOverride string, overrides *runtime.Store) (*Router, *fakeTracker) {
	tr := &fakeTracker{}
	r := NewRouter(local, general, code, typeDefaults, globalOverride, tr, overrides, nil)
	return r, tr
}

func TestRouter_SelectsCodeCloudForCodeContentType(t *testing.T) {
	local, general, code := &fakeProvider{id: ProviderLocal}, &fakeProvider{id: ProviderGeneralCloud}, &fakeProvider{id: ProviderCodeCloud}
	r, _ := newTestRouter(local, general, code, nil, "", runtime.NewStore())

	_, err := r.Embed(context.Background(), "package main", ContentContext{Type: "code"}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, code.calls)
	assert.Equal(t, 0, local.calls)
}

func TestRouter_SelectsLocalForDocsContentType(t *testing.T) {
	local, general, code := &fakeProvider{id: ProviderLocal}, &fakeProvider{id: ProviderGeneralCloud}, &fakeProvider{id: ProviderCodeCloud}
	r, _ := newTestRouter(local, general, code, nil, "", runtime.NewStore())

	_, err := r.Embed(context.Background(), "plain prose", ContentContext{Type: "docs"}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, local.calls)
}

func TestRouter_CodeHeuristicAppliesWithoutExplicitType(t *testing.T) {
	local, general, code := &fakeProvider{id: ProviderLocal}, &fakeProvider{id: ProviderGeneralCloud}, &fakeProvider{id: ProviderCodeCloud}
	r, _ := newTestRouter(local, general, code, nil, "", runtime.NewStore())

	_, err := r.Embed(context.Background(), "func main() {\n}", ContentContext{}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, code.calls)
}

func TestRouter_ExplicitOverrideWinsOverHeuristic(t *testing.T) {
	local, general, code := &fakeProvider{id: ProviderLocal}, &fakeProvider{id: ProviderGeneralCloud}, &fakeProvider{id: ProviderCodeCloud}
	r, _ := newTestRouter(local, general, code, nil, "", runtime.NewStore())

	_, err := r.Embed(context.Background(), "func main() {}", ContentContext{}, ProviderGeneralCloud)

	require.NoError(t, err)
	assert.Equal(t, 1, general.calls)
	assert.Equal(t, 0, code.calls)
}

func TestRouter_GlobalOverrideWinsOverExplicitOverride(t *testing.T) {
	local, general, code := &fakeProvider{id: ProviderLocal}, &fakeProvider{id: ProviderGeneralCloud}, &fakeProvider{id: ProviderCodeCloud}
	r, _ := newTestRouter(local, general, code, nil, ProviderLocal, runtime.NewStore())

	_, err := r.Embed(context.Background(), "anything", ContentContext{}, ProviderCodeCloud)

	require.NoError(t, err)
	assert.Equal(t, 1, local.calls)
}

func TestRouter_FallbackModeForcesLocalRegardlessOfOverrides(t *testing.T) {
	// Given: the process is in budget fallback mode
	overrides := runtime.NewStore()
	overrides.EnableFallback()
	local, general, code := &fakeProvider{id: ProviderLocal}, &fakeProvider{id: ProviderGeneralCloud}, &fakeProvider{id: ProviderCodeCloud}
	r, _ := newTestRouter(local, general, code, nil, "", overrides)

	// When: embedding with an explicit cloud override
	_, err := r.Embed(context.Background(), "anything", ContentContext{}, ProviderCodeCloud)

	// Then: local is used anyway
	require.NoError(t, err)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 0, code.calls)
}

func TestRouter_FallsBackToLocalWhenCloudCallFails(t *testing.T) {
	local := &fakeProvider{id: ProviderLocal}
	general := &fakeProvider{id: ProviderGeneralCloud, failErr: assertErr{}}
	code := &fakeProvider{id: ProviderCodeCloud}
	r, _ := newTestRouter(local, general, code, nil, "", runtime.NewStore())

	res, err := r.Embed(context.Background(), "prose", ContentContext{Type: "personal"}, "")

	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, res.ProviderID)
	assert.Equal(t, 1, local.calls)
}

func TestRouter_TypeDefaultsOverrideBuiltInMapping(t *testing.T) {
	local, general, code := &fakeProvider{id: ProviderLocal}, &fakeProvider{id: ProviderGeneralCloud}, &fakeProvider{id: ProviderCodeCloud}
	r, _ := newTestRouter(local, general, code, map[string]string{"code": ProviderLocal}, "", runtime.NewStore())

	_, err := r.Embed(context.Background(), "func main() {}", ContentContext{Type: "code"}, "")

	require.NoError(t, err)
	assert.Equal(t, 1, local.calls)
	assert.Equal(t, 0, code.calls)
}

func TestRouter_TracksCostForNonLocalProvider(t *testing.T) {
	local, general, code := &fakeProvider{id: ProviderLocal}, &fakeProvider{id: ProviderGeneralCloud}, &fakeProvider{id: ProviderCodeCloud}
	r, tr := newTestRouter(local, general, code, nil, "", runtime.NewStore())

	_, err := r.Embed(context.Background(), "prose", ContentContext{Type: "personal"}, "")

	require.NoError(t, err)
	require.Len(t, tr.tracked, 1)
	assert.Equal(t, ProviderGeneralCloud, tr.tracked[0].Provider)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
