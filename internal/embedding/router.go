package embedding

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/cost"
	"github.com/fabfab/ragcore/internal/runtime"
)

// tracker is the subset of cost.Tracker the router needs.
type tracker interface {
	Track(ctx context.Context, in cost.TrackInput) error
}

// Router selects a Provider per call in this order: fallback mode (forces
// local), then the global override, then the explicit per-call override,
// then content-type mapping, then a code-pattern heuristic, then local. Any
// cloud failure falls back to local.
type Router struct {
	providers map[string]Provider
	tracker   tracker
	// typeDefaults lets an operator pin a provider per content type,
	// overriding the built-in code⇒code_cloud / personal⇒general_cloud /
	// docs⇒local mapping.
	typeDefaults map[string]string
	// globalOverride forces every call onto one provider id, regardless of
	// context or heuristic.
	globalOverride string
	overrides      *runtime.Store
	log            *zap.Logger
}

// NewRouter builds a Router over the three standard provider ids. A nil
// logger falls back to zap.NewNop(). overrides is consulted on every
// selection: fallback mode forces local regardless of any other override
// (spec §8 invariant 10).
func NewRouter(local, generalCloud, codeCloud Provider, typeDefaults map[string]string, globalOverride string, tr tracker, overrides *runtime.Store, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		providers: map[string]Provider{
			ProviderLocal:        local,
			ProviderGeneralCloud: generalCloud,
			ProviderCodeCloud:    codeCloud,
		},
		tracker:        tr,
		typeDefaults:   typeDefaults,
		globalOverride: globalOverride,
		overrides:      overrides,
		log:            logger,
	}
}

var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*(import|from|package|require|use)\s+[\w./"'-]+`),
	regexp.MustCompile(`(?m)^\s*(func|function|def|class|enum|interface)\s+\w+`),
	regexp.MustCompile(`(?m)^\s*const\s+\w+\s*=`),
	regexp.MustCompile(`\w+<[\w,\s]+>\(`),
	regexp.MustCompile(`(?m)^\s*//.*$`),
	regexp.MustCompile(`(?m)^\s*#include\s*[<"]`),
}

// looksLikeCode applies the heuristic in spec §4.B.
func looksLikeCode(text string) bool {
	for _, re := range codePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Embed picks a provider per the selection order and returns its result.
// explicitOverride, when non-empty, wins over content type and heuristic,
// but not over fallback mode or the router's global override. collectionID
// is forwarded to the cost record, not used for selection.
func (r *Router) Embed(ctx context.Context, text string, cc ContentContext, explicitOverride string) (Result, error) {
	providerID := r.selectProvider(text, cc, explicitOverride)
	return r.embedWith(ctx, providerID, []string{text}, cc.CollectionID)
}

// EmbedBatch embeds many texts with the same selected provider, suitable for
// the Ingestion Orchestrator's batched chunk embedding.
func (r *Router) EmbedBatch(ctx context.Context, texts []string, cc ContentContext, explicitOverride string) (Result, error) {
	providerID := r.selectProvider(textOrEmpty(texts), cc, explicitOverride)
	return r.embedWith(ctx, providerID, texts, cc.CollectionID)
}

func textOrEmpty(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	return texts[0]
}

func (r *Router) selectProvider(text string, cc ContentContext, explicitOverride string) string {
	if r.overrides != nil && r.overrides.Load().FallbackMode {
		return ProviderLocal
	}
	if r.globalOverride != "" {
		return r.globalOverride
	}
	if explicitOverride != "" {
		return explicitOverride
	}
	if cc.Type != "" {
		if pinned, ok := r.typeDefaults[cc.Type]; ok && pinned != "" {
			return pinned
		}
		switch cc.Type {
		case "code":
			return ProviderCodeCloud
		case "personal":
			return ProviderGeneralCloud
		case "docs":
			return ProviderLocal
		}
	}
	if looksLikeCode(text) {
		return ProviderCodeCloud
	}
	return ProviderLocal
}

func (r *Router) embedWith(ctx context.Context, providerID string, texts []string, collectionID string) (Result, error) {
	p, ok := r.providers[providerID]
	if !ok || p == nil {
		return Result{}, apperr.Embedding("embedding provider not configured: "+providerID, nil)
	}

	res, err := p.Embed(ctx, texts)
	if err != nil {
		if providerID == ProviderLocal {
			return Result{}, err
		}
		r.log.Warn("cloud embedding failed, falling back to local", zap.String("provider", providerID), zap.Error(err))
		local, ok := r.providers[ProviderLocal]
		if !ok || local == nil {
			return Result{}, apperr.Embedding("cloud embedding failed and no local fallback configured", err)
		}
		res, err = local.Embed(ctx, texts)
		if err != nil {
			return Result{}, apperr.Embedding("local fallback embedding failed", err)
		}
	}

	if res.TokensUsed > 0 || res.ProviderID != ProviderLocal {
		var collID *string
		if collectionID != "" {
			collID = &collectionID
		}
		if trackErr := r.tracker.Track(ctx, cost.TrackInput{
			Provider:     res.ProviderID,
			Operation:    "embed",
			Tokens:       res.TokensUsed,
			Model:        res.ModelID,
			CollectionID: collID,
		}); trackErr != nil {
			r.log.Error("cost tracking failed", zap.Error(trackErr))
		}
	}

	return res, nil
}
