// Package embedding implements the Embedding Router (spec §4.B): a small
// provider registry plus selection logic that picks local or cloud vector
// generation per request, with cost tracking and local fallback.
package embedding

import (
	"context"
)

// Result is what a Provider returns for one batch of texts.
type Result struct {
	Vectors    [][]float32
	ProviderID string
	ModelID    string
	Dimensions int
	// TokensUsed and CostUSD are zero for local providers.
	TokensUsed int
	CostUSD    float64
}

// Provider generates embedding vectors for a batch of texts.
type Provider interface {
	ID() string
	Model() string
	Dimensions() int
	Embed(ctx context.Context, texts []string) (Result, error)
}

// ContentContext narrows provider selection (spec §4.B).
type ContentContext struct {
	Type         string // "code" | "docs" | "personal"
	Language     string
	CollectionID string
}

const (
	ProviderLocal        = "local"
	ProviderGeneralCloud = "general_cloud"
	ProviderCodeCloud    = "code_cloud"
)
