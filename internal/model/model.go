// Package model defines the entities shared across the retrieval backend:
// collections, documents, chunks, and the cost/budget ledger.
package model

import "time"

// DocumentStatus is the lifecycle state of a Document as it moves through
// the ingestion pipeline.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusExtracting DocumentStatus = "extracting"
	StatusChunking   DocumentStatus = "chunking"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusComplete   DocumentStatus = "complete"
	StatusError      DocumentStatus = "error"
)

// SourceQuality classifies how much a document's claims should be trusted.
type SourceQuality string

const (
	QualityOfficial  SourceQuality = "official"
	QualityVerified  SourceQuality = "verified"
	QualityCommunity SourceQuality = "community"
)

// Metadata is the free-form key/value bag attached to documents and chunks.
// Recognized keys (source_quality, last_verified, published_date, framework,
// framework_version, language, doc_type, embedding_provider,
// embedding_model, embedding_dimensions, tags, topic, approach, method,
// page, heading, section) are read through the typed accessors below;
// unknown keys are preserved verbatim by round-tripping through the map.
type Metadata map[string]any

func (m Metadata) str(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SourceQualityOf returns the recognized source_quality value, if set.
func (m Metadata) SourceQualityOf() (SourceQuality, bool) {
	s, ok := m.str("source_quality")
	if !ok {
		return "", false
	}
	return SourceQuality(s), true
}

// LastVerified returns the parsed last_verified ISO date, if present and valid.
func (m Metadata) LastVerified() (time.Time, bool) {
	s, ok := m.str("last_verified")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// String returns a recognized string-valued key.
func (m Metadata) String(key string) (string, bool) { return m.str(key) }

// EmbeddingProvider returns the embedding_provider key, if set.
func (m Metadata) EmbeddingProvider() (string, bool) { return m.str("embedding_provider") }

// EmbeddingDimensions returns the embedding_dimensions key, if set.
func (m Metadata) EmbeddingDimensions() (int, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m["embedding_dimensions"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Collection groups a set of documents under one embedding space.
type Collection struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Document is a single ingested source (file upload or crawled page).
type Document struct {
	ID           string
	CollectionID string
	Title        string
	ContentType  string
	FileSize     int64
	SourceURL    *string
	FilePath     *string
	Status       DocumentStatus
	ErrorMessage *string
	Metadata     Metadata
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
}

// Chunk is a fixed-size textual unit of a Document, carrying one embedding.
type Chunk struct {
	ID             int64
	DocumentID     string
	ChunkIndex     int
	Text           string
	TokenCount     int
	Embedding      []float32
	EmbeddingModel string
	Metadata       Metadata
	CreatedAt      time.Time
}

// CostRecord is an append-only row tracking one billable provider call.
type CostRecord struct {
	ID           int64
	Provider     string
	Operation    string // embed | rerank | generate
	TokensUsed   int
	CostUSD      float64
	Model        string
	CollectionID *string
	CreatedAt    time.Time
}

// AlertType distinguishes budget warning levels.
type AlertType string

const (
	AlertWarning      AlertType = "warning"
	AlertLimitReached AlertType = "limit_reached"
)

// BudgetAlert records a single budget-threshold crossing event.
type BudgetAlert struct {
	ID              int64
	AlertType       AlertType
	Period          string // always "monthly"
	ThresholdUSD    float64
	CurrentSpendUSD float64
	TriggeredAt     time.Time
}
