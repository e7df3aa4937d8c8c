// Package storage is the sole component that speaks SQL. It exposes typed
// operations over collections, documents, chunks, and the cost/budget ledger
// backed by Postgres + pgvector, following the teacher's pattern of owning
// schema bootstrap and connection lifecycle behind a small Store type.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/cost"
	"github.com/fabfab/ragcore/internal/model"
)

// Store is the Storage Gateway (component A): every other component reaches
// the database only through this type.
type Store struct {
	pool *pgxpool.Pool
	lang string
}

// New connects to Postgres, applies schema, and returns a ready Store.
// ftsLanguage selects the text-search configuration used by the inverted
// index (e.g. "english").
func New(ctx context.Context, dsn string, maxConns int32, ftsLanguage string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	s := &Store{pool: pool, lang: ftsLanguage}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS collections (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	collection_id UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	content_type TEXT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	source_url TEXT,
	file_path TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	error_message TEXT,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection_id);
CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status);

CREATE TABLE IF NOT EXISTS chunks (
	id BIGSERIAL PRIMARY KEY,
	document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_index INT NOT NULL,
	text TEXT NOT NULL,
	token_count INT NOT NULL,
	embedding vector,
	embedding_model TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	tsv tsvector,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks (document_id);
CREATE INDEX IF NOT EXISTS chunks_tsv_idx ON chunks USING gin (tsv);

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = 'chunks_embedding_idx'
	) THEN
		EXECUTE 'CREATE INDEX chunks_embedding_idx ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)';
	END IF;
END
$$;

CREATE OR REPLACE FUNCTION chunks_tsv_update() RETURNS trigger AS $$
BEGIN
	NEW.tsv := to_tsvector(%[1]L, NEW.text);
	RETURN NEW;
END
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS chunks_tsv_trigger ON chunks;
CREATE TRIGGER chunks_tsv_trigger BEFORE INSERT OR UPDATE OF text ON chunks
	FOR EACH ROW EXECUTE FUNCTION chunks_tsv_update();

CREATE TABLE IF NOT EXISTS cost_records (
	id BIGSERIAL PRIMARY KEY,
	provider TEXT NOT NULL,
	operation TEXT NOT NULL,
	tokens_used INT NOT NULL,
	cost_usd DOUBLE PRECISION NOT NULL,
	model TEXT NOT NULL,
	collection_id UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS cost_records_created_idx ON cost_records (created_at);

CREATE TABLE IF NOT EXISTS budget_alerts (
	id BIGSERIAL PRIMARY KEY,
	alert_type TEXT NOT NULL,
	period TEXT NOT NULL,
	threshold_usd DOUBLE PRECISION NOT NULL,
	current_spend_usd DOUBLE PRECISION NOT NULL,
	triggered_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS budget_alerts_type_period_idx ON budget_alerts (alert_type, period, triggered_at);
`, s.lang)

	_, err := s.pool.Exec(ctx, stmt)
	if err != nil && strings.Contains(err.Error(), "ivfflat") {
		err = nil
	}
	return err
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// --- Collections ---------------------------------------------------------

// CreateCollection inserts a new collection and returns its id.
func (s *Store) CreateCollection(ctx context.Context, name, description string) (model.Collection, error) {
	c := model.Collection{ID: uuid.New().String(), Name: name, Description: description}
	row := s.pool.QueryRow(ctx, `
INSERT INTO collections (id, name, description) VALUES ($1, $2, $3)
RETURNING created_at, updated_at`, c.ID, name, description)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return model.Collection{}, apperr.Storage("create collection", err)
	}
	return c, nil
}

// GetCollection loads one collection by id.
func (s *Store) GetCollection(ctx context.Context, id string) (model.Collection, error) {
	var c model.Collection
	row := s.pool.QueryRow(ctx, `
SELECT id, name, description, created_at, updated_at FROM collections WHERE id = $1`, id)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Collection{}, apperr.NotFound(apperr.CodeCollectionNotFound, "collection not found")
		}
		return model.Collection{}, apperr.Storage("get collection", err)
	}
	return c, nil
}

// ListCollections returns all collections ordered by creation time.
func (s *Store) ListCollections(ctx context.Context) ([]model.Collection, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, description, created_at, updated_at FROM collections ORDER BY created_at`)
	if err != nil {
		return nil, apperr.Storage("list collections", err)
	}
	defer rows.Close()

	var out []model.Collection
	for rows.Next() {
		var c model.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, apperr.Storage("scan collection", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CollectionDocumentCount counts documents in a collection (spec §6 "list
// with doc counts").
func (s *Store) CollectionDocumentCount(ctx context.Context, id string) (int, error) {
	var n int
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE collection_id = $1`, id)
	if err := row.Scan(&n); err != nil {
		return 0, apperr.Storage("count documents", err)
	}
	return n, nil
}

// CollectionChunkCount counts chunks across a collection's documents (spec
// §6 "collection with chunk totals").
func (s *Store) CollectionChunkCount(ctx context.Context, id string) (int, error) {
	var n int
	row := s.pool.QueryRow(ctx, `
SELECT count(*) FROM chunks c JOIN documents d ON d.id = c.document_id WHERE d.collection_id = $1`, id)
	if err := row.Scan(&n); err != nil {
		return 0, apperr.Storage("count chunks", err)
	}
	return n, nil
}

// DeleteCollection removes a collection and cascades to its documents,
// chunks, and stored files are the caller's responsibility to unlink first.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return apperr.Storage("delete collection", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeCollectionNotFound, "collection not found")
	}
	return nil
}

// --- Documents -------------------------------------------------------------

// CreateDocument inserts a new document in pending status.
func (s *Store) CreateDocument(ctx context.Context, d model.Document) (model.Document, error) {
	d.ID = uuid.New().String()
	d.Status = model.StatusPending
	metaJSON, err := marshalMetadata(d.Metadata)
	if err != nil {
		return model.Document{}, apperr.Validation("encode metadata", err)
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO documents (id, collection_id, title, content_type, file_size, source_url, file_path, status, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at`,
		d.ID, d.CollectionID, d.Title, d.ContentType, d.FileSize, d.SourceURL, d.FilePath, d.Status, metaJSON)
	if err := row.Scan(&d.CreatedAt, &d.UpdatedAt); err != nil {
		return model.Document{}, apperr.Storage("create document", err)
	}
	return d, nil
}

// GetDocument loads one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (model.Document, error) {
	return s.scanOneDocument(ctx, `
SELECT id, collection_id, title, content_type, file_size, source_url, file_path, status, error_message, metadata, created_at, updated_at, processed_at
FROM documents WHERE id = $1`, id)
}

func (s *Store) scanOneDocument(ctx context.Context, query string, args ...any) (model.Document, error) {
	var d model.Document
	var metaJSON []byte
	row := s.pool.QueryRow(ctx, query, args...)
	err := row.Scan(&d.ID, &d.CollectionID, &d.Title, &d.ContentType, &d.FileSize, &d.SourceURL, &d.FilePath,
		&d.Status, &d.ErrorMessage, &metaJSON, &d.CreatedAt, &d.UpdatedAt, &d.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, apperr.NotFound(apperr.CodeDocumentNotFound, "document not found")
		}
		return model.Document{}, apperr.Storage("get document", err)
	}
	d.Metadata, err = unmarshalMetadata(metaJSON)
	if err != nil {
		return model.Document{}, apperr.Storage("decode metadata", err)
	}
	return d, nil
}

// DocumentFilter narrows a ListDocuments call (spec §6 "filters: status,
// limit, offset").
type DocumentFilter struct {
	Status model.DocumentStatus // "" means any status
	Limit  int                  // <= 0 means no limit
	Offset int
}

// ListDocuments returns documents in a collection, newest first, optionally
// filtered and paginated.
func (s *Store) ListDocuments(ctx context.Context, collectionID string, filter DocumentFilter) ([]model.Document, error) {
	query := `
SELECT id, collection_id, title, content_type, file_size, source_url, file_path, status, error_message, metadata, created_at, updated_at, processed_at
FROM documents WHERE collection_id = $1`
	args := []any{collectionID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Storage("list documents", err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		var metaJSON []byte
		if err := rows.Scan(&d.ID, &d.CollectionID, &d.Title, &d.ContentType, &d.FileSize, &d.SourceURL, &d.FilePath,
			&d.Status, &d.ErrorMessage, &metaJSON, &d.CreatedAt, &d.UpdatedAt, &d.ProcessedAt); err != nil {
			return nil, apperr.Storage("scan document", err)
		}
		d.Metadata, err = unmarshalMetadata(metaJSON)
		if err != nil {
			return nil, apperr.Storage("decode metadata", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDocumentStatus transitions a document's status, optionally setting
// error_message and processed_at. A nil errMsg clears any previous error.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id string, status model.DocumentStatus, errMsg *string, stampProcessed bool) error {
	var query string
	if stampProcessed {
		query = `UPDATE documents SET status=$2, error_message=$3, updated_at=now(), processed_at=now() WHERE id=$1`
	} else {
		query = `UPDATE documents SET status=$2, error_message=$3, updated_at=now() WHERE id=$1`
	}
	tag, err := s.pool.Exec(ctx, query, id, status, errMsg)
	if err != nil {
		return apperr.Storage("update document status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeDocumentNotFound, "document not found")
	}
	return nil
}

// SetDocumentFilePath stamps the storage locator once a document's bytes
// have been written to disk (crawler and upload handlers both create the
// row before they know the final path).
func (s *Store) SetDocumentFilePath(ctx context.Context, id, path string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE documents SET file_path=$2, updated_at=now() WHERE id=$1`, id, path)
	if err != nil {
		return apperr.Storage("set document file path", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeDocumentNotFound, "document not found")
	}
	return nil
}

// DeleteDocument removes a document and (via cascade) its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return apperr.Storage("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeDocumentNotFound, "document not found")
	}
	return nil
}

// CollectionEmbeddingProvider returns the embedding_provider metadata of the
// collection's most recently processed document, for query/chunk vector
// consistency (spec §4.B).
func (s *Store) CollectionEmbeddingProvider(ctx context.Context, collectionID string) (string, bool, error) {
	var metaJSON []byte
	row := s.pool.QueryRow(ctx, `
SELECT metadata FROM documents
WHERE collection_id = $1 AND status = 'complete'
ORDER BY processed_at DESC NULLS LAST LIMIT 1`, collectionID)
	if err := row.Scan(&metaJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperr.Storage("collection embedding provider", err)
	}
	meta, err := unmarshalMetadata(metaJSON)
	if err != nil {
		return "", false, apperr.Storage("decode metadata", err)
	}
	provider, ok := meta.EmbeddingProvider()
	return provider, ok, nil
}

// --- Chunks ------------------------------------------------------------

// ReplaceChunks deletes any existing chunks for a document and inserts the
// given set, all inside one transaction (spec §4.A, §4.E).
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []model.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Storage("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return apperr.Storage("delete existing chunks", err)
	}

	for _, c := range chunks {
		metaJSON, err := marshalMetadata(c.Metadata)
		if err != nil {
			return apperr.Validation("encode chunk metadata", err)
		}
		var vec *pgvector.Vector
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			vec = &v
		}
		_, err = tx.Exec(ctx, `
INSERT INTO chunks (document_id, chunk_index, text, token_count, embedding, embedding_model, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			documentID, c.ChunkIndex, c.Text, c.TokenCount, vec, c.EmbeddingModel, metaJSON)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict(fmt.Sprintf("duplicate chunk_index %d for document %s", c.ChunkIndex, documentID))
			}
			return apperr.Storage("insert chunk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Storage("commit transaction", err)
	}
	return nil
}

// DeleteChunks removes all chunks for a document.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return apperr.Storage("delete chunks", err)
	}
	return nil
}

// VectorHit is one row returned by VectorQuery or FullTextQuery.
type VectorHit struct {
	ChunkID       int64
	DocumentID    string
	Similarity    float64
	Text          string
	DocTitle      string
	DocMetadata   model.Metadata
	ChunkMetadata model.Metadata
}

// VectorQuery runs an approximate-nearest-neighbor search scoped to a
// collection using cosine distance (spec §4.A, §4.G).
func (s *Store) VectorQuery(ctx context.Context, collectionID string, embedding []float32, limit int) ([]VectorHit, error) {
	rows, err := s.pool.Query(ctx, `
SELECT c.id, c.document_id, 1 - (c.embedding <=> $1) AS similarity, c.text, c.metadata, d.title, d.metadata
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE d.collection_id = $2 AND c.embedding IS NOT NULL
ORDER BY c.embedding <=> $1
LIMIT $3`, pgvector.NewVector(embedding), collectionID, limit)
	if err != nil {
		return nil, apperr.Storage("vector query", err)
	}
	defer rows.Close()
	return scanHits(rows)
}

// FullTextQuery runs a BM25-style ranked search over the tsvector index
// scoped to a collection, with each term already prefix-expanded by the
// caller into "term:*" tsquery syntax (spec §4.A, §4.H).
func (s *Store) FullTextQuery(ctx context.Context, collectionID, queryText string, limit int) ([]VectorHit, error) {
	rows, err := s.pool.Query(ctx, `
SELECT c.id, c.document_id, ts_rank_cd(c.tsv, to_tsquery($4, $1)) AS rank, c.text, c.metadata, d.title, d.metadata
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE d.collection_id = $2 AND c.tsv @@ to_tsquery($4, $1)
ORDER BY rank DESC
LIMIT $3`, queryText, collectionID, limit, s.lang)
	if err != nil {
		return nil, apperr.Storage("full text query", err)
	}
	defer rows.Close()
	return scanHits(rows)
}

func scanHits(rows pgx.Rows) ([]VectorHit, error) {
	var out []VectorHit
	for rows.Next() {
		var h VectorHit
		var chunkMetaJSON, docMetaJSON []byte
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Similarity, &h.Text, &chunkMetaJSON, &h.DocTitle, &docMetaJSON); err != nil {
			return nil, apperr.Storage("scan hit", err)
		}
		var err error
		h.ChunkMetadata, err = unmarshalMetadata(chunkMetaJSON)
		if err != nil {
			return nil, apperr.Storage("decode chunk metadata", err)
		}
		h.DocMetadata, err = unmarshalMetadata(docMetaJSON)
		if err != nil {
			return nil, apperr.Storage("decode document metadata", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// --- Cost & budget -------------------------------------------------------

// InsertCostRecord appends one billable-call record (append-only, spec §3).
func (s *Store) InsertCostRecord(ctx context.Context, r model.CostRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO cost_records (provider, operation, tokens_used, cost_usd, model, collection_id)
VALUES ($1, $2, $3, $4, $5, $6)`, r.Provider, r.Operation, r.TokensUsed, r.CostUSD, r.Model, r.CollectionID)
	if err != nil {
		return apperr.Storage("insert cost record", err)
	}
	return nil
}

// MonthlySpend sums cost_usd for the calendar month containing `at`.
func (s *Store) MonthlySpend(ctx context.Context, at time.Time) (float64, error) {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	end := start.AddDate(0, 1, 0)
	var total float64
	row := s.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(cost_usd), 0) FROM cost_records WHERE created_at >= $1 AND created_at < $2`, start, end)
	if err := row.Scan(&total); err != nil {
		return 0, apperr.Storage("monthly spend", err)
	}
	return total, nil
}

// DailySpend sums cost_usd for the calendar day containing `at`.
func (s *Store) DailySpend(ctx context.Context, at time.Time) (float64, error) {
	start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	end := start.AddDate(0, 0, 1)
	var total float64
	row := s.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(cost_usd), 0) FROM cost_records WHERE created_at >= $1 AND created_at < $2`, start, end)
	if err := row.Scan(&total); err != nil {
		return 0, apperr.Storage("daily spend", err)
	}
	return total, nil
}

// CostBreakdown aggregates cost_records by (provider, operation) over the
// half-open window [since, until).
func (s *Store) CostBreakdown(ctx context.Context, since, until time.Time) ([]cost.Breakdown, error) {
	rows, err := s.pool.Query(ctx, `
SELECT provider, operation, COUNT(*), COALESCE(SUM(tokens_used), 0), COALESCE(SUM(cost_usd), 0)
FROM cost_records
WHERE created_at >= $1 AND created_at < $2
GROUP BY provider, operation
ORDER BY provider, operation`, since, until)
	if err != nil {
		return nil, apperr.Storage("cost breakdown", err)
	}
	defer rows.Close()

	var out []cost.Breakdown
	for rows.Next() {
		var b cost.Breakdown
		if err := rows.Scan(&b.Provider, &b.Operation, &b.RequestCount, &b.TotalTokens, &b.TotalCostUSD); err != nil {
			return nil, apperr.Storage("scan cost breakdown", err)
		}
		if b.RequestCount > 0 {
			b.AvgCostPerReqUSD = b.TotalCostUSD / float64(b.RequestCount)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RecentAlert reports whether an alert of the given type/period was raised
// within the last 24 hours (spec §3 dedupe invariant).
func (s *Store) RecentAlert(ctx context.Context, alertType model.AlertType, period string) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM budget_alerts
	WHERE alert_type = $1 AND period = $2 AND triggered_at > now() - interval '24 hours'
)`, alertType, period)
	if err := row.Scan(&exists); err != nil {
		return false, apperr.Storage("recent alert lookup", err)
	}
	return exists, nil
}

// InsertAlert records a budget-threshold crossing.
func (s *Store) InsertAlert(ctx context.Context, a model.BudgetAlert) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO budget_alerts (alert_type, period, threshold_usd, current_spend_usd)
VALUES ($1, $2, $3, $4)`, a.AlertType, a.Period, a.ThresholdUSD, a.CurrentSpendUSD)
	if err != nil {
		return apperr.Storage("insert alert", err)
	}
	return nil
}

// ListAlerts returns every budget alert ever raised, newest first (spec §6
// "GET /api/costs/alerts").
func (s *Store) ListAlerts(ctx context.Context) ([]model.BudgetAlert, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, alert_type, period, threshold_usd, current_spend_usd, triggered_at
FROM budget_alerts ORDER BY triggered_at DESC`)
	if err != nil {
		return nil, apperr.Storage("list alerts", err)
	}
	defer rows.Close()

	var out []model.BudgetAlert
	for rows.Next() {
		var a model.BudgetAlert
		if err := rows.Scan(&a.ID, &a.AlertType, &a.Period, &a.ThresholdUSD, &a.CurrentSpendUSD, &a.TriggeredAt); err != nil {
			return nil, apperr.Storage("scan alert", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
