// Package ingest implements the Ingestion Orchestrator (component E): the
// state machine that drives a Document from pending through extraction,
// chunking, and embedding to complete (or error), plus the bounded worker
// pool that runs several documents concurrently.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/chunking"
	"github.com/fabfab/ragcore/internal/embedding"
	"github.com/fabfab/ragcore/internal/extraction"
	"github.com/fabfab/ragcore/internal/model"
)

// store is the subset of storage.Store the orchestrator needs.
type store interface {
	GetDocument(ctx context.Context, id string) (model.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status model.DocumentStatus, errMsg *string, stampProcessed bool) error
	ReplaceChunks(ctx context.Context, documentID string, chunks []model.Chunk) error
}

// fileReader loads a document's stored file contents.
type fileReader interface {
	Read(path string) ([]byte, error)
}

const (
	defaultBatchSize     = 8
	defaultMaxInFlight   = 3
	maxEmbedAttempts     = 3
	errorMessageMaxChars = 2000
)

// Orchestrator runs the pending→...→complete state machine for documents.
type Orchestrator struct {
	store     store
	files     fileReader
	router    *embedding.Router
	cache     *lru.Cache[string, []float32]
	sem       chan struct{}
	chunkCfg  chunking.Config
	batchSize int
	log       *zap.Logger
}

// New builds an Orchestrator. maxInFlight bounds concurrent document
// ingests (spec §5 default 3); batchSize bounds embedding calls per batch
// (spec §4.E recommends 6-10); cacheSize bounds the content-hash→vector
// dedupe cache. A nil logger falls back to zap.NewNop().
func New(s store, f fileReader, r *embedding.Router, maxInFlight, batchSize, cacheSize int, chunkCfg chunking.Config, logger *zap.Logger) (*Orchestrator, error) {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if cacheSize <= 0 {
		cacheSize = 2048
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Orchestrator{
		store:     s,
		files:     f,
		router:    r,
		cache:     cache,
		sem:       make(chan struct{}, maxInFlight),
		chunkCfg:  chunkCfg,
		batchSize: batchSize,
		log:       logger,
	}, nil
}

// IngestMany runs Ingest for every document id with bounded concurrency
// (spec §5: default 3 documents in parallel). A failure in one document
// does not cancel the others.
func (o *Orchestrator) IngestMany(ctx context.Context, documentIDs []string) {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	for _, id := range documentIDs {
		id := id
		g.Go(func() error {
			select {
			case o.sem <- struct{}{}:
				defer func() { <-o.sem }()
			case <-gctx.Done():
				return nil
			}
			if err := o.Ingest(gctx, id); err != nil {
				o.log.Error("ingest failed", zap.String("document_id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Ingest runs the full pipeline for one document. It is idempotent: a
// second call transactionally replaces the document's chunks.
func (o *Orchestrator) Ingest(ctx context.Context, documentID string) error {
	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	if err := o.transition(ctx, documentID, model.StatusExtracting, nil, false); err != nil {
		return err
	}

	if doc.FilePath == nil {
		return o.fail(ctx, documentID, apperr.Extraction("extract", fmt.Errorf("document has no stored file")))
	}
	raw, err := o.files.Read(*doc.FilePath)
	if err != nil {
		return o.fail(ctx, documentID, apperr.Extraction("extract", err))
	}

	if err := ctx.Err(); err != nil {
		return apperr.ErrCancelled
	}
	extracted, err := extraction.Extract(raw, doc.ContentType)
	if err != nil {
		return o.fail(ctx, documentID, err)
	}

	if err := o.transition(ctx, documentID, model.StatusChunking, nil, false); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.ErrCancelled
	}

	docMeta := map[string]any(doc.Metadata)
	for k, v := range extracted.Metadata {
		docMeta[k] = v
	}
	rawChunks := chunking.Split(extracted.Text, docMeta, o.chunkCfg)
	if len(rawChunks) == 0 {
		return o.fail(ctx, documentID, apperr.Chunking("document produced no chunks", nil))
	}

	if err := o.transition(ctx, documentID, model.StatusEmbedding, nil, false); err != nil {
		return err
	}

	cc := embedding.ContentContext{CollectionID: doc.CollectionID}
	if lang, ok := doc.Metadata.String("language"); ok {
		cc.Language = lang
	}

	chunks, err := o.embedChunks(ctx, documentID, rawChunks, cc)
	if err != nil {
		if apperr.IsCancelled(err) {
			return err
		}
		return o.fail(ctx, documentID, err)
	}

	if err := o.store.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return o.fail(ctx, documentID, err)
	}

	return o.transition(ctx, documentID, model.StatusComplete, nil, true)
}

// Restart resets a failed document to pending and re-invokes Ingest.
func (o *Orchestrator) Restart(ctx context.Context, documentID string) error {
	if err := o.transition(ctx, documentID, model.StatusPending, nil, false); err != nil {
		return err
	}
	return o.Ingest(ctx, documentID)
}

func (o *Orchestrator) embedChunks(ctx context.Context, documentID string, raw []chunking.Chunk, cc embedding.ContentContext) ([]model.Chunk, error) {
	out := make([]model.Chunk, len(raw))
	for start := 0; start < len(raw); start += o.batchSize {
		end := start + o.batchSize
		if end > len(raw) {
			end = len(raw)
		}
		if err := ctx.Err(); err != nil {
			return nil, apperr.ErrCancelled
		}

		batch := raw[start:end]
		hashes := make([]string, len(batch))
		toEmbed := make([]string, 0, len(batch))
		toEmbedIdx := make([]int, 0, len(batch))

		for i, c := range batch {
			h := contentHash(c.Text)
			hashes[i] = h
			if _, ok := o.cache.Get(h); !ok {
				toEmbed = append(toEmbed, c.Text)
				toEmbedIdx = append(toEmbedIdx, i)
			}
		}

		var res embedding.Result
		if len(toEmbed) > 0 {
			var err error
			res, err = o.embedWithRetry(ctx, toEmbed, cc)
			if err != nil {
				return nil, err
			}
			for j, idx := range toEmbedIdx {
				o.cache.Add(hashes[idx], res.Vectors[j])
			}
		}

		for i, c := range batch {
			vec, ok := o.cache.Get(hashes[i])
			if !ok {
				return nil, apperr.Embedding("embedding cache miss after embed call", nil)
			}
			modelID := res.ModelID
			meta := model.Metadata{}
			for k, v := range c.Metadata {
				meta[k] = v
			}
			meta["embedding_provider"] = res.ProviderID
			meta["embedding_model"] = modelID
			meta["embedding_dimensions"] = len(vec)

			out[start+i] = model.Chunk{
				DocumentID:     documentID,
				ChunkIndex:     c.ChunkIndex,
				Text:           c.Text,
				TokenCount:     chunking.TokenCount(c.Text),
				Embedding:      vec,
				EmbeddingModel: modelID,
				Metadata:       meta,
			}
		}
	}
	return out, nil
}

// embedWithRetry retries every failed EmbedBatch call with exponential
// backoff (200ms, doubling) up to maxEmbedAttempts, invisibly to the
// orchestrator's caller (spec §4.E retry policy). Errors are not classified:
// a permanent failure is retried the same way as a transient one, and the
// last error is returned once the attempts run out.
func (o *Orchestrator) embedWithRetry(ctx context.Context, texts []string, cc embedding.ContentContext) (embedding.Result, error) {
	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 1; attempt <= maxEmbedAttempts; attempt++ {
		res, err := o.router.EmbedBatch(ctx, texts, cc, "")
		if err == nil {
			return res, nil
		}
		lastErr = err
		if attempt == maxEmbedAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return embedding.Result{}, apperr.ErrCancelled
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return embedding.Result{}, lastErr
}

func (o *Orchestrator) transition(ctx context.Context, documentID string, status model.DocumentStatus, errMsg *string, stampProcessed bool) error {
	if ctx.Err() != nil {
		return apperr.ErrCancelled
	}
	return o.store.UpdateDocumentStatus(ctx, documentID, status, errMsg, stampProcessed)
}

func (o *Orchestrator) fail(ctx context.Context, documentID string, cause error) error {
	msg := cause.Error()
	if len(msg) > errorMessageMaxChars {
		msg = msg[:errorMessageMaxChars]
	}
	if err := o.store.UpdateDocumentStatus(context.WithoutCancel(ctx), documentID, model.StatusError, &msg, false); err != nil {
		o.log.Error("failed to record document error status", zap.String("document_id", documentID), zap.Error(err))
	}
	return cause
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
