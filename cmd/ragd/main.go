// Command ragd runs the retrieval backend's HTTP server: it wires storage,
// ingestion, search, synthesis, and cost tracking per the teacher's
// cmd/server bootstrap (config → dependencies → router → graceful
// shutdown), swapping a chat server for the RAG HTTP surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fabfab/ragcore/internal/chunking"
	"github.com/fabfab/ragcore/internal/config"
	"github.com/fabfab/ragcore/internal/cost"
	"github.com/fabfab/ragcore/internal/crawler"
	"github.com/fabfab/ragcore/internal/embedding"
	"github.com/fabfab/ragcore/internal/embeddings"
	"github.com/fabfab/ragcore/internal/httpapi"
	"github.com/fabfab/ragcore/internal/ingest"
	"github.com/fabfab/ragcore/internal/llm"
	"github.com/fabfab/ragcore/internal/runtime"
	"github.com/fabfab/ragcore/internal/search"
	"github.com/fabfab/ragcore/internal/storage"
	"github.com/fabfab/ragcore/internal/synthesis"
)

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("ragcore dev build")
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := storage.New(ctx, cfg.DatabaseURL, int32(getEnvInt("DATABASE_MAX_CONNS", 10)), cfg.FTS.Language)
	if err != nil {
		logger.Fatal("failed to connect store", zap.Error(err))
	}
	defer store.Close()

	files, err := storage.NewFileGateway(cfg.StoragePath)
	if err != nil {
		logger.Fatal("failed to set up file storage", zap.Error(err))
	}

	overrides := runtime.NewStore()
	costTracker := cost.NewTracker(store, overrides, cfg.Cost.MonthlyBudgetUSD, cfg.Cost.AlertsEnabled, logger)

	router := buildEmbeddingRouter(cfg, costTracker, overrides, logger)

	orchestrator, err := ingest.New(store, files, router,
		getEnvInt("INGEST_MAX_IN_FLIGHT", 3),
		getEnvInt("INGEST_BATCH_SIZE", 8),
		getEnvInt("INGEST_DEDUPE_CACHE_SIZE", 1024),
		chunking.Config{MaxSize: getEnvInt("CHUNK_MAX_SIZE", 800), Overlap: getEnvInt("CHUNK_OVERLAP", 150)},
		logger,
	)
	if err != nil {
		logger.Fatal("failed to build ingestion orchestrator", zap.Error(err))
	}

	fetcher := crawler.NewFetcher()
	pageCrawler := crawler.New(fetcher, store, files, orchestrator, logger)

	vectorSearcher := search.NewVectorSearcher(store, router)
	bm25Searcher := search.NewBM25Searcher(store, cfg.FTS.Language)
	hybridFuser := search.NewHybridFuser(vectorSearcher, bm25Searcher)
	rescorer := search.NewRescorer(time.Now)
	reranker := buildReranker(cfg, costTracker, overrides, logger)

	llmClient := llm.New(os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("ANTHROPIC_BASE_URL"), cfg.Contradiction.Model)
	synthesisEngine := synthesis.NewEngine(router, llmClient, time.Now, overrides, logger)

	srv := httpapi.New(httpapi.Deps{
		Config:       cfg,
		Store:        store,
		Files:        files,
		Orchestrator: orchestrator,
		Crawler:      pageCrawler,
		Embed:        router,
		Vector:       vectorSearcher,
		BM25:         bm25Searcher,
		Hybrid:       hybridFuser,
		Rescorer:     rescorer,
		Reranker:     reranker,
		Synthesis:    synthesisEngine,
		Cost:         costTracker,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.Address,
		Handler: srv,
	}

	logger.Info("starting server",
		zap.String("address", cfg.Address),
		zap.String("storage_path", cfg.StoragePath),
		zap.String("reranker", string(cfg.Rerank.Provider)),
	)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	waitForShutdown(httpServer, logger)
}

// buildEmbeddingRouter wires the three standard provider ids (spec §4.B):
// a local Ollama-backed provider plus two OpenAI-compatible cloud
// providers for general and code content.
func buildEmbeddingRouter(cfg config.Config, tracker *cost.Tracker, overrides *runtime.Store, logger *zap.Logger) *embedding.Router {
	localClient := embeddings.NewClient(
		getEnv("OLLAMA_HOST", "http://localhost:11434"),
		getEnv("LOCAL_EMBED_MODEL", "nomic-embed-text"),
		90*time.Second,
	)
	local := embedding.NewLocalProvider(localClient, getEnv("LOCAL_EMBED_MODEL", "nomic-embed-text"), getEnvInt("LOCAL_EMBED_DIMENSION", 768))

	generalCloud := embedding.NewCloudProvider(
		embedding.ProviderGeneralCloud,
		os.Getenv("GENERAL_CLOUD_EMBED_API_KEY"),
		os.Getenv("GENERAL_CLOUD_EMBED_BASE_URL"),
		getEnv("GENERAL_CLOUD_EMBED_MODEL", "text-embedding-3-small"),
		getEnvInt("GENERAL_CLOUD_EMBED_DIMENSION", 1536),
	)
	codeCloud := embedding.NewCloudProvider(
		embedding.ProviderCodeCloud,
		os.Getenv("CODE_CLOUD_EMBED_API_KEY"),
		os.Getenv("CODE_CLOUD_EMBED_BASE_URL"),
		getEnv("CODE_CLOUD_EMBED_MODEL", "text-embedding-3-large"),
		getEnvInt("CODE_CLOUD_EMBED_DIMENSION", 3072),
	)

	typeDefaults := map[string]string{}
	if cfg.Embed.DocProvider != "" {
		typeDefaults["docs"] = cfg.Embed.DocProvider
	}
	if cfg.Embed.CodeProvider != "" {
		typeDefaults["code"] = cfg.Embed.CodeProvider
	}
	if cfg.Embed.WritingProvider != "" {
		typeDefaults["personal"] = cfg.Embed.WritingProvider
	}

	return embedding.NewRouter(local, generalCloud, codeCloud, typeDefaults, cfg.Embed.GlobalOverride, tracker, overrides, logger)
}

// buildReranker wires the cross-encoder reranker (component K): a cloud
// provider plus a local fallback, selected per request via
// config.RerankConfig and degraded to local automatically in fallback mode.
func buildReranker(cfg config.Config, tracker *cost.Tracker, overrides *runtime.Store, logger *zap.Logger) *search.Reranker {
	cloud := search.NewCloudRerankProvider(
		os.Getenv("CLOUD_RERANK_API_KEY"),
		os.Getenv("CLOUD_RERANK_BASE_URL"),
		getEnv("CLOUD_RERANK_MODEL", "rerank-english-v3.0"),
	)
	local := search.NewLocalRerankProvider(
		getEnv("OLLAMA_HOST", "http://localhost:11434"),
		getEnv("LOCAL_RERANK_MODEL", "bge-reranker-base"),
	)
	return search.NewReranker(cloud, local, tracker, cfg.Rerank.BatchSize, overrides, logger)
}

func waitForShutdown(srv *http.Server, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if err := srv.Close(); err != nil {
			logger.Warn("forced close failed", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		var parsed int
		if _, err := fmt.Sscanf(v, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
