// Package httpapi implements the §6 HTTP surface: a chi router translating
// JSON requests into calls against the component packages, and their
// results back into the documented response shapes. It holds no business
// logic of its own — that lives in storage, ingest, crawler, search,
// synthesis, and cost — grounded on the teacher's internal/server, which
// draws the same line between router/handlers and its storage.Manager.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/config"
	"github.com/fabfab/ragcore/internal/cost"
	"github.com/fabfab/ragcore/internal/crawler"
	"github.com/fabfab/ragcore/internal/embedding"
	"github.com/fabfab/ragcore/internal/ingest"
	"github.com/fabfab/ragcore/internal/search"
	"github.com/fabfab/ragcore/internal/storage"
	"github.com/fabfab/ragcore/internal/synthesis"
)

// Server wires every component package to the chi router described in
// spec §6. Handlers are thin: decode, delegate, encode.
type Server struct {
	cfg    config.Config
	router http.Handler
	log    *zap.Logger

	store        *storage.Store
	files        *storage.FileGateway
	orchestrator *ingest.Orchestrator
	crawler      *crawler.Crawler
	embed        *embedding.Router

	vector    *search.VectorSearcher
	bm25      *search.BM25Searcher
	hybrid    *search.HybridFuser
	rescorer  *search.Rescorer
	reranker  *search.Reranker
	synthesis *synthesis.Engine
	cost      *cost.Tracker

	now func() time.Time
}

// Deps bundles every dependency New needs, avoiding an unwieldy positional
// constructor now that the graph has grown past a handful of components.
type Deps struct {
	Config       config.Config
	Store        *storage.Store
	Files        *storage.FileGateway
	Orchestrator *ingest.Orchestrator
	Crawler      *crawler.Crawler
	Embed        *embedding.Router
	Vector       *search.VectorSearcher
	BM25         *search.BM25Searcher
	Hybrid       *search.HybridFuser
	Rescorer     *search.Rescorer
	Reranker     *search.Reranker
	Synthesis    *synthesis.Engine
	Cost         *cost.Tracker
	Logger       *zap.Logger
}

// New builds a Server and its chi router. A nil Logger falls back to
// zap.NewNop().
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	s := &Server{
		cfg:          d.Config,
		log:          d.Logger,
		store:        d.Store,
		files:        d.Files,
		orchestrator: d.Orchestrator,
		crawler:      d.Crawler,
		embed:        d.Embed,
		vector:       d.Vector,
		bm25:         d.BM25,
		hybrid:       d.Hybrid,
		rescorer:     d.Rescorer,
		reranker:     d.Reranker,
		synthesis:    d.Synthesis,
		cost:         d.Cost,
		now:          time.Now,
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Logger)
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	mux.Get("/api/health", s.handleHealth)

	mux.Post("/api/collections", s.handleCreateCollection)
	mux.Get("/api/collections", s.handleListCollections)
	mux.Get("/api/collections/{id}", s.handleGetCollection)
	mux.Delete("/api/collections/{id}", s.handleDeleteCollection)

	mux.Post("/api/ingest", s.handleIngestUpload)
	mux.Get("/api/ingest/status/{doc_id}", s.handleIngestStatus)

	mux.Post("/api/crawl", s.handleCrawl)

	mux.Get("/api/documents", s.handleListDocuments)
	mux.Get("/api/documents/{id}", s.handleGetDocument)
	mux.Delete("/api/documents/{id}", s.handleDeleteDocument)

	mux.Post("/api/search", s.handleSearch)

	mux.Post("/api/synthesis/compare", s.handleSynthesisCompare)

	mux.Get("/api/costs/summary", s.handleCostsSummary)
	mux.Get("/api/costs/history", s.handleCostsHistory)
	mux.Get("/api/costs/alerts", s.handleCostsAlerts)

	s.router = mux
	return s
}

// ServeHTTP exposes the router so Server satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorEnvelope is the §6 error response shape.
type errorEnvelope struct {
	Error     string      `json:"error"`
	Code      apperr.Code `json:"code"`
	Details   string      `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError translates err into the §6 error envelope and picks an HTTP
// status from its apperr.Code, defaulting to 500 for untyped errors.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		s.log.Error("unclassified error reached HTTP boundary", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{
			Error:     "internal error",
			Code:      apperr.CodeDatabaseError,
			Timestamp: s.now().UTC(),
		})
		return
	}

	status := statusForCode(appErr.Code)
	env := errorEnvelope{Error: appErr.Message, Code: appErr.Code, Timestamp: s.now().UTC()}
	if appErr.Cause != nil {
		env.Details = appErr.Cause.Error()
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("code", string(appErr.Code)), zap.Error(err))
	}
	writeJSON(w, status, env)
}

func statusForCode(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidInput:
		return http.StatusBadRequest
	case apperr.CodeCollectionNotFound, apperr.CodeDocumentNotFound:
		return http.StatusNotFound
	case apperr.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperr.CodeUnsupportedType:
		return http.StatusUnsupportedMediaType
	case apperr.CodeProcessingError:
		return http.StatusUnprocessableEntity
	case apperr.CodeEmbeddingError:
		return http.StatusBadGateway
	case apperr.CodeDatabaseError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
