package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/crawler"
	"github.com/fabfab/ragcore/internal/model"
	"github.com/fabfab/ragcore/internal/storage"
)

// maxUploadBytes matches the 50MB cap spec §5 imposes on remote (crawler)
// downloads; applying the same ceiling to direct uploads keeps one limit to
// reason about.
const maxUploadBytes = 50 << 20

// multipartMemoryBudget is how much of a multipart form chi/net/http buffers
// in memory before spilling additional parts to temp files.
const multipartMemoryBudget = 16 << 20

var extToContentType = map[string]string{
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
}

func inferContentType(filename string) (string, bool) {
	ct, ok := extToContentType[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

type uploadedDocumentDTO struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

func (s *Server) handleIngestUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryBudget); err != nil {
		s.writeError(w, apperr.Validation("parse multipart form", err))
		return
	}

	collectionID := strings.TrimSpace(r.FormValue("collection_id"))
	if collectionID == "" {
		s.writeError(w, apperr.Validation("collection_id is required", nil))
		return
	}
	if _, err := s.store.GetCollection(r.Context(), collectionID); err != nil {
		s.writeError(w, err)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeError(w, apperr.Validation("at least one file is required under the \"files\" field", nil))
		return
	}

	out := make([]uploadedDocumentDTO, 0, len(files))
	var documentIDs []string
	for _, header := range files {
		dto, id, err := s.ingestOneUpload(r.Context(), collectionID, header)
		if err != nil {
			s.writeError(w, err)
			return
		}
		out = append(out, dto)
		documentIDs = append(documentIDs, id)
	}

	// Ingestion runs asynchronously; the client polls
	// GET /api/ingest/status/:doc_id for progress.
	go s.orchestrator.IngestMany(context.Background(), documentIDs)

	writeJSON(w, http.StatusAccepted, map[string]any{"documents": out})
}

func (s *Server) ingestOneUpload(ctx context.Context, collectionID string, header *multipart.FileHeader) (uploadedDocumentDTO, string, error) {
	if header.Size > maxUploadBytes {
		return uploadedDocumentDTO{}, "", &apperr.Error{
			Code:    apperr.CodeFileTooLarge,
			Message: fmt.Sprintf("%s exceeds the %d byte upload limit", header.Filename, maxUploadBytes),
		}
	}

	contentType, ok := inferContentType(header.Filename)
	if !ok {
		return uploadedDocumentDTO{}, "", &apperr.Error{
			Code:    apperr.CodeUnsupportedType,
			Message: fmt.Sprintf("unsupported file extension for %q", header.Filename),
		}
	}

	f, err := header.Open()
	if err != nil {
		return uploadedDocumentDTO{}, "", apperr.Validation("open uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return uploadedDocumentDTO{}, "", apperr.Validation("read uploaded file", err)
	}
	if len(data) > maxUploadBytes {
		return uploadedDocumentDTO{}, "", &apperr.Error{
			Code:    apperr.CodeFileTooLarge,
			Message: fmt.Sprintf("%s exceeds the %d byte upload limit", header.Filename, maxUploadBytes),
		}
	}

	doc, err := s.store.CreateDocument(ctx, model.Document{
		CollectionID: collectionID,
		Title:        header.Filename,
		ContentType:  contentType,
		FileSize:     int64(len(data)),
		Metadata:     model.Metadata{},
	})
	if err != nil {
		return uploadedDocumentDTO{}, "", err
	}

	path, err := s.files.Save(collectionID, doc.ID, filepath.Ext(header.Filename), data)
	if err != nil {
		return uploadedDocumentDTO{}, "", apperr.Storage("save uploaded file", err)
	}
	if err := s.store.SetDocumentFilePath(ctx, doc.ID, path); err != nil {
		return uploadedDocumentDTO{}, "", err
	}

	return uploadedDocumentDTO{ID: doc.ID, Title: doc.Title, Status: string(model.StatusPending)}, doc.ID, nil
}

// progressForStatus gives a rough linear estimate of ingestion progress, in
// the absence of any finer-grained per-chunk tracking (spec §6 "progress
// estimate").
func progressForStatus(status model.DocumentStatus) float64 {
	switch status {
	case model.StatusPending:
		return 0
	case model.StatusExtracting:
		return 0.25
	case model.StatusChunking:
		return 0.5
	case model.StatusEmbedding:
		return 0.75
	case model.StatusComplete:
		return 1
	default:
		return 0
	}
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "doc_id")
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := map[string]any{
		"document_id": doc.ID,
		"status":      doc.Status,
		"progress":    progressForStatus(doc.Status),
	}
	if doc.ErrorMessage != nil {
		resp["error_message"] = *doc.ErrorMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

type documentDTO struct {
	ID           string         `json:"id"`
	CollectionID string         `json:"collection_id"`
	Title        string         `json:"title"`
	ContentType  string         `json:"content_type"`
	FileSize     int64          `json:"file_size"`
	SourceURL    *string        `json:"source_url,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	Metadata     model.Metadata `json:"metadata,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	ProcessedAt  *string        `json:"processed_at,omitempty"`
}

func toDocumentDTO(d model.Document) documentDTO {
	dto := documentDTO{
		ID:           d.ID,
		CollectionID: d.CollectionID,
		Title:        d.Title,
		ContentType:  d.ContentType,
		FileSize:     d.FileSize,
		SourceURL:    d.SourceURL,
		Status:       string(d.Status),
		ErrorMessage: d.ErrorMessage,
		Metadata:     d.Metadata,
		CreatedAt:    d.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:    d.UpdatedAt.UTC().Format(timeLayout),
	}
	if d.ProcessedAt != nil {
		formatted := d.ProcessedAt.UTC().Format(timeLayout)
		dto.ProcessedAt = &formatted
	}
	return dto
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	collectionID := strings.TrimSpace(q.Get("collection_id"))
	if collectionID == "" {
		s.writeError(w, apperr.Validation("collection_id is required", nil))
		return
	}

	filter := storageDocumentFilter(q)
	docs, err := s.store.ListDocuments(r.Context(), collectionID, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]documentDTO, len(docs))
	for i, d := range docs {
		out[i] = toDocumentDTO(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out, "total": len(out)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if doc.FilePath != nil {
		if err := s.files.Remove(*doc.FilePath); err != nil {
			s.log.Warn("remove document file failed", zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func storageDocumentFilter(q map[string][]string) storage.DocumentFilter {
	var f storage.DocumentFilter
	if v := first(q["status"]); v != "" {
		f.Status = model.DocumentStatus(v)
	}
	if v := first(q["limit"]); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := first(q["offset"]); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Offset = n
		}
	}
	return f
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL          string `json:"url"`
		CollectionID string `json:"collection_id"`
		Mode         string `json:"mode"`
		MaxPages     int    `json:"max_pages"`
		TitlePrefix  string `json:"title_prefix"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, apperr.Validation("decode request body", err))
		return
	}
	if strings.TrimSpace(body.URL) == "" || strings.TrimSpace(body.CollectionID) == "" {
		s.writeError(w, apperr.Validation("url and collection_id are required", nil))
		return
	}

	mode := crawler.ModeSingle
	if body.Mode == string(crawler.ModeCrawl) {
		mode = crawler.ModeCrawl
	}
	discovered, err := s.crawler.Run(r.Context(), crawler.Request{
		URL:          body.URL,
		CollectionID: body.CollectionID,
		Mode:         mode,
		MaxPages:     body.MaxPages,
		TitlePrefix:  body.TitlePrefix,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]string, len(discovered))
	for i, d := range discovered {
		out[i] = map[string]string{"doc_id": d.DocumentID, "url": d.URL, "title": d.Title}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}
