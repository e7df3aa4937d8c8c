package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fabfab/ragcore/internal/apperr"
	"github.com/fabfab/ragcore/internal/model"
)

// collectionDTO is the §6 JSON shape for a Collection. DocumentCount and
// ChunkCount are only populated by the list/get endpoints that spec §6
// documents as carrying them.
type collectionDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	DocumentCount *int   `json:"document_count,omitempty"`
	ChunkCount    *int   `json:"chunk_count,omitempty"`
}

func toCollectionDTO(c model.Collection) collectionDTO {
	return collectionDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   c.UpdatedAt.UTC().Format(timeLayout),
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, apperr.Validation("decode request body", err))
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		s.writeError(w, apperr.Validation("name must not be empty", nil))
		return
	}

	c, err := s.store.CreateCollection(r.Context(), body.Name, body.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCollectionDTO(c))
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.store.ListCollections(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]collectionDTO, len(collections))
	for i, c := range collections {
		dto := toCollectionDTO(c)
		count, err := s.store.CollectionDocumentCount(r.Context(), c.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		dto.DocumentCount = &count
		out[i] = dto
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": out})
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := s.store.GetCollection(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	dto := toCollectionDTO(c)
	docCount, err := s.store.CollectionDocumentCount(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	chunkCount, err := s.store.CollectionChunkCount(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	dto.DocumentCount = &docCount
	dto.ChunkCount = &chunkCount
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteCollection(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
