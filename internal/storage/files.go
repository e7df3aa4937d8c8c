package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fabfab/ragcore/internal/apperr"
)

// FileGateway manages the per-collection directory tree rooted at a single
// STORAGE_PATH (spec §6 "File storage"). It owns no database state.
type FileGateway struct {
	root string
}

var (
	idPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)
)

// NewFileGateway creates the root directory if needed and returns a gateway.
func NewFileGateway(root string) (*FileGateway, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileGateway{root: root}, nil
}

func (g *FileGateway) path(collectionID, documentID, ext string) (string, error) {
	if !idPattern.MatchString(collectionID) || !idPattern.MatchString(documentID) {
		return "", apperr.Validation("document or collection id contains invalid characters", nil)
	}
	if ext != "" && !extPattern.MatchString(ext) {
		return "", apperr.Validation("file extension contains invalid characters", nil)
	}
	return filepath.Join(g.root, collectionID, documentID+ext), nil
}

// Save writes data under {collection}/{document_id}{ext} and returns the
// path to persist on the document row.
func (g *FileGateway) Save(collectionID, documentID, ext string, data []byte) (string, error) {
	path, err := g.path(collectionID, documentID, ext)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create collection directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write document file: %w", err)
	}
	return path, nil
}

// Read loads the file contents at path.
func (g *FileGateway) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document file: %w", err)
	}
	return data, nil
}

// Remove deletes the file at path; a missing file is not an error.
func (g *FileGateway) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove document file: %w", err)
	}
	return nil
}
