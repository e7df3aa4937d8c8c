// Package apperr defines the abstract error kinds used across the backend
// and maps them to the stable surface codes returned over HTTP.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable identifier surfaced to HTTP clients.
type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeCollectionNotFound Code = "COLLECTION_NOT_FOUND"
	CodeDocumentNotFound   Code = "DOCUMENT_NOT_FOUND"
	CodeFileTooLarge       Code = "FILE_TOO_LARGE"
	CodeUnsupportedType    Code = "UNSUPPORTED_TYPE"
	CodeProcessingError    Code = "PROCESSING_ERROR"
	CodeEmbeddingError     Code = "EMBEDDING_ERROR"
	CodeDatabaseError      Code = "DATABASE_ERROR"
)

// Error is the common shape behind every kind below: a surface code, a
// human-readable message, and the wrapped cause (if any).
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

// Validation reports that caller-supplied inputs violate a documented
// constraint. Never retried.
func Validation(msg string, cause error) *Error { return newErr(CodeInvalidInput, msg, cause) }

// NotFound reports that the requested entity does not exist. code selects
// which surface code to attach (collection or document not found).
func NotFound(code Code, msg string) *Error { return newErr(code, msg, nil) }

// Storage reports a database connectivity or constraint failure.
// ConflictError is the special case of a uniqueness violation.
func Storage(msg string, cause error) *Error { return newErr(CodeDatabaseError, msg, cause) }

// ErrConflict marks a constraint violation (e.g. duplicate chunk_index) that
// the caller may want to treat differently from a generic storage failure.
var ErrConflict = errors.New("conflict")

// Conflict wraps ErrConflict with context.
func Conflict(msg string) *Error { return newErr(CodeDatabaseError, msg, ErrConflict) }

// Extraction reports a pipeline-local text-extraction failure, tagged with
// the stage it failed in.
func Extraction(stage string, cause error) *Error {
	return newErr(CodeProcessingError, fmt.Sprintf("extraction failed at stage %q", stage), cause)
}

// Chunking reports a pipeline-local chunking failure.
func Chunking(msg string, cause error) *Error { return newErr(CodeProcessingError, msg, cause) }

// Embedding reports an external embedding-provider failure that survived
// fallback.
func Embedding(msg string, cause error) *Error { return newErr(CodeEmbeddingError, msg, cause) }

// Rerank reports an external reranker failure that survived fallback.
func Rerank(msg string, cause error) *Error { return newErr(CodeProcessingError, msg, cause) }

// LLM reports an external LLM-completion failure.
func LLM(msg string, cause error) *Error { return newErr(CodeProcessingError, msg, cause) }

// ErrCancelled marks an operation aborted by its caller's cancellation
// signal. It carries no surface code because it is never returned to HTTP
// callers directly; callers translate it into a rolled-back status instead.
var ErrCancelled = errors.New("operation cancelled")

// IsConflict reports whether err (or something it wraps) is a conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsCancelled reports whether err (or something it wraps) is a cancellation.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// As is a typed convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
