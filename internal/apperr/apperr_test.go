package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage("insert document", cause)

	assert.Equal(t, "insert document: connection refused", err.Error())
}

func TestError_MessageOmitsCauseWhenNil(t *testing.T) {
	err := NotFound(CodeDocumentNotFound, "document not found")

	assert.Equal(t, "document not found", err.Error())
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Embedding("embed call failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestAs_ExtractsTypedErrorThroughWrapping(t *testing.T) {
	base := Validation("bad input", nil)
	wrapped := fmt.Errorf("request failed: %w", base)

	got, ok := As(wrapped)

	require.True(t, ok)
	assert.Equal(t, CodeInvalidInput, got.Code)
}

func TestAs_FalseForUntypedError(t *testing.T) {
	_, ok := As(errors.New("plain error"))
	assert.False(t, ok)
}

func TestIsConflict_TrueForConflictError(t *testing.T) {
	err := Conflict("duplicate chunk_index")
	assert.True(t, IsConflict(err))
}

func TestIsConflict_FalseForOtherErrors(t *testing.T) {
	err := Storage("insert failed", errors.New("io error"))
	assert.False(t, IsConflict(err))
}

func TestIsCancelled_TrueForCancellationSentinel(t *testing.T) {
	wrapped := fmt.Errorf("ingest aborted: %w", ErrCancelled)
	assert.True(t, IsCancelled(wrapped))
}

func TestExtraction_TagsFailureStage(t *testing.T) {
	err := Extraction("pdf", errors.New("corrupt stream"))

	assert.Equal(t, CodeProcessingError, err.Code)
	assert.Contains(t, err.Message, "pdf")
}
