package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextProducesOneChunk(t *testing.T) {
	// Given: text well under the max chunk size
	text := "A short paragraph that fits in a single chunk."

	// When: splitting with default config
	chunks := Split(text, nil, Config{})

	// Then: exactly one chunk is produced
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestSplit_RespectsParagraphBoundaries(t *testing.T) {
	// Given: several small paragraphs that together exceed MaxSize
	paragraphs := make([]string, 5)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat("word ", 20)
	}
	text := strings.Join(paragraphs, "\n\n")

	// When: splitting with a small max size
	chunks := Split(text, nil, Config{MaxSize: 120, Overlap: 20})

	// Then: more than one chunk results and each stays near the bound
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 160, "chunk should not grow wildly past MaxSize plus overlap")
	}
}

func TestSplit_OversizedParagraphIsWindowed(t *testing.T) {
	// Given: a single paragraph longer than MaxSize
	text := strings.Repeat("x", 500)

	// When: splitting with a small max size and overlap
	chunks := Split(text, nil, Config{MaxSize: 100, Overlap: 20})

	// Then: the paragraph is windowed into multiple overlapping chunks
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 100)
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestSplit_CopiesRecognizedMetadataKeys(t *testing.T) {
	// Given: document metadata with recognized and unrecognized keys
	docMeta := map[string]any{
		"source_quality": "official",
		"framework":      "react",
		"unrelated_key":  "should not leak",
	}

	// When: splitting any text
	chunks := Split("some body text", docMeta, Config{})

	// Then: only recognized keys are copied onto the chunk
	require.Len(t, chunks, 1)
	assert.Equal(t, "official", chunks[0].Metadata["source_quality"])
	assert.Equal(t, "react", chunks[0].Metadata["framework"])
	assert.NotContains(t, chunks[0].Metadata, "unrelated_key")
}

func TestSplit_DetectsHeadingFromShortUppercaseFirstLine(t *testing.T) {
	// Given: a paragraph starting with a short, capitalized line
	text := "Getting Started\nThis section explains setup."

	// When: splitting
	chunks := Split(text, nil, Config{})

	// Then: the heading metadata key is populated
	require.Len(t, chunks, 1)
	assert.Equal(t, "Getting Started", chunks[0].Metadata["heading"])
}

func TestSplit_EmptyTextProducesNoChunks(t *testing.T) {
	chunks := Split("   \n\n  ", nil, Config{})
	assert.Empty(t, chunks)
}

func TestTokenCount_EstimatesFourCharsPerToken(t *testing.T) {
	assert.Equal(t, 0, TokenCount(""))
	assert.Equal(t, 1, TokenCount("abcd"))
	assert.Equal(t, 3, TokenCount(strings.Repeat("a", 9)))
}
