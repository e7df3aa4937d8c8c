// Package chunking implements component D: splitting extracted text into
// overlapping, roughly fixed-size windows along paragraph boundaries.
package chunking

import (
	"regexp"
	"strings"
)

// Config tunes the chunker. Zero values are replaced with the spec defaults.
type Config struct {
	MaxSize int // default 800 chars
	Overlap int // default 150 chars
}

func (c Config) normalized() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = 800
	}
	if c.Overlap <= 0 {
		c.Overlap = 150
	}
	return c
}

// Chunk is one ordered output unit.
type Chunk struct {
	Text       string
	ChunkIndex int
	Metadata   map[string]any
}

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	pageMarker     = regexp.MustCompile(`^\[Page (\d+)\]`)
)

// Split implements the algorithm in spec §4.D. docMetadata's recognized
// top-level keys are copied onto every chunk; it is never mutated.
func Split(text string, docMetadata map[string]any, cfg Config) []Chunk {
	cfg = cfg.normalized()
	paragraphs := splitParagraphs(text)

	var chunks []Chunk
	var current strings.Builder
	var currentFirstParagraph string

	flush := func() {
		if current.Len() == 0 {
			return
		}
		body := current.String()
		chunks = append(chunks, buildChunk(body, currentFirstParagraph, len(chunks), docMetadata))
		current.Reset()
		currentFirstParagraph = ""
	}

	for _, p := range paragraphs {
		if p == "" {
			continue
		}

		if len(p) > cfg.MaxSize {
			flush()
			for _, window := range windowParagraph(p, cfg.MaxSize, cfg.Overlap) {
				chunks = append(chunks, buildChunk(window, window, len(chunks), docMetadata))
			}
			continue
		}

		candidateLen := current.Len()
		if candidateLen > 0 {
			candidateLen += 2 + len(p)
		} else {
			candidateLen = len(p)
		}

		if candidateLen > cfg.MaxSize && current.Len() > 0 {
			prevTail := tail(current.String(), cfg.Overlap)
			flush()
			current.WriteString(prevTail)
			if prevTail != "" {
				current.WriteString("\n\n")
			}
			currentFirstParagraph = p
		}
		if current.Len() > 0 && !strings.HasSuffix(current.String(), "\n\n") {
			current.WriteString("\n\n")
		}
		if currentFirstParagraph == "" {
			currentFirstParagraph = p
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}

func splitParagraphs(text string) []string {
	raw := paragraphSplit.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// windowParagraph splits one oversized paragraph into consecutive windows of
// maxSize characters with overlap characters of backward overlap.
func windowParagraph(p string, maxSize, overlap int) []string {
	var windows []string
	runes := []rune(p)
	start := 0
	for start < len(runes) {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return windows
}

// tail returns the last n characters of s (rune-safe).
func tail(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[len(runes)-n:])
}

func buildChunk(text, firstParagraph string, index int, docMetadata map[string]any) Chunk {
	meta := map[string]any{}
	for _, key := range []string{"source_quality", "last_verified", "published_date", "framework", "framework_version", "language", "doc_type"} {
		if v, ok := docMetadata[key]; ok {
			meta[key] = v
		}
	}

	if m := pageMarker.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		meta["page"] = m[1]
	}

	firstLine := firstLineOf(firstParagraph)
	if len(firstLine) <= 100 && firstLine != "" && isUpperStart(firstLine) {
		meta["heading"] = firstLine
	}

	return Chunk{
		Text:       text,
		ChunkIndex: index,
		Metadata:   meta,
	}
}

func firstLineOf(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

func isUpperStart(s string) bool {
	if s == "" {
		return false
	}
	r := []rune(s)[0]
	return r >= 'A' && r <= 'Z'
}

// TokenCount estimates tokens as ceil(length/4), per spec §4.D.
func TokenCount(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}
