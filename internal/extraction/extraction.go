// Package extraction implements component C: turning raw document bytes
// into plain text plus any structural metadata the format preserves (page
// boundaries, mainly), dispatched by declared MIME type.
package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"github.com/fabfab/ragcore/internal/apperr"
)

// Result is what Extract returns: the document's text plus any metadata the
// format contributed (e.g. inferred page breaks via `[Page N]` markers,
// which the Chunker (component D) looks for).
type Result struct {
	Text     string
	Metadata map[string]any
}

// Extract dispatches to a format-specific extractor by MIME type.
func Extract(data []byte, mime string) (Result, error) {
	switch {
	case mime == "application/pdf":
		return extractPDF(data)
	case mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return extractDOCX(data)
	case mime == "text/markdown" || strings.HasSuffix(mime, "+markdown"):
		return extractPlain(data)
	case strings.HasPrefix(mime, "text/"):
		return extractPlain(data)
	default:
		return Result{}, apperr.Validation(fmt.Sprintf("unsupported content type %q", mime), nil)
	}
}

func extractPlain(data []byte) (Result, error) {
	return Result{Text: string(data), Metadata: map[string]any{}}, nil
}

func extractPDF(data []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, apperr.Extraction("pdf", err)
	}

	var sb strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Result{}, apperr.Extraction("pdf", fmt.Errorf("page %d: %w", i, err))
		}
		fmt.Fprintf(&sb, "[Page %d]\n%s\n\n", i, text)
	}

	return Result{
		Text:     sb.String(),
		Metadata: map[string]any{"page_count": pages},
	}, nil
}

func extractDOCX(data []byte) (Result, error) {
	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, apperr.Extraction("docx", err)
	}
	defer reader.Close()

	text := reader.Editable().GetContent()
	return Result{Text: text, Metadata: map[string]any{}}, nil
}
