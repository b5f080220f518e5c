package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// TextLayer reads the embedded text of a PDF. An empty or near-empty result signals a
// scanned document.
type TextLayer interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// PDFTextLayer validates a PDF with pdfcpu and decodes its pages with ledongthuc/pdf,
// which maps glyph codes through the fonts' encodings and ToUnicode CMaps
type PDFTextLayer struct{}

// NewPDFTextLayer creates a text layer reader
func NewPDFTextLayer() *PDFTextLayer {
	return &PDFTextLayer{}
}

// ExtractText returns the text of every readable page joined with blank lines. Pages
// drawn with fonts whose glyphs cannot be mapped to Unicode contribute nothing.
func (t *PDFTextLayer) ExtractText(ctx context.Context, path string) (string, error) {
	pages, err := api.PageCountFile(path)
	if err != nil {
		return "", fmt.Errorf("read page count: %w", err)
	}
	if pages == 0 {
		return "", nil
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadText(ctx, r)
}

// ReadText decodes the pages of an opened PDF in order
func ReadText(ctx context.Context, r *pdf.Reader) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("decode pdf: %v", rec)
		}
	}()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() || !unicodeMapped(page) {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			b.WriteString(content)
			b.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(b.String()), nil
}

// unicodeMapped reports whether every composite font on the page carries a ToUnicode map.
// Without one, two-byte glyph IDs decode to unrelated Latin characters.
func unicodeMapped(page pdf.Page) bool {
	for _, name := range page.Fonts() {
		font := page.Font(name).V
		composite := font.Key("Subtype").Name() == "Type0" || font.Key("Encoding").Name() == "Identity-H"
		if composite && font.Key("ToUnicode").Kind() != pdf.Stream {
			return false
		}
	}
	return true
}
