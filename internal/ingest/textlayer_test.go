package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
)

// buildPDF assembles a single-page PDF whose page uses font object 5. Extra objects
// are numbered from 6.
func buildPDF(content, font string, extra ...string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		pdfStream(content),
		font,
	}
	objects = append(objects, extra...)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func pdfStream(data string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(data), data)
}

func readPDF(t *testing.T, data []byte) string {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Failed to open PDF: %v", err)
	}
	text, err := ReadText(context.Background(), r)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return text
}

// Identity-H glyph IDs for "The trial"
const cidContent = "BT /F1 12 Tf <0037004B0048000300570055004C0044004F> Tj ET"

const toUnicodeCMap = `begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
1 beginbfrange
<0003> <007F> <0020>
endbfrange
endcmap`

func TestReadText_SimpleFont(t *testing.T) {
	data := buildPDF(
		"BT /F1 12 Tf 72 712 Td (Dedan Kimathi) Tj ET",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)

	if got := readPDF(t, data); got != "Dedan Kimathi" {
		t.Errorf("Expected 'Dedan Kimathi', got %q", got)
	}
}

func TestReadText_CIDFontWithToUnicode(t *testing.T) {
	data := buildPDF(
		cidContent,
		"<< /Type /Font /Subtype /Type0 /BaseFont /ABCDEF+TimesNewRoman /Encoding /Identity-H /DescendantFonts [7 0 R] /ToUnicode 6 0 R >>",
		pdfStream(toUnicodeCMap),
		"<< /Type /Font /Subtype /CIDFontType2 /BaseFont /ABCDEF+TimesNewRoman /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> >>",
	)

	if got := readPDF(t, data); got != "The trial" {
		t.Errorf("Expected glyph IDs mapped through ToUnicode to 'The trial', got %q", got)
	}
}

func TestReadText_CIDFontWithoutToUnicode(t *testing.T) {
	data := buildPDF(
		cidContent,
		"<< /Type /Font /Subtype /Type0 /BaseFont /ABCDEF+TimesNewRoman /Encoding /Identity-H /DescendantFonts [6 0 R] >>",
		"<< /Type /Font /Subtype /CIDFontType2 /BaseFont /ABCDEF+TimesNewRoman /CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> >>",
	)

	if got := readPDF(t, data); got != "" {
		t.Errorf("Expected unmapped glyphs to yield no text, got %q", got)
	}
}

func TestPDFTextLayer_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewPDFTextLayer().ExtractText(context.Background(), path); err == nil {
		t.Error("Expected error for a file that is not a PDF")
	}
}

func TestBinarize(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	img.SetGray(0, 0, color.Gray{Y: 100})
	img.SetGray(1, 0, color.Gray{Y: 140})
	img.SetGray(2, 0, color.Gray{Y: 200})

	out := Binarize(img, 140)

	want := []uint8{0, 255, 255}
	for x, w := range want {
		if got := out.GrayAt(x, 0).Y; got != w {
			t.Errorf("Pixel %d: expected %d, got %d", x, w, got)
		}
	}
}

func TestBinarize_ColorInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	img.Set(1, 0, color.RGBA{R: 250, G: 250, B: 250, A: 255})

	out := Binarize(img, 140)

	if out.GrayAt(0, 0).Y != 0 {
		t.Error("Expected dark pixel to become black")
	}
	if out.GrayAt(1, 0).Y != 255 {
		t.Error("Expected light pixel to become white")
	}
}

func TestTesseractArgs(t *testing.T) {
	tess := &Tesseract{Languages: "eng+swa"}

	got := strings.Join(tess.Args(), " ")
	if got != "--oem 3 --psm 6 -l eng+swa" {
		t.Errorf("Unexpected args: %q", got)
	}

	if args := (&Tesseract{}).Args(); args[len(args)-1] != "eng" {
		t.Errorf("Expected eng default, got %q", args[len(args)-1])
	}
}

func TestPageNumber(t *testing.T) {
	if pageNumber("/tmp/x/page-10.png") != 10 {
		t.Error("Expected page 10")
	}
	if pageNumber("/tmp/x/page-02.png") != 2 {
		t.Error("Expected page 2")
	}
	if pageNumber("cover.png") != 0 {
		t.Error("Expected 0 for unnumbered file")
	}
}
