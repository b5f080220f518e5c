package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Rasterizer renders the pages of a document as images
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, dpi int) ([]image.Image, error)
}

// Recognizer runs OCR over one page image
type Recognizer interface {
	Recognize(ctx context.Context, page image.Image) (string, error)
}

// OCR is the scanned-document fallback: rasterize, binarize, recognize
type OCR struct {
	Rasterizer Rasterizer
	Recognizer Recognizer
	DPI        int
	Threshold  uint8
}

// Extract returns the recognized text of every page joined with blank lines
func (o *OCR) Extract(ctx context.Context, path string) (string, error) {
	pages, err := o.Rasterizer.Rasterize(ctx, path, o.DPI)
	if err != nil {
		return "", fmt.Errorf("rasterize: %w", err)
	}

	var b strings.Builder
	for i, page := range pages {
		text, err := o.Recognizer.Recognize(ctx, Binarize(page, o.Threshold))
		if err != nil {
			return "", fmt.Errorf("recognize page %d: %w", i+1, err)
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	return strings.TrimSpace(b.String()), nil
}

// Binarize converts img to grayscale and maps every pixel below threshold to black and
// every other pixel to white
func Binarize(img image.Image, threshold uint8) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y < threshold {
				out.SetGray(x, y, color.Gray{Y: 0})
			} else {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// PDFToPPM rasterizes PDFs with the poppler pdftoppm binary
type PDFToPPM struct {
	Binary string
}

var rasterPage = regexp.MustCompile(`-(\d+)\.png$`)

// Rasterize renders every page of path at dpi and decodes the PNGs in page order
func (r *PDFToPPM) Rasterize(ctx context.Context, path string, dpi int) ([]image.Image, error) {
	tempDir, err := os.MkdirTemp("", "chronicle-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	prefix := filepath.Join(tempDir, "page")
	cmd := exec.CommandContext(ctx, r.binary(), "-r", strconv.Itoa(dpi), "-png", path, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", r.binary(), err, strings.TrimSpace(stderr.String()))
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})

	pages := make([]image.Image, 0, len(matches))
	for _, m := range matches {
		img, err := decodePNG(m)
		if err != nil {
			return nil, err
		}
		pages = append(pages, img)
	}
	return pages, nil
}

func (r *PDFToPPM) binary() string {
	if r.Binary == "" {
		return "pdftoppm"
	}
	return r.Binary
}

func pageNumber(path string) int {
	m := rasterPage.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode page image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Tesseract recognizes text with the tesseract CLI
type Tesseract struct {
	Binary    string
	Languages string // e.g. eng+swa
}

// Args returns the recognition options passed after the input and output arguments
func (t *Tesseract) Args() []string {
	langs := t.Languages
	if langs == "" {
		langs = "eng"
	}
	return []string{"--oem", "3", "--psm", "6", "-l", langs}
}

// Recognize writes page to a temporary PNG and reads tesseract's stdout
func (t *Tesseract) Recognize(ctx context.Context, page image.Image) (string, error) {
	f, err := os.CreateTemp("", "chronicle-page-*.png")
	if err != nil {
		return "", fmt.Errorf("create page file: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	if err := png.Encode(f, page); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode page: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close page file: %w", err)
	}

	binary := t.Binary
	if binary == "" {
		binary = "tesseract"
	}

	args := append([]string{f.Name(), "stdout"}, t.Args()...)
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", binary, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
