// Package ingest turns source documents into raw text, choosing between the embedded text
// layer and OCR per document.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/chronicle/internal/cache"
	"github.com/ppiankov/chronicle/internal/clean"
	"github.com/ppiankov/chronicle/internal/model"
)

// ErrUnsupportedFormat is returned for files the selector cannot read
var ErrUnsupportedFormat = errors.New("unsupported format")

// Format is a source document format, detected from the file extension
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// Detect returns the document format of path
func Detect(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, nil
	case ".txt", ".text", ".md":
		return FormatText, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// PageReader is the OCR fallback contract: path in, recognized text out
type PageReader interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Extraction is the raw text of one document
type Extraction struct {
	Document  model.Document
	Text      string
	WordCount int
}

// Selector picks an extraction strategy per document
type Selector struct {
	textLayer TextLayer
	ocr       PageReader
	cache     cache.Cache
	minWords  int
	rules     clean.Rules
	logger    *slog.Logger
}

// Option configures a Selector
type Option func(*Selector)

// WithTextLayer replaces the PDF text layer reader
func WithTextLayer(t TextLayer) Option {
	return func(s *Selector) { s.textLayer = t }
}

// WithOCR replaces the OCR fallback
func WithOCR(r PageReader) Option {
	return func(s *Selector) { s.ocr = r }
}

// WithCache caches OCR output by document content; nil disables caching
func WithCache(c cache.Cache) Option {
	return func(s *Selector) { s.cache = c }
}

// WithRules replaces the artifact correction rules
func WithRules(r clean.Rules) Option {
	return func(s *Selector) { s.rules = r }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

// NewSelector creates a selector backed by pdfcpu, pdftoppm and tesseract unless
// overridden by options
func NewSelector(cfg model.IngestConfig, opts ...Option) *Selector {
	minWords := cfg.MinWords
	if minWords <= 0 {
		minWords = 100
	}

	s := &Selector{
		textLayer: NewPDFTextLayer(),
		ocr: &OCR{
			Rasterizer: &PDFToPPM{Binary: cfg.RasterizerPath},
			Recognizer: &Tesseract{Binary: cfg.OCRPath, Languages: cfg.Languages},
			DPI:        cfg.DPI,
			Threshold:  cfg.Threshold,
		},
		minWords: minWords,
		rules:    DefaultArtifactRules(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract reads one document and applies artifact correction
func (s *Selector) Extract(ctx context.Context, path string) (*Extraction, error) {
	format, err := Detect(path)
	if err != nil {
		return nil, err
	}

	doc := model.Document{
		Label: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:  path,
	}
	logCtx := s.logger.With("document", doc.Label, "format", format)

	var raw string
	switch format {
	case FormatText:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read text: %w", err)
		}
		raw = string(data)
		doc.Method = model.MethodPlainText
	case FormatHTML:
		raw, err = ExtractHTMLFile(path)
		if err != nil {
			return nil, fmt.Errorf("read html: %w", err)
		}
		doc.Method = model.MethodHTML
	case FormatPDF:
		raw, doc.Method, err = s.extractPDF(ctx, path, logCtx)
		if err != nil {
			return nil, err
		}
	}

	text := CorrectArtifacts(raw, s.rules)
	return &Extraction{Document: doc, Text: text, WordCount: WordCount(text)}, nil
}

func (s *Selector) extractPDF(ctx context.Context, path string, logCtx *slog.Logger) (string, model.ExtractionMethod, error) {
	text, layerErr := s.textLayer.ExtractText(ctx, path)
	if layerErr != nil {
		logCtx.Warn("Text layer unreadable, falling back to OCR", "error", layerErr)
	} else if n := WordCount(text); n >= s.minWords {
		return text, model.MethodTextLayer, nil
	} else {
		logCtx.Info("Detected scanned PDF, switching to OCR", "words", n, "min_words", s.minWords)
	}

	text, err := s.recognize(ctx, path, logCtx)
	if err != nil {
		if layerErr != nil {
			return "", "", fmt.Errorf("text layer: %v; ocr: %w", layerErr, err)
		}
		return "", "", fmt.Errorf("ocr: %w", err)
	}
	return text, model.MethodOCR, nil
}

func (s *Selector) recognize(ctx context.Context, path string, logCtx *slog.Logger) (string, error) {
	var key string
	if s.cache != nil {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read pdf: %w", err)
		}
		key = cache.ContentKey("ocr", content)
		if cached, ok := s.cache.Get(key); ok {
			logCtx.Debug("OCR cache hit")
			return string(cached), nil
		}
	}

	text, err := s.ocr.Extract(ctx, path)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.Set(key, []byte(text), 0); err != nil {
			logCtx.Warn("Failed to cache OCR output", "error", err)
		}
	}
	return text, nil
}

// ExtractAll extracts every supported document in inDir, in lexical order, and writes
// <outDir>/<label>.txt for each success. A failing document is recorded and the batch
// moves on.
func (s *Selector) ExtractAll(ctx context.Context, inDir, outDir string) (*model.BatchReport, error) {
	report := model.NewBatchReport("extract")

	entries, err := os.ReadDir(inDir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := Detect(e.Name()); err != nil {
			s.logger.Debug("Skipping unsupported file", "file", e.Name())
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(inDir, name)
		label := strings.TrimSuffix(name, filepath.Ext(name))
		s.logger.Info("Processing document", "file", name)

		ext, err := s.Extract(ctx, path)
		if err != nil {
			s.logger.Error("Extraction failed", "file", name, "error", err)
			report.Add(model.ItemResult{Label: label, Path: path, Status: model.StatusFailed, Error: err.Error()})
			continue
		}

		outPath := filepath.Join(outDir, label+".txt")
		if err := os.WriteFile(outPath, []byte(ext.Text), 0644); err != nil {
			report.Add(model.ItemResult{Label: label, Path: path, Status: model.StatusFailed, Error: fmt.Sprintf("write output: %v", err)})
			continue
		}

		report.Add(model.ItemResult{
			Label:      label,
			Path:       path,
			Status:     model.StatusSuccess,
			Method:     ext.Document.Method,
			OutputPath: outPath,
			WordCount:  ext.WordCount,
		})
	}

	return report.Finish(), nil
}
