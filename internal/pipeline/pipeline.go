// Package pipeline wires the stages together: extract, preprocess, knowledge and qa. Every
// stage is sequential and reports per-item outcomes instead of aborting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/chronicle/internal/cache"
	"github.com/ppiankov/chronicle/internal/clean"
	"github.com/ppiankov/chronicle/internal/extract"
	"github.com/ppiankov/chronicle/internal/ingest"
	"github.com/ppiankov/chronicle/internal/kb"
	"github.com/ppiankov/chronicle/internal/llm"
	"github.com/ppiankov/chronicle/internal/model"
	"github.com/ppiankov/chronicle/internal/nlp"
	"github.com/ppiankov/chronicle/internal/qa"
	"github.com/ppiankov/chronicle/internal/segment"
)

// ErrNoGenerator is returned by stages that need a generation provider when none is configured
var ErrNoGenerator = errors.New("no LLM provider configured")

const cleanedSuffix = "_cleaned"

// Pipeline orchestrates the document to knowledge stages
type Pipeline struct {
	selector  *ingest.Selector
	cleaner   *clean.Cleaner
	segmenter *segment.Segmenter
	analyzer  nlp.Analyzer  // Built on first knowledge run unless injected
	generator llm.Generator // Built on first qa run unless injected
	config    *model.Config
	logger    *slog.Logger
	runID     string
}

// Option customizes a pipeline
type Option func(*Pipeline)

// WithAnalyzer injects the NLP capability
func WithAnalyzer(a nlp.Analyzer) Option {
	return func(p *Pipeline) { p.analyzer = a }
}

// WithGenerator injects the generation capability
func WithGenerator(g llm.Generator) Option {
	return func(p *Pipeline) { p.generator = g }
}

// WithSelector replaces the extraction selector
func WithSelector(s *ingest.Selector) Option {
	return func(p *Pipeline) { p.selector = s }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline. Only the cleaner rule file is loaded eagerly; capabilities are
// initialized by the stage that needs them.
func New(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	cleaner, err := clean.NewFromFile(cfg.Clean.PatternsFile)
	if err != nil {
		return nil, fmt.Errorf("load cleaner rules: %w", err)
	}

	p := &Pipeline{
		cleaner:   cleaner,
		segmenter: segment.New(cfg.Segment.MaxChars),
		config:    cfg,
		logger:    slog.Default(),
		runID:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.selector == nil {
		p.selector = ingest.NewSelector(cfg.Ingest,
			ingest.WithCache(cache.FromConfig(cfg.Cache)),
			ingest.WithLogger(p.logger),
		)
	}
	return p, nil
}

// RunID identifies every report produced by this pipeline
func (p *Pipeline) RunID() string {
	return p.runID
}

func (p *Pipeline) stamp(r *model.BatchReport) *model.BatchReport {
	if r != nil {
		r.RunID = p.runID
	}
	return r
}

// Extract turns every supported document in rawDir into <outDir>/<label>.txt
func (p *Pipeline) Extract(ctx context.Context, rawDir, outDir string) (*model.BatchReport, error) {
	report, err := p.selector.ExtractAll(ctx, rawDir, outDir)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return p.stamp(report), nil
}

// Preprocess cleans every <book>.txt in extractedDir, writing <book>_cleaned.txt and the
// segments under <book>_cleaned/
func (p *Pipeline) Preprocess(ctx context.Context, extractedDir, cleanedDir string) (*model.BatchReport, error) {
	report := model.NewBatchReport("preprocess")

	files, err := filepath.Glob(filepath.Join(extractedDir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	if _, err := os.Stat(extractedDir); err != nil {
		return nil, fmt.Errorf("preprocess: read input dir: %w", err)
	}
	if err := os.MkdirAll(cleanedDir, 0755); err != nil {
		return nil, fmt.Errorf("preprocess: create output dir: %w", err)
	}
	sort.Strings(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return p.stamp(report.Finish()), err
		}
		book := strings.TrimSuffix(filepath.Base(path), ".txt")
		p.logger.Info("Preprocessing document", "book", book)

		item, err := p.preprocessBook(path, book, cleanedDir)
		if err != nil {
			p.logger.Error("Preprocessing failed", "book", book, "error", err)
			report.Add(model.ItemResult{Label: book, Path: path, Status: model.StatusFailed, Error: err.Error()})
			continue
		}
		report.Add(item)
	}

	return p.stamp(report.Finish()), nil
}

func (p *Pipeline) preprocessBook(path, book, cleanedDir string) (model.ItemResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ItemResult{}, fmt.Errorf("read: %w", err)
	}

	cleaned := p.cleaner.Clean(string(data))
	combined := filepath.Join(cleanedDir, book+cleanedSuffix+".txt")
	if err := os.WriteFile(combined, []byte(cleaned), 0644); err != nil {
		return model.ItemResult{}, fmt.Errorf("write cleaned text: %w", err)
	}

	segments := p.segmenter.Split(cleaned)
	if err := segment.WriteSections(filepath.Join(cleanedDir, book+cleanedSuffix), segments); err != nil {
		return model.ItemResult{}, err
	}

	return model.ItemResult{
		Label:      book,
		Path:       path,
		Status:     model.StatusSuccess,
		OutputPath: combined,
		WordCount:  ingest.WordCount(cleaned),
		Records:    len(segments),
	}, nil
}

// CleanedSources lists <book>_cleaned.txt files in cleanedDir labeled by book name
func CleanedSources(cleanedDir string) ([]extract.LabeledFile, error) {
	paths, err := filepath.Glob(filepath.Join(cleanedDir, "*"+cleanedSuffix+".txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	files := make([]extract.LabeledFile, len(paths))
	for i, path := range paths {
		files[i] = extract.LabeledFile{
			Label: strings.TrimSuffix(filepath.Base(path), cleanedSuffix+".txt"),
			Path:  path,
		}
	}
	return files, nil
}

// Analyzer returns the NLP capability, initializing it on first use
func (p *Pipeline) Analyzer(ctx context.Context) (nlp.Analyzer, error) {
	if p.analyzer != nil {
		return p.analyzer, nil
	}
	a, err := nlp.New(ctx, p.config.NLP)
	if err != nil {
		return nil, err
	}
	p.analyzer = a
	return a, nil
}

// Generator returns the generation capability, initializing it on first use
func (p *Pipeline) Generator(ctx context.Context) (llm.Generator, error) {
	if p.generator != nil {
		return p.generator, nil
	}
	g, err := llm.NewGenerator(ctx, llm.ConfigFromModel(p.config.LLM))
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	if g == nil {
		return nil, ErrNoGenerator
	}
	p.generator = g
	return g, nil
}

// Knowledge runs the four extractors over files and saves their artifacts to sink
func (p *Pipeline) Knowledge(ctx context.Context, files []extract.LabeledFile, sink kb.Sink) (*model.BatchReport, error) {
	analyzer, err := p.Analyzer(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Extracting knowledge", "sources", len(files), "nlp", analyzer.Name())

	extractors := []extract.Extractor{
		extract.NewEntityExtractor(analyzer),
		extract.NewRelationshipExtractor(analyzer),
		extract.NewThemeExtractor(p.config.Knowledge.TopTerms),
		extract.NewTimelineExtractor(p.config.Knowledge.ContextWindow),
	}

	report := extract.RunLabeled(ctx, files, p.logger, extractors...)
	if err := extract.SaveAll(ctx, sink, extractors...); err != nil {
		return p.stamp(report), fmt.Errorf("save knowledge base: %w", err)
	}
	return p.stamp(report), nil
}

// QA generates question/answer pairs for every segment group in cleanedDir
func (p *Pipeline) QA(ctx context.Context, cleanedDir string, sink kb.Sink) (*model.BatchReport, error) {
	gen, err := p.Generator(ctx)
	if err != nil {
		return nil, err
	}
	report, err := qa.New(gen, p.config.QA, p.logger).ProcessAll(ctx, cleanedDir, sink)
	if err != nil {
		return p.stamp(report), fmt.Errorf("qa: %w", err)
	}
	return p.stamp(report), nil
}

// Run executes every stage in order over rawDir using the configured output locations.
// The qa stage is skipped with a warning when no generation provider is configured.
func (p *Pipeline) Run(ctx context.Context, rawDir string) ([]*model.BatchReport, error) {
	out := p.config.Output
	var reports []*model.BatchReport

	r, err := p.Extract(ctx, rawDir, out.ExtractedDir)
	if err != nil {
		return reports, err
	}
	reports = append(reports, r)

	if r, err = p.Preprocess(ctx, out.ExtractedDir, out.CleanedDir); err != nil {
		return reports, err
	}
	reports = append(reports, r)

	files, err := CleanedSources(out.CleanedDir)
	if err != nil {
		return reports, err
	}
	if err := p.WithSink(ctx, out.KnowledgeBase, func(sink kb.Sink) error {
		r, err := p.Knowledge(ctx, files, sink)
		if r != nil {
			reports = append(reports, r)
		}
		return err
	}); err != nil {
		return reports, err
	}

	if _, err := p.Generator(ctx); errors.Is(err, ErrNoGenerator) {
		p.logger.Warn("Skipping QA generation", "reason", err)
		return reports, nil
	} else if err != nil {
		return reports, err
	}

	err = p.WithSink(ctx, out.QADir, func(sink kb.Sink) error {
		r, err := p.QA(ctx, out.CleanedDir, sink)
		if r != nil {
			reports = append(reports, r)
		}
		return err
	})
	return reports, err
}

// WithSink opens target, runs fn and closes the sink, keeping the first error
func (p *Pipeline) WithSink(ctx context.Context, target string, fn func(kb.Sink) error) (err error) {
	sink, err := kb.Open(ctx, target)
	if err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	defer func() {
		if closeErr := sink.Close(ctx); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", target, closeErr)
		}
	}()
	return fn(sink)
}
