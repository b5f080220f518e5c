// Package extract builds knowledge-base records (entities, relationships, themes,
// timeline events) from cleaned document text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ppiankov/chronicle/internal/ingest"
	"github.com/ppiankov/chronicle/internal/kb"
	"github.com/ppiankov/chronicle/internal/model"
)

// Extractor accumulates records across documents and flushes them as one artifact set
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text, label string) error
	Save(ctx context.Context, sink kb.Sink) error
}

// LabeledFile is a cleaned document and the label its records carry
type LabeledFile struct {
	Label string
	Path  string
}

// RunLabeled reads each file once and feeds it to every extractor. A missing file is
// recorded as skipped; an extractor error fails that file and the batch moves on.
func RunLabeled(ctx context.Context, files []LabeledFile, logger *slog.Logger, extractors ...Extractor) *model.BatchReport {
	if logger == nil {
		logger = slog.Default()
	}
	report := model.NewBatchReport("knowledge")

	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Source file missing, skipping", "label", f.Label, "path", f.Path)
			report.Add(model.ItemResult{Label: f.Label, Path: f.Path, Status: model.StatusSkipped, Error: "file not found"})
			continue
		}
		if err != nil {
			report.Add(model.ItemResult{Label: f.Label, Path: f.Path, Status: model.StatusFailed, Error: err.Error()})
			continue
		}

		text := string(data)
		var failures []string
		for _, ex := range extractors {
			if err := ex.Extract(ctx, text, f.Label); err != nil {
				logger.Error("Extraction failed", "extractor", ex.Name(), "label", f.Label, "error", err)
				failures = append(failures, fmt.Sprintf("%s: %v", ex.Name(), err))
			}
		}

		item := model.ItemResult{Label: f.Label, Path: f.Path, Status: model.StatusSuccess, WordCount: ingest.WordCount(text)}
		if len(failures) > 0 {
			item.Status = model.StatusFailed
			item.Error = strings.Join(failures, "; ")
		}
		report.Add(item)
	}

	return report.Finish()
}

// SaveAll flushes every extractor to sink
func SaveAll(ctx context.Context, sink kb.Sink, extractors ...Extractor) error {
	var errs []error
	for _, ex := range extractors {
		if err := ex.Save(ctx, sink); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ex.Name(), err))
		}
	}
	return errors.Join(errs...)
}
