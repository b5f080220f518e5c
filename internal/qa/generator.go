// Package qa generates question/answer pairs from text segments and parses the
// unreliable generated output.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/chronicle/internal/kb"
	"github.com/ppiankov/chronicle/internal/llm"
	"github.com/ppiankov/chronicle/internal/model"
	"github.com/ppiankov/chronicle/internal/segment"
)

const (
	questionMarker = "Question:"
	answerMarker   = "Answer:"
	errorPreview   = 100
)

// BuildPrompt asks for exactly one Question/Answer line pair about the first prefix
// characters of text
func BuildPrompt(text string, prefix int) string {
	return "Create one question and answer pair based on this text.\n" +
		"ALWAYS use exactly this format:\n" +
		"Question: [question here]\n" +
		"Answer: [answer here]\n\n" +
		"Text: " + model.Prefix(text, prefix)
}

// ParseResponse returns one pair for every non-blank "Question:" line immediately
// followed by a non-blank "Answer:" line. Anything else yields no pairs.
func ParseResponse(text, source string) []model.QAPair {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	pairs := []model.QAPair{}
	for i := 0; i+1 < len(lines); i++ {
		if !strings.HasPrefix(lines[i], questionMarker) || !strings.HasPrefix(lines[i+1], answerMarker) {
			continue
		}
		pairs = append(pairs, model.QAPair{
			Question: strings.TrimSpace(strings.TrimPrefix(lines[i], questionMarker)),
			Answer:   strings.TrimSpace(strings.TrimPrefix(lines[i+1], answerMarker)),
			Source:   source,
			Type:     model.QAPairTypeAutomated,
		})
	}
	return pairs
}

// Generator turns segments into QA pairs
type Generator struct {
	llm    llm.Generator
	cfg    model.QAConfig
	logger *slog.Logger
}

// New creates a generator
func New(g llm.Generator, cfg model.QAConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PrefixChars <= 0 {
		cfg.PrefixChars = 500
	}
	return &Generator{llm: g, cfg: cfg, logger: logger}
}

// FromSegment generates and parses one response. Generation failures are logged and
// yield no pairs.
func (g *Generator) FromSegment(ctx context.Context, text, source string) []model.QAPair {
	out, err := g.llm.Generate(ctx, BuildPrompt(text, g.cfg.PrefixChars), llm.GenerateParams{
		MaxTokens:   g.cfg.MaxLength,
		Sample:      true,
		Temperature: g.cfg.Temperature,
		TopK:        g.cfg.TopK,
	})
	if err != nil {
		g.logger.Warn("QA generation failed", "source", source, "error", model.Truncate(err.Error(), errorPreview))
		return nil
	}
	return ParseResponse(out, source)
}

// ProcessAll walks every <book>_cleaned directory under cleanedDir and writes
// <book>_cleaned_qa.json for each group that produced at least one pair. A group with no
// pairs leaves any earlier artifact untouched.
func (g *Generator) ProcessAll(ctx context.Context, cleanedDir string, sink kb.Sink) (*model.BatchReport, error) {
	report := model.NewBatchReport("qa")

	groups, err := filepath.Glob(filepath.Join(cleanedDir, "*_cleaned"))
	if err != nil {
		return nil, err
	}
	sort.Strings(groups)

	for _, dir := range groups {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		group := filepath.Base(dir)
		g.logger.Info("Generating QA pairs", "group", group)

		files, err := segment.SectionFiles(dir)
		if err != nil {
			report.Add(model.ItemResult{Label: group, Path: dir, Status: model.StatusFailed, Error: err.Error()})
			continue
		}

		pairs := []model.QAPair{}
		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return report.Finish(), err
			}
			data, err := os.ReadFile(f)
			if err != nil {
				g.logger.Warn("Failed to read segment", "file", filepath.Base(f), "error", model.Truncate(err.Error(), errorPreview))
				continue
			}
			text := string(data)
			if strings.TrimSpace(text) == "" {
				continue
			}
			pairs = append(pairs, g.FromSegment(ctx, text, group)...)
		}

		if len(pairs) == 0 {
			g.logger.Info("No QA pairs generated, nothing written", "group", group)
			report.Add(model.ItemResult{Label: group, Path: dir, Status: model.StatusSkipped, Error: "no pairs generated"})
			continue
		}

		name := group + "_qa.json"
		if err := sink.Put(ctx, kb.Artifact{Category: kb.CategoryQA, Name: name, Payload: pairs}); err != nil {
			report.Add(model.ItemResult{Label: group, Path: dir, Status: model.StatusFailed, Error: fmt.Sprintf("save: %v", err)})
			continue
		}
		g.logger.Info("Saved QA pairs", "group", group, "pairs", len(pairs))
		report.Add(model.ItemResult{Label: group, Path: dir, Status: model.StatusSuccess, Records: len(pairs), OutputPath: name})
	}

	return report.Finish(), nil
}
