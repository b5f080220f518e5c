package extract

import (
	"context"

	"github.com/ppiankov/chronicle/internal/kb"
	"github.com/ppiankov/chronicle/internal/model"
	"github.com/ppiankov/chronicle/internal/nlp"
)

// ThemeExtractor keeps the top-K term signature of each document
type ThemeExtractor struct {
	scorer *nlp.TermScorer
	themes []model.ThemeRecord
}

// NewThemeExtractor creates an extractor keeping topK terms per document
func NewThemeExtractor(topK int) *ThemeExtractor {
	return &ThemeExtractor{scorer: nlp.NewTermScorer(topK), themes: []model.ThemeRecord{}}
}

// Name returns the extractor name
func (t *ThemeExtractor) Name() string {
	return "themes"
}

// Extract scores the document on its own, so weights reduce to term frequency
func (t *ThemeExtractor) Extract(ctx context.Context, text, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	terms := t.scorer.TopTerms([]string{text})
	if terms == nil {
		terms = []string{}
	}
	t.themes = append(t.themes, model.ThemeRecord{Source: label, KeyTerms: terms})
	return nil
}

// Themes returns the accumulated records
func (t *ThemeExtractor) Themes() []model.ThemeRecord {
	return t.themes
}

// Save writes themes/themes.json
func (t *ThemeExtractor) Save(ctx context.Context, sink kb.Sink) error {
	return sink.Put(ctx, kb.Artifact{Category: kb.CategoryThemes, Name: "themes.json", Payload: t.themes})
}
