package extract

import (
	"context"
	"sort"
	"strings"

	"github.com/ppiankov/chronicle/internal/kb"
	"github.com/ppiankov/chronicle/internal/model"
	"github.com/ppiankov/chronicle/internal/nlp"
)

// EntityExtractor groups named-entity mentions by label
type EntityExtractor struct {
	analyzer nlp.Analyzer
	entities map[string][]model.EntityRecord
}

// NewEntityExtractor creates an extractor backed by analyzer
func NewEntityExtractor(analyzer nlp.Analyzer) *EntityExtractor {
	return &EntityExtractor{analyzer: analyzer, entities: make(map[string][]model.EntityRecord)}
}

// Name returns the extractor name
func (e *EntityExtractor) Name() string {
	return "entities"
}

// Extract records every entity span with its enclosing sentence
func (e *EntityExtractor) Extract(ctx context.Context, text, label string) error {
	doc, err := e.analyzer.Analyze(ctx, text)
	if err != nil {
		return err
	}
	for _, span := range doc.Entities {
		e.entities[span.Label] = append(e.entities[span.Label], model.EntityRecord{
			Text:    span.Text,
			Source:  label,
			Context: doc.SentenceText(span.Sentence),
		})
	}
	return nil
}

// Entities returns the accumulated records by label
func (e *EntityExtractor) Entities() map[string][]model.EntityRecord {
	return e.entities
}

// Save replaces the entities category with entities/<label>.json for each label seen.
// Labels from earlier runs that are absent now are removed.
func (e *EntityExtractor) Save(ctx context.Context, sink kb.Sink) error {
	if err := kb.Clear(ctx, sink, kb.CategoryEntities); err != nil {
		return err
	}

	labels := make([]string, 0, len(e.entities))
	for l := range e.entities {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	for _, l := range labels {
		err := sink.Put(ctx, kb.Artifact{
			Category: kb.CategoryEntities,
			Name:     strings.ToLower(l) + ".json",
			Payload:  e.entities[l],
		})
		if err != nil {
			return err
		}
	}
	return nil
}
