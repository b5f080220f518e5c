package extract

import (
	"context"

	"github.com/ppiankov/chronicle/internal/kb"
	"github.com/ppiankov/chronicle/internal/model"
	"github.com/ppiankov/chronicle/internal/nlp"
)

// RelationshipExtractor collects head/dependent edges for subject and object roles.
// Edges are raw surface strings and are never merged.
type RelationshipExtractor struct {
	analyzer nlp.Analyzer
	edges    []model.RelationshipEdge
}

// NewRelationshipExtractor creates an extractor backed by analyzer
func NewRelationshipExtractor(analyzer nlp.Analyzer) *RelationshipExtractor {
	return &RelationshipExtractor{analyzer: analyzer, edges: []model.RelationshipEdge{}}
}

// Name returns the extractor name
func (r *RelationshipExtractor) Name() string {
	return "relationships"
}

// Extract appends one edge per nsubj, dobj or pobj token
func (r *RelationshipExtractor) Extract(ctx context.Context, text, label string) error {
	doc, err := r.analyzer.Analyze(ctx, text)
	if err != nil {
		return err
	}
	for i, tok := range doc.Tokens {
		switch tok.Dep {
		case nlp.DepSubject, nlp.DepObject, nlp.DepPrepObject:
		default:
			continue
		}
		head := doc.HeadText(i)
		if head == "" {
			continue
		}
		r.edges = append(r.edges, model.RelationshipEdge{
			Source:   head,
			Target:   tok.Text,
			Relation: tok.Dep,
			Context:  label,
		})
	}
	return nil
}

// Edges returns the accumulated edges
func (r *RelationshipExtractor) Edges() []model.RelationshipEdge {
	return r.edges
}

// Save writes relationships/network.json
func (r *RelationshipExtractor) Save(ctx context.Context, sink kb.Sink) error {
	return sink.Put(ctx, kb.Artifact{Category: kb.CategoryRelationships, Name: "network.json", Payload: r.edges})
}
