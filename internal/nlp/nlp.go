// Package nlp is the language analysis capability used by the knowledge extractors:
// sentence boundaries, named entities and dependency roles.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/chronicle/internal/model"
)

// ErrUnavailable means the configured analyzer cannot be reached
var ErrUnavailable = errors.New("nlp analyzer unavailable")

// Dependency roles the relationship extractor consumes
const (
	DepSubject    = "nsubj"
	DepObject     = "dobj"
	DepPrepObject = "pobj"
	DepRoot       = "ROOT"
)

const (
	noHead          = -1
	defaultProvider = "heuristic"
)

// Token is one analyzed word. Head indexes Doc.Tokens; the sentence root has Head -1.
type Token struct {
	Text     string
	Dep      string
	Head     int
	Sentence int
}

// Sentence is a sentence boundary with its text
type Sentence struct {
	Text  string
	Start int // first token index
	End   int // one past the last token index
}

// Span is a labeled named-entity mention
type Span struct {
	Text     string
	Label    string
	Sentence int
}

// Doc is the analysis of one text
type Doc struct {
	Sentences []Sentence
	Entities  []Span
	Tokens    []Token
}

// HeadText returns the surface form of the token's syntactic head, or "" for a root
func (d *Doc) HeadText(i int) string {
	h := d.Tokens[i].Head
	if h < 0 || h >= len(d.Tokens) {
		return ""
	}
	return d.Tokens[h].Text
}

// SentenceText returns the text of sentence i, or "" when out of range
func (d *Doc) SentenceText(i int) string {
	if i < 0 || i >= len(d.Sentences) {
		return ""
	}
	return d.Sentences[i].Text
}

// Analyzer annotates text
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, text string) (*Doc, error)
}

// New builds the configured analyzer. A remote analyzer is probed once; failure is
// reported as ErrUnavailable.
func New(ctx context.Context, cfg model.NLPConfig) (Analyzer, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = defaultProvider
	}

	switch provider {
	case "heuristic":
		return NewHeuristicAnalyzer(), nil

	case "corenlp":
		client := NewCoreNLPClient(cfg.BaseURL, time.Duration(cfg.Timeout)*time.Second)
		if err := client.Check(ctx); err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown NLP provider: %s (supported: heuristic, corenlp)", cfg.Provider)
	}
}
