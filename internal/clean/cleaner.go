// Package clean normalizes extracted text while keeping curated domain vocabulary intact.
package clean

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Marker wraps protected terms while the rule chain runs
const Marker = "@@"

// Patterns is the rule configuration of a Cleaner
type Patterns struct {
	OCRArtifacts   Rules
	PreserveTerms  []string
	SwahiliPhrases []string
}

// DefaultPatterns returns the built-in configuration
func DefaultPatterns() Patterns {
	return Patterns{
		OCRArtifacts:   DefaultOCRArtifacts(),
		PreserveTerms:  []string{"Mau Mau", "Kimathi", "Uhuru", "Njuri Ncheke"},
		SwahiliPhrases: []string{"Tutanyakua Mashamba yetu", "Piga Piga"},
	}
}

// patternsFile is the on-disk override format. JSON files parse as YAML.
type patternsFile struct {
	OCRArtifacts   [][2]string `yaml:"ocr_artifacts"`
	PreserveTerms  []string    `yaml:"preserve_terms"`
	SwahiliPhrases []string    `yaml:"swahili_phrases"`
}

// LoadPatterns returns the defaults overridden by any key present in path.
// An empty path returns the defaults.
func LoadPatterns(path string) (Patterns, error) {
	patterns := DefaultPatterns()
	if path == "" {
		return patterns, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("read patterns file: %w", err)
	}

	var file patternsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Patterns{}, fmt.Errorf("parse patterns file %s: %w", path, err)
	}

	if file.OCRArtifacts != nil {
		rules, err := CompileRules(file.OCRArtifacts)
		if err != nil {
			return Patterns{}, fmt.Errorf("compile ocr_artifacts: %w", err)
		}
		patterns.OCRArtifacts = rules
	}
	if file.PreserveTerms != nil {
		patterns.PreserveTerms = file.PreserveTerms
	}
	if file.SwahiliPhrases != nil {
		patterns.SwahiliPhrases = file.SwahiliPhrases
	}

	return patterns, nil
}

// Cleaner canonicalizes text. It holds no mutable state, so one instance can be shared.
type Cleaner struct {
	patterns Patterns
	terms    []string
}

// New creates a cleaner from an already loaded configuration
func New(patterns Patterns) *Cleaner {
	terms := make([]string, 0, len(patterns.PreserveTerms)+len(patterns.SwahiliPhrases))
	for _, t := range append(append([]string{}, patterns.PreserveTerms...), patterns.SwahiliPhrases...) {
		if t != "" {
			terms = append(terms, t)
		}
	}
	return &Cleaner{patterns: patterns, terms: terms}
}

// NewFromFile loads the defaults plus the optional override file once
func NewFromFile(path string) (*Cleaner, error) {
	patterns, err := LoadPatterns(path)
	if err != nil {
		return nil, err
	}
	return New(patterns), nil
}

// Clean runs the full normalization pipeline.
//
// Clean is idempotent on text free of the targeted artifacts. It is not idempotent when a
// protected term itself contains text a later rule matches.
func (c *Cleaner) Clean(text string) string {
	text = Normalize(text)
	text = c.protect(text)
	text = c.patterns.OCRArtifacts.Apply(text)

	text = footnoteRule.Pattern.ReplaceAllString(text, footnoteRule.Replacement)
	text = pageNumberRule.Pattern.ReplaceAllString(text, pageNumberRule.Replacement)
	text = strings.TrimSpace(whitespaceRule.Pattern.ReplaceAllString(text, whitespaceRule.Replacement))

	return restore(text)
}

// Normalize applies NFKC and collapses whitespace
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = whitespaceRule.Pattern.ReplaceAllString(text, whitespaceRule.Replacement)
	return strings.TrimSpace(text)
}

func (c *Cleaner) protect(text string) string {
	for _, term := range c.terms {
		text = strings.ReplaceAll(text, term, Marker+term+Marker)
	}
	return text
}

// restore drops every marker, including any the source text already contained
func restore(text string) string {
	return strings.ReplaceAll(text, Marker, "")
}
