package nlp

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var termToken = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// WeightedTerm is a vocabulary term with its importance
type WeightedTerm struct {
	Term   string
	Weight float64
}

// TermScorer ranks terms by TF-IDF. The vocabulary is limited to the MaxFeatures terms
// most frequent across the corpus; with a single document the idf is constant and the
// ranking reduces to term frequency.
type TermScorer struct {
	StopWords   map[string]bool
	MaxFeatures int
}

// NewTermScorer creates a scorer with the English stop word list
func NewTermScorer(maxFeatures int) *TermScorer {
	if maxFeatures <= 0 {
		maxFeatures = 50
	}
	return &TermScorer{StopWords: EnglishStopWords, MaxFeatures: maxFeatures}
}

// Tokenize lowercases text and returns the non-stop-word terms of two or more characters
func (s *TermScorer) Tokenize(text string) []string {
	var out []string
	for _, w := range termToken.FindAllString(strings.ToLower(text), -1) {
		if utf8.RuneCountInString(w) < 2 || s.StopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Score returns the selected vocabulary in alphabetical order, each term weighted by the
// sum of its l2-normalized tf-idf across documents
func (s *TermScorer) Score(corpus []string) []WeightedTerm {
	counts := make([]map[string]int, len(corpus))
	total := make(map[string]int)
	df := make(map[string]int)

	for i, text := range corpus {
		counts[i] = make(map[string]int)
		for _, t := range s.Tokenize(text) {
			counts[i][t]++
			total[t]++
		}
		for t := range counts[i] {
			df[t]++
		}
	}

	vocab := make([]string, 0, len(total))
	for t := range total {
		vocab = append(vocab, t)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if total[vocab[i]] != total[vocab[j]] {
			return total[vocab[i]] > total[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if len(vocab) > s.MaxFeatures {
		vocab = vocab[:s.MaxFeatures]
	}
	sort.Strings(vocab)

	n := float64(len(corpus))
	weights := make(map[string]float64, len(vocab))
	for _, doc := range counts {
		row := make(map[string]float64, len(vocab))
		var norm float64
		for _, t := range vocab {
			tf := float64(doc[t])
			if tf == 0 {
				continue
			}
			idf := math.Log((1+n)/(1+float64(df[t]))) + 1
			row[t] = tf * idf
			norm += row[t] * row[t]
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for t, w := range row {
			weights[t] += w / norm
		}
	}

	out := make([]WeightedTerm, len(vocab))
	for i, t := range vocab {
		out[i] = WeightedTerm{Term: t, Weight: weights[t]}
	}
	return out
}

// TopTerms returns the selected vocabulary of corpus in alphabetical order
func (s *TermScorer) TopTerms(corpus []string) []string {
	scored := s.Score(corpus)
	terms := make([]string, len(scored))
	for i, w := range scored {
		terms[i] = w.Term
	}
	return terms
}
