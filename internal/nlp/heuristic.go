package nlp

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

var (
	sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
	wordToken   = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'’\-]*|[^\s\p{L}\p{N}]`)
	yearToken   = regexp.MustCompile(`^(?:1[5-9]\d{2}|20\d{2})$`)
	dayToken    = regexp.MustCompile(`^\d{1,2}(?:st|nd|rd|th)?$`)
)

var months = setOf("january", "february", "march", "april", "may", "june", "july",
	"august", "september", "october", "november", "december")

var honorifics = setOf("mr", "mrs", "ms", "dr", "sir", "general", "marshal", "chief",
	"justice", "judge", "inspector", "superintendent", "captain", "major", "colonel", "sergeant")

var orgSuffixes = setOf("association", "army", "council", "court", "government", "party",
	"union", "police", "regiment", "committee", "society", "office", "company")

var placePrepositions = setOf("in", "at", "near")

var prepositions = setOf("of", "in", "at", "on", "by", "with", "from", "to", "for", "against",
	"into", "during", "under", "over", "after", "before", "about", "through", "near", "towards")

var verbs = setOf("is", "was", "were", "are", "be", "been", "had", "has", "have", "did", "does",
	"do", "said", "led", "fought", "took", "gave", "told", "went", "came", "made", "saw",
	"found", "held", "met", "shot", "hid", "fled", "wrote", "became", "knew", "left", "sent")

var determiners = setOf("the", "a", "an", "this", "that", "these", "those", "his", "her",
	"their", "its", "our", "my", "your")

// HeuristicAnalyzer is an offline analyzer built from surface patterns. Entities are
// capitalized spans and dates; dependency roles come from a verb and preposition lexicon.
// People are recognized only through a title ("General", "Chief", ...) on some mention;
// other names stay MISC. CoreNLP gives full named-entity labels.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer creates the offline analyzer
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

// Name returns the analyzer name
func (h *HeuristicAnalyzer) Name() string {
	return "heuristic"
}

// Analyze never fails except on context cancellation
func (h *HeuristicAnalyzer) Analyze(ctx context.Context, text string) (*Doc, error) {
	doc := &Doc{}
	for si, sent := range splitSentences(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		base := len(doc.Tokens)
		words := wordToken.FindAllString(sent, -1)
		for _, w := range words {
			doc.Tokens = append(doc.Tokens, Token{Text: w, Head: noHead, Sentence: si})
		}
		doc.Sentences = append(doc.Sentences, Sentence{Text: sent, Start: base, End: len(doc.Tokens)})

		assignRoles(doc.Tokens[base:], base)
		doc.Entities = append(doc.Entities, findEntities(words, si)...)
	}
	propagatePersons(doc.Entities)
	return doc, nil
}

// propagatePersons relabels MISC spans made only of words from a PERSON span elsewhere
// in the text, so "Kimathi" is a person once "General Kimathi" has been seen.
func propagatePersons(spans []Span) {
	names := map[string]bool{}
	for _, s := range spans {
		if s.Label == "PERSON" {
			for _, w := range strings.Fields(s.Text) {
				names[w] = true
			}
		}
	}
	if len(names) == 0 {
		return
	}

	for i, s := range spans {
		if s.Label != "MISC" {
			continue
		}
		known := true
		for _, w := range strings.Fields(s.Text) {
			if !names[w] {
				known = false
				break
			}
		}
		if known {
			spans[i].Label = "PERSON"
		}
	}
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// assignRoles marks nsubj/dobj around the main verb and pobj after prepositions.
// Heads are absolute indexes, hence base.
func assignRoles(tokens []Token, base int) {
	verb := -1
	for i, t := range tokens {
		if isVerb(t.Text) {
			verb = i
			break
		}
	}

	if verb >= 0 {
		for verb+1 < len(tokens) && isVerb(tokens[verb+1].Text) {
			verb++
		}
		tokens[verb].Dep = DepRoot

		for i := verb - 1; i >= 0; i-- {
			if isContent(tokens[i].Text) && !isVerb(tokens[i].Text) {
				tokens[i].Dep = DepSubject
				tokens[i].Head = base + verb
				break
			}
		}

		for i := verb + 1; i < len(tokens); i++ {
			w := strings.ToLower(tokens[i].Text)
			if prepositions[w] || isPunct(tokens[i].Text) {
				break
			}
			if isContent(tokens[i].Text) {
				tokens[i].Dep = DepObject
				tokens[i].Head = base + verb
				break
			}
		}
	}

	for i, t := range tokens {
		if !prepositions[strings.ToLower(t.Text)] {
			continue
		}
		for j := i + 1; j < len(tokens); j++ {
			if isPunct(tokens[j].Text) || prepositions[strings.ToLower(tokens[j].Text)] {
				break
			}
			if isContent(tokens[j].Text) && tokens[j].Dep == "" {
				tokens[j].Dep = DepPrepObject
				tokens[j].Head = base + i
				break
			}
		}
	}
}

// findEntities returns capitalized spans and date mentions in one sentence
func findEntities(words []string, sentence int) []Span {
	var spans []Span

	for i := 0; i < len(words); {
		if d, n := dateAt(words, i); n > 0 {
			spans = append(spans, Span{Text: d, Label: "DATE", Sentence: sentence})
			i += n
			continue
		}

		if !isCapitalized(words[i]) || months[strings.ToLower(words[i])] {
			i++
			continue
		}

		j := i
		for j < len(words) && isCapitalized(words[j]) && !months[strings.ToLower(words[j])] {
			j++
		}
		run := words[i:j]

		// A capitalized function word at sentence start is not part of a name
		if i == 0 && (EnglishStopWords[strings.ToLower(run[0])] || determiners[strings.ToLower(run[0])]) {
			if len(run) == 1 {
				i = j
				continue
			}
			run = run[1:]
		}

		label := "MISC"
		switch {
		case i > 0 && honorifics[strings.ToLower(strings.TrimSuffix(words[i-1], "."))]:
			label = "PERSON"
		case honorifics[strings.ToLower(run[0])] && len(run) > 1:
			label = "PERSON"
			run = run[1:]
		case orgSuffixes[strings.ToLower(run[len(run)-1])]:
			label = "ORG"
		case i > 0 && placePrepositions[strings.ToLower(words[i-1])]:
			label = "GPE"
		}

		spans = append(spans, Span{Text: strings.Join(run, " "), Label: label, Sentence: sentence})
		i = j
	}

	return spans
}

// dateAt matches "21 October 1956", "October 1956" or a bare year at words[i]
func dateAt(words []string, i int) (string, int) {
	if i+2 < len(words) && dayToken.MatchString(words[i]) && months[strings.ToLower(words[i+1])] && yearToken.MatchString(words[i+2]) {
		return strings.Join(words[i:i+3], " "), 3
	}
	if i+1 < len(words) && months[strings.ToLower(words[i])] && yearToken.MatchString(words[i+1]) {
		return strings.Join(words[i:i+2], " "), 2
	}
	if yearToken.MatchString(words[i]) {
		return words[i], 1
	}
	return "", 0
}

func isVerb(w string) bool {
	lw := strings.ToLower(w)
	if verbs[lw] {
		return true
	}
	return len(lw) > 4 && strings.HasSuffix(lw, "ed") && !isCapitalized(w)
}

func isContent(w string) bool {
	lw := strings.ToLower(w)
	return !isPunct(w) && !EnglishStopWords[lw] && !determiners[lw]
}

func isPunct(w string) bool {
	for _, r := range w {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
