package ingest

import (
	"regexp"
	"strings"

	"github.com/ppiankov/chronicle/internal/clean"
)

var (
	brokenLine = regexp.MustCompile(`(\S)\n(\S)`)
	anySpace   = regexp.MustCompile(`\s+`)
)

// DefaultArtifactRules are the OCR corrections applied to raw extracted text, in order
func DefaultArtifactRules() clean.Rules {
	return clean.Rules{
		clean.MustRule(`•·([a-z])`, "${1}"),           // "•·oices" -> "oices"
		clean.MustRule(`\x{FFFD}`, "u"),               // replacement character left by a lost umlaut
		clean.MustRule(`([a-z])_([a-z])`, "${1}${2}"), // joined words
		clean.MustRule(`([A-Z])_([a-z])`, "${1}${2}"), // joined words with capital
	}
}

// CorrectArtifacts applies rules, joins lines broken mid-paragraph and collapses whitespace
func CorrectArtifacts(text string, rules clean.Rules) string {
	text = rules.Apply(text)
	text = brokenLine.ReplaceAllString(text, "${1} ${2}")
	text = anySpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// WordCount counts whitespace-separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}
