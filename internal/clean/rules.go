package clean

import (
	"fmt"
	"regexp"
)

// Rule is a single pattern/replacement correction.
// Replacement uses regexp.Expand syntax (${1}, ${2}, ...).
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Rules is an ordered rule chain. Order is part of the contract: a later rule sees the
// output of every earlier rule and may match text an earlier rule produced.
type Rules []Rule

// Apply runs every rule in order over text
func (r Rules) Apply(text string) string {
	for _, rule := range r {
		text = rule.Pattern.ReplaceAllString(text, rule.Replacement)
	}
	return text
}

// MustRule compiles a rule and panics on an invalid pattern. Only used for built-in rules.
func MustRule(pattern, replacement string) Rule {
	return Rule{Pattern: regexp.MustCompile(pattern), Replacement: replacement}
}

// CompileRules compiles (pattern, replacement) pairs in order
func CompileRules(pairs [][2]string) (Rules, error) {
	rules := make(Rules, 0, len(pairs))
	for i, pair := range pairs {
		re, err := regexp.Compile(pair[0])
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, pair[0], err)
		}
		rules = append(rules, Rule{Pattern: re, Replacement: pair[1]})
	}
	return rules, nil
}

// DefaultOCRArtifacts are the corrections applied when no override file is configured
func DefaultOCRArtifacts() Rules {
	return Rules{
		MustRule(`•·([a-z])`, "${1}"),           // "•·oices" -> "oices"
		MustRule(`([a-z])_([a-z])`, "${1}${2}"), // joined words
	}
}

var (
	footnoteRule   = MustRule(`\[.*?\]`, "")
	pageNumberRule = MustRule(`(?i)page \d+`, "")
	whitespaceRule = MustRule(`[\s\p{Z}]+`, " ")
)
