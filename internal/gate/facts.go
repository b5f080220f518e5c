package gate

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/chronicle/internal/model"
)

// FactTable is an ordered keyword table. Lookup is first-match-wins in definition order.
type FactTable []model.FactRule

// DefaultFacts returns the built-in table
func DefaultFacts() FactTable {
	return FactTable{
		{Keyword: "zodiac sign", Accepted: []string{"don't know", "unknown"}},
		{Keyword: "sentenced kimathi", Accepted: []string{"o'connor", "kennedy"}},
		{Keyword: "final verdict", Accepted: []string{"death", "hanging"}},
		{Keyword: "carrying a revolver", Accepted: []string{"firearm", "weapon", "revolver", "gun"}},
		{Keyword: "communist", Accepted: []string{"don't know", "unknown"}},
	}
}

// LoadFacts reads a YAML or JSON list of {keyword, accepted} rules. The file replaces the
// built-in table; an empty path returns the defaults.
func LoadFacts(path string) (FactTable, error) {
	if path == "" {
		return DefaultFacts(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facts file: %w", err)
	}

	var rules []model.FactRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse facts file: %w", err)
	}
	for i, r := range rules {
		if strings.TrimSpace(r.Keyword) == "" {
			return nil, fmt.Errorf("facts file: rule %d has no keyword", i+1)
		}
		rules[i].Keyword = strings.ToLower(r.Keyword)
		for j, a := range r.Accepted {
			rules[i].Accepted[j] = strings.ToLower(a)
		}
	}
	return FactTable(rules), nil
}

// Match returns the first rule whose keyword occurs in the lowercased question
func (f FactTable) Match(question string) (model.FactRule, bool) {
	q := strings.ToLower(question)
	for _, r := range f {
		if strings.Contains(q, r.Keyword) {
			return r, true
		}
	}
	return model.FactRule{}, false
}

// Verify checks answer against the first matching rule. Without a match the answer is
// accepted when it admits not knowing or is shorter than five words.
func (f FactTable) Verify(question, answer string) bool {
	a := strings.ToLower(answer)

	if rule, ok := f.Match(question); ok {
		for _, accepted := range rule.Accepted {
			if strings.Contains(a, accepted) {
				return true
			}
		}
		return false
	}

	return strings.Contains(a, "don't know") || strings.Contains(a, "unknown") || len(strings.Fields(answer)) < 5
}
