package model

// EntityRecord is a named span found by the NLP capability.
// Records are grouped by entity label when saved.
type EntityRecord struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Context string `json:"context"` // Enclosing sentence
}

// RelationshipEdge is one syntactic head/dependent pair.
// Source and Target are raw surface strings, not canonical entities.
type RelationshipEdge struct {
	Source   string `json:"source"`   // Syntactic head
	Target   string `json:"target"`   // Dependent token
	Relation string `json:"relation"` // nsubj, dobj or pobj
	Context  string `json:"context"`  // Document label the edge came from
}

// ThemeRecord is the key-term signature of one document
type ThemeRecord struct {
	Source   string   `json:"source"`
	KeyTerms []string `json:"key_terms"`
}

// TimelineEvent is a date mention with its surrounding text
type TimelineEvent struct {
	Date   string `json:"date"`
	Event  string `json:"event"` // Context window around the match
	Source string `json:"source"`
}

// QAPairTypeAutomated marks pairs produced by the generation capability
const QAPairTypeAutomated = "automated"

// QAPair is a generated question/answer pair
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source"`
	Type     string `json:"type"`
}

// FactRule is one row of the verification fact table
type FactRule struct {
	Keyword  string   `json:"keyword" yaml:"keyword"`
	Accepted []string `json:"accepted" yaml:"accepted"`
}

// AnswerVerdict is the outcome of the answer gate for one request.
// It is never persisted.
type AnswerVerdict struct {
	Verified  bool `json:"verified"`
	Confident bool `json:"confident"`
}

// Hedged reports whether the answer must be presented as low-confidence
func (v AnswerVerdict) Hedged() bool {
	return !v.Verified || !v.Confident
}
