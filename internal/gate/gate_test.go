package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/chronicle/internal/llm"
	"github.com/ppiankov/chronicle/internal/model"
)

type MockGenerator struct {
	answer   string
	genErr   error
	probs    []float64
	probeErr error
	prompt   string
	params   llm.GenerateParams
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, prompt string, params llm.GenerateParams) (string, error) {
	m.prompt = prompt
	m.params = params
	return m.answer, m.genErr
}

func (m *MockGenerator) FirstTokenProbabilities(ctx context.Context, text string) ([]float64, error) {
	return m.probs, m.probeErr
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerify(t *testing.T) {
	facts := DefaultFacts()

	tests := []struct {
		question string
		answer   string
		want     bool
	}{
		{"Did Kimathi own a cat?", "I don't know", true},
		{"Why was Kimathi carrying a revolver?", "He had a firearm", true},
		{"Why was Kimathi carrying a revolver?", "He was on his way to a meeting with the others", false},
		{"What was the final verdict?", "He was sentenced to DEATH.", true},
		{"Who sentenced Kimathi?", "Chief Justice O'Connor", false},
		{"Who sentenced kimathi to death?", "Kennedy", false},
		{"What is Kimathi's zodiac sign?", "Unknown", true},
		{"Where was Kimathi born?", "In Nyeri", true},
		{"Where was Kimathi born?", "He was born in the Tetu division of Nyeri", false},
		{"Where was Kimathi born?", "That is unknown to historians of the era", true},
	}

	for _, tt := range tests {
		if got := facts.Verify(tt.question, tt.answer); got != tt.want {
			t.Errorf("Verify(%q, %q) = %v, expected %v", tt.question, tt.answer, got, tt.want)
		}
	}
}

func TestMatch_FirstWins(t *testing.T) {
	facts := DefaultFacts()

	rule, ok := facts.Match("What was the final verdict for the communist?")
	if !ok || rule.Keyword != "final verdict" {
		t.Errorf("Expected first defined keyword to win, got %q", rule.Keyword)
	}
	if facts.Verify("What was the final verdict for the communist?", "unknown") {
		t.Error("Expected later rule's accepted answers to be ignored")
	}
}

func TestLoadFacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yaml")
	content := "- keyword: Captured\n  accepted: [Ihururu, \"October 1956\"]\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	facts, err := LoadFacts(path)
	if err != nil {
		t.Fatalf("LoadFacts failed: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("Expected file to replace defaults, got %d rules", len(facts))
	}
	if !facts.Verify("Where was he captured?", "At Ihururu") {
		t.Error("Expected case-insensitive match against loaded rule")
	}

	defaults, err := LoadFacts("")
	if err != nil || len(defaults) != 5 {
		t.Errorf("Expected defaults for empty path, got %d, %v", len(defaults), err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(bad, []byte("- accepted: [x]\n"), 0644)
	if _, err := LoadFacts(bad); err == nil {
		t.Error("Expected error for rule without keyword")
	}
}

func TestIsConfident(t *testing.T) {
	if !IsConfident([]float64{0.2, 0.5}, 0.5) {
		t.Error("Expected max 0.5 to reach threshold 0.5")
	}
	if IsConfident([]float64{0.49, 0.3}, 0.5) {
		t.Error("Expected 0.49 to miss threshold")
	}
	if IsConfident(nil, 0.5) {
		t.Error("Expected empty distribution not to be confident")
	}
}

func TestRespond(t *testing.T) {
	if got := Respond("Death by hanging", model.AnswerVerdict{Verified: true, Confident: true}); got != "Death by hanging" {
		t.Errorf("Expected raw answer, got %q", got)
	}

	for _, v := range []model.AnswerVerdict{{Verified: false, Confident: true}, {Verified: true, Confident: false}} {
		got := Respond("Maybe", v)
		if !strings.HasPrefix(got, hedgePrefix) {
			t.Errorf("Expected hedge for %+v, got %q", v, got)
		}
		if !strings.Contains(got, "\n\nMaybe\n\n") {
			t.Errorf("Expected raw answer inside hedge, got %q", got)
		}
		want := "Verification: " + boolText(v.Verified) + ", Confidence: " + boolText(v.Confident)
		if !strings.HasSuffix(got, want) {
			t.Errorf("Expected %q at the end, got %q", want, got)
		}
	}
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestGate_Answer(t *testing.T) {
	gen := &MockGenerator{answer: "He had a firearm", probs: []float64{0.8, 0.1}}
	g := New(gen, nil, model.DefaultConfig().Gate, quietLogger())

	res := g.Answer(context.Background(), "Why was Kimathi carrying a revolver?")

	if res.Response != "He had a firearm" {
		t.Errorf("Expected unhedged answer, got %q", res.Response)
	}
	if gen.params.Sample || gen.params.NumBeams != 4 || gen.params.MaxTokens != 60 || gen.params.RepetitionPenalty != 2.0 {
		t.Errorf("Unexpected generation params: %+v", gen.params)
	}
	if gen.prompt != "Question: Why was Kimathi carrying a revolver?\nAnswer:" {
		t.Errorf("Unexpected prompt: %q", gen.prompt)
	}
}

func TestGate_PromptKeepsLongQuestion(t *testing.T) {
	g := New(nil, nil, model.DefaultConfig().Gate, quietLogger())
	question := "Why was Kimathi carrying a revolver when he was captured in the Nyeri forest in October 1956?"

	got := g.Prompt(question)

	if got != "Question: "+question+"\nAnswer:" {
		t.Errorf("Expected full question with answer cue, got %q", got)
	}
}

func TestGate_PromptCutsQuestionOnly(t *testing.T) {
	g := New(nil, nil, model.GateConfig{MaxInputTokens: 2}, quietLogger())

	got := g.Prompt("Who sentenced Dedan Kimathi?")

	if got != "Question: Who sent\nAnswer:" {
		t.Errorf("Expected question cut to 8 characters and answer cue kept, got %q", got)
	}
}

func TestGate_ProbeUnsupportedHedges(t *testing.T) {
	gen := &MockGenerator{answer: "He had a firearm", probeErr: llm.ErrUnsupported}
	g := New(gen, nil, model.GateConfig{}, quietLogger())

	res := g.Answer(context.Background(), "Why was Kimathi carrying a revolver?")

	if !res.Verdict.Verified || res.Verdict.Confident {
		t.Errorf("Expected verified but not confident, got %+v", res.Verdict)
	}
	if !strings.HasSuffix(res.Response, "Verification: true, Confidence: false") {
		t.Errorf("Expected hedged response, got %q", res.Response)
	}
}

func TestGate_GenerationErrorNeverSurfaces(t *testing.T) {
	gen := &MockGenerator{genErr: errors.New("connection refused: secret-host:11434")}
	g := New(gen, nil, model.GateConfig{}, quietLogger())

	got := g.Ask(context.Background(), "Who sentenced Kimathi?")

	if strings.Contains(got, "connection refused") {
		t.Errorf("Expected raw error to be hidden, got %q", got)
	}
	if !strings.HasPrefix(got, hedgePrefix) {
		t.Errorf("Expected hedged fallback, got %q", got)
	}
}
