package qa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/chronicle/internal/kb"
	"github.com/ppiankov/chronicle/internal/llm"
	"github.com/ppiankov/chronicle/internal/model"
)

// MockGenerator returns canned output per call
type MockGenerator struct {
	outputs []string
	err     error
	prompts []string
	params  []llm.GenerateParams
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, prompt string, params llm.GenerateParams) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.params = append(m.params, params)
	if m.err != nil {
		return "", m.err
	}
	if len(m.outputs) == 0 {
		return "", nil
	}
	out := m.outputs[0]
	m.outputs = m.outputs[1:]
	return out, nil
}

func (m *MockGenerator) FirstTokenProbabilities(ctx context.Context, text string) ([]float64, error) {
	return nil, llm.ErrUnsupported
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []model.QAPair
	}{
		{
			name:  "single pair",
			input: "Question: What year?\nAnswer: 1956",
			want:  []model.QAPair{{Question: "What year?", Answer: "1956", Source: "src", Type: "automated"}},
		},
		{
			name:  "question without answer",
			input: "Question: What year?\nThe text does not say.",
			want:  []model.QAPair{},
		},
		{
			name:  "reversed order",
			input: "Answer: 1956\nQuestion: What year?",
			want:  []model.QAPair{},
		},
		{
			name:  "blank lines and padding",
			input: "  Question:  Who led the forest fighters? \n\n  Answer: Dedan Kimathi  ",
			want:  []model.QAPair{{Question: "Who led the forest fighters?", Answer: "Dedan Kimathi", Source: "src", Type: "automated"}},
		},
		{
			name:  "commentary between",
			input: "Question: Where?\nHere is the answer:\nAnswer: Nyeri",
			want:  []model.QAPair{},
		},
		{
			name:  "empty",
			input: "",
			want:  []model.QAPair{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResponse(tt.input, "src")
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d pairs, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Pair %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestBuildPrompt_Truncates(t *testing.T) {
	text := strings.Repeat("a", 600)
	prompt := BuildPrompt(text, 500)

	if !strings.HasSuffix(prompt, "Text: "+strings.Repeat("a", 500)) {
		t.Error("Expected text truncated to 500 characters")
	}
	if !strings.Contains(prompt, "Question: [question here]\nAnswer: [answer here]") {
		t.Error("Expected format instructions in prompt")
	}
}

func TestFromSegment_Params(t *testing.T) {
	mock := &MockGenerator{outputs: []string{"Question: Who?\nAnswer: Kimathi"}}
	g := New(mock, model.QAConfig{PrefixChars: 500, MaxLength: 200, Temperature: 0.7, TopK: 50}, quietLogger())

	pairs := g.FromSegment(context.Background(), "Kimathi led the fighters.", "book_cleaned")
	if len(pairs) != 1 || pairs[0].Source != "book_cleaned" {
		t.Fatalf("Unexpected pairs: %+v", pairs)
	}

	p := mock.params[0]
	if !p.Sample || p.Temperature != 0.7 || p.TopK != 50 || p.MaxTokens != 200 {
		t.Errorf("Unexpected generation params: %+v", p)
	}
}

func TestFromSegment_GenerationError(t *testing.T) {
	mock := &MockGenerator{err: errors.New(strings.Repeat("x", 500))}
	g := New(mock, model.QAConfig{}, quietLogger())

	if pairs := g.FromSegment(context.Background(), "text", "src"); len(pairs) != 0 {
		t.Errorf("Expected no pairs on error, got %+v", pairs)
	}
}

func writeSection(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestProcessAll(t *testing.T) {
	cleaned := t.TempDir()
	writeSection(t, filepath.Join(cleaned, "trial_cleaned"), "section_001.txt", "First section.")
	writeSection(t, filepath.Join(cleaned, "trial_cleaned"), "section_002.txt", "   ")
	writeSection(t, filepath.Join(cleaned, "trial_cleaned"), "section_003.txt", "Third section.")
	writeSection(t, filepath.Join(cleaned, "diary_cleaned"), "section_001.txt", "Diary.")
	_ = os.WriteFile(filepath.Join(cleaned, "trial_cleaned.txt"), []byte("whole book"), 0644)

	// diary is processed first (lexical order) and gets garbage
	mock := &MockGenerator{outputs: []string{
		"I cannot do that.",
		"Question: When?\nAnswer: 1956",
		"Question: Who?\nAnswer: Kimathi",
	}}
	g := New(mock, model.QAConfig{}, quietLogger())

	out := t.TempDir()
	report, err := g.ProcessAll(context.Background(), cleaned, kb.NewFileSink(out))
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}

	if len(mock.prompts) != 3 {
		t.Errorf("Expected empty section to be skipped (3 calls), got %d", len(mock.prompts))
	}
	if report.Succeeded() != 1 || report.Skipped() != 1 {
		t.Errorf("Expected 1 success and 1 skipped group, got %+v", report.Items)
	}

	if _, err := os.Stat(filepath.Join(out, "qa", "diary_cleaned_qa.json")); !os.IsNotExist(err) {
		t.Error("Expected no artifact for a group without pairs")
	}

	data, err := os.ReadFile(filepath.Join(out, "qa", "trial_cleaned_qa.json"))
	if err != nil {
		t.Fatalf("Expected trial artifact: %v", err)
	}
	var pairs []model.QAPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(pairs) != 2 || pairs[0].Answer != "1956" || pairs[1].Source != "trial_cleaned" {
		t.Errorf("Unexpected pairs: %+v", pairs)
	}
}
