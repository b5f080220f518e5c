package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/chronicle/internal/llm"
	"github.com/ppiankov/chronicle/internal/model"
	"github.com/ppiankov/chronicle/internal/nlp"
)

type MockGenerator struct {
	response string
	calls    int
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, prompt string, params llm.GenerateParams) (string, error) {
	m.calls++
	return m.response, nil
}

func (m *MockGenerator) FirstTokenProbabilities(ctx context.Context, text string) ([]float64, error) {
	return nil, llm.ErrUnsupported
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(root string) *model.Config {
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Output.ExtractedDir = filepath.Join(root, "extracted")
	cfg.Output.CleanedDir = filepath.Join(root, "cleaned")
	cfg.Output.KnowledgeBase = filepath.Join(root, "kb")
	cfg.Output.QADir = filepath.Join(root, "qa_pairs")
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected %s to exist: %v", path, err)
	}
}

const diary = "Dedan Kimathi was captured in Nyeri on 21 October 1956.\n\nHe led the Kenya Land Army in the forest."

func TestPipeline_Run(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	writeFile(t, filepath.Join(raw, "diary.txt"), diary)
	writeFile(t, filepath.Join(raw, "notes.html"), "<html><body><p>The trial began in November 1956.</p></body></html>")

	cfg := testConfig(root)
	gen := &MockGenerator{response: "Question: Where was he captured?\nAnswer: Nyeri"}
	p, err := New(cfg, WithGenerator(gen), WithAnalyzer(nlp.NewHeuristicAnalyzer()), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	reports, err := p.Run(context.Background(), raw)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(reports) != 4 {
		t.Fatalf("Expected 4 stage reports, got %d", len(reports))
	}
	stages := []string{"extract", "preprocess", "knowledge", "qa"}
	for i, r := range reports {
		if r.Stage != stages[i] {
			t.Errorf("Expected stage %s at %d, got %s", stages[i], i, r.Stage)
		}
		if r.RunID != p.RunID() {
			t.Errorf("Expected run ID %s on %s, got %q", p.RunID(), r.Stage, r.RunID)
		}
	}
	if reports[0].Succeeded() != 2 {
		t.Errorf("Expected 2 extracted documents, got %d", reports[0].Succeeded())
	}

	assertExists(t, filepath.Join(root, "extracted", "diary.txt"))
	assertExists(t, filepath.Join(root, "cleaned", "diary_cleaned.txt"))
	assertExists(t, filepath.Join(root, "cleaned", "diary_cleaned", "section_001.txt"))
	assertExists(t, filepath.Join(root, "cleaned", "notes_cleaned", "section_001.txt"))
	assertExists(t, filepath.Join(root, "kb", "relationships", "network.json"))
	assertExists(t, filepath.Join(root, "kb", "themes", "themes.json"))
	assertExists(t, filepath.Join(root, "qa_pairs", "qa", "diary_cleaned_qa.json"))

	data, err := os.ReadFile(filepath.Join(root, "kb", "timelines", "timeline.json"))
	if err != nil {
		t.Fatalf("Expected timeline artifact: %v", err)
	}
	var events []model.TimelineEvent
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("Invalid timeline JSON: %v", err)
	}
	found := false
	for _, e := range events {
		if e.Date == "21 October 1956" && e.Source == "diary" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected 21 October 1956 from diary in timeline, got %+v", events)
	}

	if gen.calls != 2 {
		t.Errorf("Expected one generation per segment group, got %d", gen.calls)
	}
}

func TestPipeline_RunWithoutGeneratorSkipsQA(t *testing.T) {
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	writeFile(t, filepath.Join(raw, "diary.txt"), diary)

	cfg := testConfig(root)
	cfg.LLM.Provider = ""
	p, err := New(cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	reports, err := p.Run(context.Background(), raw)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(reports) != 3 {
		t.Errorf("Expected QA stage to be skipped, got %d reports", len(reports))
	}
	if _, err := os.Stat(filepath.Join(root, "qa_pairs")); !os.IsNotExist(err) {
		t.Error("Expected no QA output without a provider")
	}
}

func TestPipeline_QARequiresGenerator(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.LLM.Provider = ""
	p, err := New(cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Generator(context.Background()); err != ErrNoGenerator {
		t.Errorf("Expected ErrNoGenerator, got %v", err)
	}
}

func TestPipeline_PreprocessSegments(t *testing.T) {
	root := t.TempDir()
	extracted := filepath.Join(root, "extracted")
	writeFile(t, filepath.Join(extracted, "book.txt"), strings.Repeat("The forest was quiet. ", 20))
	writeFile(t, filepath.Join(extracted, "ignored.pdf"), "%PDF")

	cfg := testConfig(root)
	cfg.Segment.MaxChars = 100
	p, err := New(cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	report, err := p.Preprocess(context.Background(), extracted, cfg.Output.CleanedDir)
	if err != nil {
		t.Fatalf("Preprocess failed: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("Expected only .txt inputs, got %d items", len(report.Items))
	}

	item := report.Items[0]
	if item.Label != "book" || item.Status != model.StatusSuccess {
		t.Errorf("Unexpected item: %+v", item)
	}
	if item.Records < 4 {
		t.Errorf("Expected text split into several segments, got %d", item.Records)
	}

	entries, err := os.ReadDir(filepath.Join(cfg.Output.CleanedDir, "book_cleaned"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != item.Records {
		t.Errorf("Expected %d section files, got %d", item.Records, len(entries))
	}
}

func TestPipeline_PreprocessMissingDir(t *testing.T) {
	cfg := testConfig(t.TempDir())
	p, err := New(cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Preprocess(context.Background(), filepath.Join(t.TempDir(), "nope"), cfg.Output.CleanedDir); err == nil {
		t.Error("Expected error for missing input directory")
	}
}

func TestNew_InvalidPatternsFile(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Clean.PatternsFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for missing cleaner rule file")
	}
}

func TestCleanedSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b_book_cleaned.txt"), "b")
	writeFile(t, filepath.Join(dir, "a_book_cleaned.txt"), "a")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")

	files, err := CleanedSources(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(files))
	}
	if files[0].Label != "a_book" || files[1].Label != "b_book" {
		t.Errorf("Expected sorted labels [a_book b_book], got [%s %s]", files[0].Label, files[1].Label)
	}
}

func TestRenderer(t *testing.T) {
	report := model.NewBatchReport("extract")
	report.Add(model.ItemResult{Label: "letter", Status: model.StatusSuccess, Method: model.MethodTextLayer, WordCount: 120})
	report.Add(model.ItemResult{Label: "scan", Status: model.StatusFailed, Error: "ocr: tesseract not found"})
	report.Finish()

	var buf bytes.Buffer
	NewRenderer(&buf, false).RenderSummary(report)
	out := buf.String()

	if !strings.Contains(out, "Stage: extract") {
		t.Errorf("Expected stage banner, got:\n%s", out)
	}
	if !strings.Contains(out, "scan") || !strings.Contains(out, "tesseract not found") {
		t.Errorf("Expected failed item with error, got:\n%s", out)
	}
	if strings.Contains(out, "letter") {
		t.Errorf("Expected successful item hidden without verbose, got:\n%s", out)
	}
	if !strings.Contains(out, "Failures:  1") {
		t.Errorf("Expected failure count, got:\n%s", out)
	}

	buf.Reset()
	NewRenderer(&buf, true).RenderSummary(report)
	if !strings.Contains(buf.String(), "120 words") {
		t.Errorf("Expected verbose detail, got:\n%s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "reports", "run.json")
	if err := NewRenderer(&buf, false).RenderJSON("run-1", []*model.BatchReport{report}, path); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Invalid JSON report: %v", err)
	}
	if decoded.RunID != "run-1" || len(decoded.Stages) != 1 || decoded.Stages[0].Failed() != 1 {
		t.Errorf("Unexpected report: %+v", decoded)
	}
}
