package kb

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/chronicle/internal/model"
)

func TestFileSink_PutReplaces(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)
	ctx := context.Background()

	first := []model.TimelineEvent{{Date: "October 1956", Event: "captured", Source: "a"}}
	second := []model.TimelineEvent{{Date: "18 February 1957", Event: "executed", Source: "b"}}

	for _, payload := range [][]model.TimelineEvent{first, second} {
		if err := sink.Put(ctx, Artifact{Category: CategoryTimelines, Name: "timeline.json", Payload: payload}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "timelines", "timeline.json"))
	if err != nil {
		t.Fatalf("Expected artifact file, got %v", err)
	}

	var got []model.TimelineEvent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0].Source != "b" {
		t.Errorf("Expected the second payload only, got %+v", got)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "timelines"))
	if len(entries) != 1 {
		t.Errorf("Expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestFileSink_Indented(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)

	a := Artifact{Category: CategoryThemes, Name: "themes.json", Payload: []model.ThemeRecord{{Source: "x", KeyTerms: []string{"oath"}}}}
	if err := sink.Put(context.Background(), a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data, _ := os.ReadFile(sink.Path(a))
	want := "[\n  {\n    \"source\": \"x\",\n    \"key_terms\": [\n      \"oath\"\n    ]\n  }\n]"
	if string(data) != want {
		t.Errorf("Unexpected file content:\n%s", data)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := s.(*FileSink); !ok {
		t.Errorf("Expected *FileSink, got %T", s)
	}

	s, err = Open(ctx, "file://"+dir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fs, ok := s.(*FileSink); !ok || fs.root != dir {
		t.Errorf("Expected file sink at %s, got %#v", dir, s)
	}

	if _, err := Open(ctx, "ftp://host/kb"); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
	if _, err := Open(ctx, " "); err == nil {
		t.Error("Expected error for empty target")
	}
}

func TestOpen_MultipleTargets(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()

	s, err := Open(context.Background(), a+", "+b)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	m, ok := s.(Multi)
	if !ok || len(m) != 2 {
		t.Fatalf("Expected Multi of 2, got %T", s)
	}

	art := Artifact{Category: CategoryQA, Name: "book_qa.json", Payload: []model.QAPair{}}
	if err := s.Put(context.Background(), art); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	for _, dir := range []string{a, b} {
		if _, err := os.Stat(filepath.Join(dir, "qa", "book_qa.json")); err != nil {
			t.Errorf("Expected artifact in %s: %v", dir, err)
		}
	}
}

func TestFileSink_Clear(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)
	ctx := context.Background()

	for _, a := range []Artifact{
		{Category: CategoryEntities, Name: "person.json", Payload: []string{}},
		{Category: CategoryThemes, Name: "themes.json", Payload: []string{}},
	} {
		if err := sink.Put(ctx, a); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if err := Clear(ctx, sink, CategoryEntities); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "entities")); !os.IsNotExist(err) {
		t.Error("Expected entities directory removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "themes", "themes.json")); err != nil {
		t.Errorf("Expected other categories kept: %v", err)
	}

	if err := Clear(ctx, sink, CategoryEntities); err != nil {
		t.Errorf("Expected clearing a missing category to succeed, got %v", err)
	}
}

func TestClear_UnsupportedSinkIsNoop(t *testing.T) {
	if err := Clear(context.Background(), &failingSink{}, CategoryEntities); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

type failingSink struct{ closed bool }

func (f *failingSink) Put(ctx context.Context, a Artifact) error { return errors.New("disk full") }
func (f *failingSink) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func TestMulti_StopsOnError(t *testing.T) {
	dir := t.TempDir()
	failing := &failingSink{}
	m := Multi{failing, NewFileSink(dir)}

	if err := m.Put(context.Background(), Artifact{Category: "x", Name: "y.json", Payload: 1}); err == nil {
		t.Error("Expected error from failing sink")
	}
	if _, err := os.Stat(filepath.Join(dir, "x", "y.json")); !os.IsNotExist(err) {
		t.Error("Expected later sinks not to be written")
	}
	if err := m.Close(context.Background()); err != nil || !failing.closed {
		t.Errorf("Expected all sinks closed, got %v", err)
	}
}

func TestSQLiteSink_Upsert(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLiteSink(ctx, filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite sink: %v", err)
	}
	defer func() { _ = sink.Close(ctx) }()

	for _, source := range []string{"first", "second"} {
		a := Artifact{Category: CategoryThemes, Name: "themes.json", Payload: []model.ThemeRecord{{Source: source}}}
		if err := sink.Put(ctx, a); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	data, err := sink.Get(ctx, CategoryThemes, "themes.json")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	var got []model.ThemeRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(got) != 1 || got[0].Source != "second" {
		t.Errorf("Expected replaced row, got %+v", got)
	}

	if err := sink.Clear(ctx, CategoryThemes); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := sink.Get(ctx, CategoryThemes, "themes.json"); err == nil {
		t.Error("Expected cleared row to be gone")
	}
}

func TestEdgeParams(t *testing.T) {
	params := EdgeParams([]model.RelationshipEdge{
		{Source: "captured", Target: "Kimathi", Relation: "nsubj", Context: "trial"},
	})

	if len(params) != 1 {
		t.Fatalf("Expected 1 param row, got %d", len(params))
	}
	if params[0]["source"] != "captured" || params[0]["relation"] != "nsubj" || params[0]["context"] != "trial" {
		t.Errorf("Unexpected params: %v", params[0])
	}
}

func TestGraphSink_IgnoresOtherCategories(t *testing.T) {
	s := &GraphSink{}
	if err := s.Put(context.Background(), Artifact{Category: CategoryThemes, Name: "themes.json"}); err != nil {
		t.Errorf("Expected non-relationship artifacts to be ignored, got %v", err)
	}
}
