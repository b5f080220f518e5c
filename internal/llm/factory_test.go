package llm

import (
	"context"
	"testing"
	"time"
)

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	g, err := NewGenerator(ctx, Config{})
	if err != nil || g != nil {
		t.Errorf("Expected nil generator for empty provider, got %v, %v", g, err)
	}

	if _, err := NewGenerator(ctx, Config{Provider: "gpt2"}); err == nil {
		t.Error("Expected error for unknown provider")
	}

	g, err = NewGenerator(ctx, Config{Provider: "ollama", Model: "llama3.1", RequestsPerSecond: 5})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := g.(*Limited); !ok {
		t.Errorf("Expected rate limited generator, got %T", g)
	}
	if g.Name() != "ollama" {
		t.Errorf("Expected ollama, got %s", g.Name())
	}

	if _, err := NewGenerator(ctx, Config{Provider: "openai"}); err == nil {
		t.Error("Expected error for openai without key")
	}
}

// MockGenerator records calls
type MockGenerator struct {
	calls int
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	m.calls++
	return "ok", nil
}

func (m *MockGenerator) FirstTokenProbabilities(ctx context.Context, text string) ([]float64, error) {
	m.calls++
	return []float64{0.9}, nil
}

func TestLimited_Throttles(t *testing.T) {
	mock := &MockGenerator{}
	limited := NewLimited(mock, 20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := limited.Generate(context.Background(), "p", GenerateParams{}); err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("Expected throttling to take at least 80ms, took %v", elapsed)
	}
	if mock.calls != 3 {
		t.Errorf("Expected 3 calls, got %d", mock.calls)
	}
}

func TestLimited_ContextCancelled(t *testing.T) {
	limited := NewLimited(&MockGenerator{}, 0.001, 1)
	_, _ = limited.FirstTokenProbabilities(context.Background(), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limited.FirstTokenProbabilities(ctx, "x"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
