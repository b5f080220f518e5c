package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaProvider_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Options.Temperature == nil || *req.Options.Temperature != 0 {
			t.Errorf("Expected explicit zero temperature for greedy decoding, got %v", req.Options.Temperature)
		}
		if req.Options.RepeatPenalty != 2.0 {
			t.Errorf("Expected repeat_penalty 2.0, got %f", req.Options.RepeatPenalty)
		}
		if req.Options.NumPredict != 60 {
			t.Errorf("Expected num_predict 60, got %d", req.Options.NumPredict)
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{Model: "llama3.1", Response: " Death by hanging. ", Done: true})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	got, err := provider.Generate(context.Background(), "Question: verdict?\nAnswer:", GenerateParams{MaxTokens: 60, RepetitionPenalty: 2.0})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "Death by hanging." {
		t.Errorf("Unexpected answer: %q", got)
	}
}

func TestOllamaProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model not found"}`))
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1", Timeout: 5})

	_, err := provider.Generate(context.Background(), "prompt", GenerateParams{})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if want := "ollama API error: API error (500): model not found"; err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func TestOllamaProvider_RequiresModel(t *testing.T) {
	provider, _ := NewOllamaProvider(Config{})
	if _, err := provider.Generate(context.Background(), "prompt", GenerateParams{}); err == nil {
		t.Error("Expected error without model")
	}
}

func TestOllamaProvider_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	provider, _ := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1"})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := provider.Generate(ctx, "prompt", GenerateParams{}); err == nil {
		t.Error("Expected timeout error")
	}
}
