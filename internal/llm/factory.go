package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewGenerator creates a generator based on configuration. An empty provider disables
// generation and returns nil. The result is rate limited when RequestsPerSecond is set.
func NewGenerator(ctx context.Context, config Config) (Generator, error) {
	var (
		g   Generator
		err error
	)

	switch strings.ToLower(config.Provider) {
	case "openai":
		g, err = NewOpenAIProvider(config)

	case "anthropic", "claude":
		g, err = NewAnthropicProvider(config)

	case "ollama":
		g, err = NewOllamaProvider(config)

	case "vertex", "vertexai", "gemini":
		g, err = NewVertexProvider(ctx, config)

	case "":
		// No provider configured - generation disabled
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, vertex)", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	if config.RequestsPerSecond > 0 {
		g = NewLimited(g, config.RequestsPerSecond, config.Burst)
	}
	return g, nil
}
