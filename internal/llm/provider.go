package llm

import (
	"context"
	"errors"
	"math"

	"github.com/ppiankov/chronicle/internal/model"
)

// ErrUnsupported is returned for operations a provider cannot perform
var ErrUnsupported = errors.New("operation not supported by provider")

// Generator defines the interface for text generation providers
type Generator interface {
	// Name returns the provider name
	Name() string

	// Generate completes prompt
	Generate(ctx context.Context, prompt string, params GenerateParams) (string, error)

	// FirstTokenProbabilities returns the probabilities of the candidate first tokens
	// generated after text, highest first
	FirstTokenProbabilities(ctx context.Context, text string) ([]float64, error)
}

// GenerateParams controls one generation call. Providers ignore what their API cannot
// express.
type GenerateParams struct {
	// MaxTokens limits the response length
	MaxTokens int

	// Sample enables stochastic decoding; when false decoding is greedy
	Sample      bool
	Temperature float64
	TopK        int

	// Beam search settings, honored only by providers that support them
	NumBeams      int
	NoRepeatNgram int

	// RepetitionPenalty > 1 discourages repeated tokens
	RepetitionPenalty float64
}

// temperature returns the effective temperature, 0 for greedy decoding
func (p GenerateParams) temperature() float64 {
	if !p.Sample {
		return 0
	}
	return p.Temperature
}

// frequencyPenalty maps a multiplicative repetition penalty onto an additive one in [0, 2]
func (p GenerateParams) frequencyPenalty() float64 {
	if p.RepetitionPenalty <= 1 {
		return 0
	}
	return math.Min(p.RepetitionPenalty-1, 2)
}

// Config holds generation provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "vertex", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Project and Region for Vertex AI
	Project string
	Region  string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens is the default response length
	MaxTokens int

	// Rate limiting
	RequestsPerSecond float64
	Burst             int
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:          c.Provider,
		Model:             c.Model,
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Project:           c.Project,
		Region:            c.Region,
		Timeout:           c.Timeout,
		MaxTokens:         c.MaxTokens,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

func maxTokens(params GenerateParams, config Config) int {
	if params.MaxTokens > 0 {
		return params.MaxTokens
	}
	if config.MaxTokens > 0 {
		return config.MaxTokens
	}
	return 200
}
