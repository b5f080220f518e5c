package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

// AnthropicProvider implements the Generator interface for Anthropic Claude models
type AnthropicProvider struct {
	client *anthropic.Client
	config Config
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	var opts []anthropic.ClientOption
	if config.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(config.APIKey, opts...),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate completes prompt with the Messages API
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.config.Timeout)*time.Second)
		defer cancel()
	}

	model := p.config.Model
	if model == "" {
		model = "claude-3-haiku-20240307"
	}

	temperature := float32(params.temperature())
	req := anthropic.MessagesRequest{
		Model: anthropic.Model(model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
		MaxTokens:   maxTokens(params, p.config),
		Temperature: &temperature,
	}
	if params.Sample && params.TopK > 0 {
		topK := params.TopK
		req.TopK = &topK
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	var b strings.Builder
	for _, c := range resp.Content {
		if c.Text != nil {
			b.WriteString(*c.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no response content from Anthropic")
	}
	return strings.TrimSpace(b.String()), nil
}

// FirstTokenProbabilities is not exposed by the Messages API
func (p *AnthropicProvider) FirstTokenProbabilities(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("anthropic: token probabilities: %w", ErrUnsupported)
}
