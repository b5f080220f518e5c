package llm

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// topLogProbs is the number of alternatives requested for the first-token probe
const topLogProbs = 20

// OpenAIProvider implements the Generator interface for OpenAI models
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) model() string {
	if p.config.Model != "" {
		return p.config.Model
	}
	return openai.GPT4oMini
}

func (p *OpenAIProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(p.config.Timeout)*time.Second)
}

// Generate completes prompt with the Chat Completions API. TopK and beam settings have no
// OpenAI equivalent and are ignored.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:        maxTokens(params, p.config),
		Temperature:      float32(params.temperature()),
		FrequencyPenalty: float32(params.frequencyPenalty()),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// FirstTokenProbabilities generates one token after text and returns the probabilities
// of its top alternatives
func (p *OpenAIProvider) FirstTokenProbabilities(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model(),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   1,
		LogProbs:    true,
		TopLogProbs: topLogProbs,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].LogProbs == nil || len(resp.Choices[0].LogProbs.Content) == 0 {
		return nil, fmt.Errorf("no logprobs in OpenAI response")
	}

	first := resp.Choices[0].LogProbs.Content[0]
	probs := make([]float64, 0, len(first.TopLogProbs)+1)
	if len(first.TopLogProbs) == 0 {
		probs = append(probs, math.Exp(first.LogProb))
	}
	for _, alt := range first.TopLogProbs {
		probs = append(probs, math.Exp(alt.LogProb))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(probs)))
	return probs, nil
}
