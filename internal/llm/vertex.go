package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

// VertexProvider implements the Generator interface for Gemini models on Vertex AI
type VertexProvider struct {
	client *genai.Client
	config Config
}

// NewVertexProvider creates a client using application default credentials
func NewVertexProvider(ctx context.Context, config Config) (*VertexProvider, error) {
	if config.Project == "" {
		return nil, fmt.Errorf("vertex provider requires a project")
	}
	region := config.Region
	if region == "" {
		region = "us-central1"
	}

	client, err := genai.NewClient(ctx, config.Project, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexProvider{client: client, config: config}, nil
}

// Name returns the provider name
func (p *VertexProvider) Name() string {
	return "vertex"
}

// Generate completes prompt with GenerateContent
func (p *VertexProvider) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.config.Timeout)*time.Second)
		defer cancel()
	}

	name := p.config.Model
	if name == "" {
		name = "gemini-1.5-flash"
	}
	model := p.client.GenerativeModel(name)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(float32(params.temperature())),
		MaxOutputTokens: genai.Ptr(int32(maxTokens(params, p.config))),
	}
	if params.Sample && params.TopK > 0 {
		model.GenerationConfig.TopK = genai.Ptr(int32(params.TopK))
	}
	if fp := params.frequencyPenalty(); fp > 0 {
		model.GenerationConfig.FrequencyPenalty = genai.Ptr(float32(fp))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex API error: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("no response content from vertex")
	}
	return text, nil
}

// FirstTokenProbabilities is not supported
func (p *VertexProvider) FirstTokenProbabilities(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("vertex: token probabilities: %w", ErrUnsupported)
}

// Close releases the client
func (p *VertexProvider) Close() error {
	return p.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
