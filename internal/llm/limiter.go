package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited throttles calls to a wrapped generator
type Limited struct {
	next    Generator
	limiter *rate.Limiter
}

// NewLimited wraps g with a token bucket of rps requests per second
func NewLimited(g Generator, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: g, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Name returns the wrapped provider name
func (l *Limited) Name() string {
	return l.next.Name()
}

// Generate waits for a token, then delegates
func (l *Limited) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Generate(ctx, prompt, params)
}

// FirstTokenProbabilities waits for a token, then delegates
func (l *Limited) FirstTokenProbabilities(ctx context.Context, text string) ([]float64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.FirstTokenProbabilities(ctx, text)
}
