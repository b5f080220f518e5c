// Package gate decides at query time whether a generated answer is presented as is or
// hedged, combining the fact table with a model confidence probe.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/chronicle/internal/llm"
	"github.com/ppiankov/chronicle/internal/model"
)

const hedgePrefix = "I'm not completely sure about this one, but here's my best shot:"

// fallbackAnswer is shown when generation itself fails
const fallbackAnswer = "I could not come up with an answer to that."

// Examples are the sample questions offered to users
var Examples = []string{
	"Why was Kimathi carrying a revolver?",
	"Who sentenced Kimathi?",
	"What was the final verdict?",
	"Did Kimathi own a cat?",
	"What is Kimathi's zodiac sign?",
	"Was Kimathi a communist?",
}

// IsConfident reports whether the most likely first token reaches threshold
func IsConfident(probs []float64, threshold float64) bool {
	if len(probs) == 0 {
		return false
	}
	top := probs[0]
	for _, p := range probs[1:] {
		if p > top {
			top = p
		}
	}
	return top >= threshold
}

// Respond renders the user-facing text for an answer and its verdict
func Respond(answer string, v model.AnswerVerdict) string {
	if !v.Hedged() {
		return answer
	}
	return fmt.Sprintf("%s\n\n%s\n\nVerification: %t, Confidence: %t", hedgePrefix, answer, v.Verified, v.Confident)
}

// Result is one gated answer
type Result struct {
	Question string              `json:"question"`
	Answer   string              `json:"answer"` // Raw generated answer
	Verdict  model.AnswerVerdict `json:"verdict"`
	Response string              `json:"response"` // Text shown to the user
}

// Gate answers questions through a generator
type Gate struct {
	gen    llm.Generator
	facts  FactTable
	cfg    model.GateConfig
	logger *slog.Logger
}

// New creates a gate. A nil fact table uses the defaults.
func New(gen llm.Generator, facts FactTable, cfg model.GateConfig, logger *slog.Logger) *Gate {
	if facts == nil {
		facts = DefaultFacts()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	return &Gate{gen: gen, facts: facts, cfg: cfg, logger: logger}
}

// Confident probes the generator with answer. Any probe failure counts as not confident.
func (g *Gate) Confident(ctx context.Context, answer string) bool {
	probs, err := g.gen.FirstTokenProbabilities(ctx, answer)
	if err != nil {
		g.logger.Debug("Confidence probe failed", "error", err)
		return false
	}
	return IsConfident(probs, g.cfg.Threshold)
}

// Evaluate computes both signals for a question and its answer
func (g *Gate) Evaluate(ctx context.Context, question, answer string) model.AnswerVerdict {
	return model.AnswerVerdict{
		Verified:  g.facts.Verify(question, answer),
		Confident: g.Confident(ctx, answer),
	}
}

// charsPerToken approximates subword tokens for providers without a shared tokenizer
const charsPerToken = 4

// Prompt builds the generation input for a question. Only the question is cut to the
// configured input budget; the answer cue is always kept.
func (g *Gate) Prompt(question string) string {
	question = strings.TrimSpace(question)
	if g.cfg.MaxInputTokens > 0 {
		question = strings.TrimSpace(model.Prefix(question, g.cfg.MaxInputTokens*charsPerToken))
	}
	return fmt.Sprintf("Question: %s\nAnswer:", question)
}

// Answer generates deterministically, then gates. It never returns an error: a failed
// generation yields a hedged fallback.
func (g *Gate) Answer(ctx context.Context, question string) Result {
	answer, err := g.gen.Generate(ctx, g.Prompt(question), llm.GenerateParams{
		MaxTokens:         g.cfg.MaxNewTokens,
		Sample:            false,
		NumBeams:          g.cfg.NumBeams,
		NoRepeatNgram:     g.cfg.NoRepeatNgram,
		RepetitionPenalty: g.cfg.RepetitionPenalty,
	})
	if err != nil {
		g.logger.Warn("Answer generation failed", "error", model.Truncate(err.Error(), 100))
		v := model.AnswerVerdict{}
		return Result{Question: question, Answer: fallbackAnswer, Verdict: v, Response: Respond(fallbackAnswer, v)}
	}

	v := g.Evaluate(ctx, question, answer)
	return Result{Question: question, Answer: answer, Verdict: v, Response: Respond(answer, v)}
}

// Ask returns only the user-facing text
func (g *Gate) Ask(ctx context.Context, question string) string {
	return g.Answer(ctx, question).Response
}
