package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/chronicle/internal/gate"
	"github.com/ppiankov/chronicle/internal/llm"
	"github.com/ppiankov/chronicle/internal/model"
	"github.com/ppiankov/chronicle/internal/pipeline"
	"github.com/ppiankov/chronicle/internal/server"
)

var (
	serveAddr   string
	showVerdict bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question through the answer gate",
	Long: `Ask generates an answer with the configured LLM provider, checks it
against the fact table and the model's confidence, and prints the answer,
hedged when either check fails.

Example:
  chronicle ask "Who sentenced Kimathi?"
  chronicle ask "Was Kimathi a communist?" --verdict`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ask endpoint over HTTP",
	Long: `Serve exposes the answer gate:
  POST /ask       {"question": "..."} -> {"answer": "..."}
  GET  /examples  sample questions
  GET  /healthz   liveness
  GET  /metrics   Prometheus metrics

Example:
  chronicle serve --addr :7860`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(askCmd, serveCmd)

	askCmd.Flags().BoolVar(&showVerdict, "verdict", false, "print verification and confidence after the answer")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
}

// newGate builds the answer gate from the configuration. A missing provider or an
// unreadable fact file is fatal.
func newGate(ctx context.Context, cfg *model.Config) (*gate.Gate, error) {
	gen, err := llm.NewGenerator(ctx, llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	if gen == nil {
		return nil, pipeline.ErrNoGenerator
	}

	facts, err := gate.LoadFacts(cfg.Gate.FactsFile)
	if err != nil {
		return nil, err
	}
	return gate.New(gen, facts, cfg.Gate, slog.Default()), nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	g, err := newGate(ctx, appConfig)
	if err != nil {
		return err
	}

	res := g.Answer(ctx, strings.Join(args, " "))
	fmt.Println(res.Response)
	if showVerdict {
		fmt.Printf("\nverified=%t confident=%t\n", res.Verdict.Verified, res.Verdict.Confident)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	g, err := newGate(ctx, appConfig)
	if err != nil {
		return err
	}

	return server.New(g, slog.Default()).ListenAndServe(ctx, flagOr(serveAddr, appConfig.Server.Addr))
}
