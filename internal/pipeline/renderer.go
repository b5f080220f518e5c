package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ppiankov/chronicle/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════"

// RunReport is the JSON document written by --report
type RunReport struct {
	RunID  string               `json:"run_id"`
	Stages []*model.BatchReport `json:"stages"`
}

// Renderer writes batch reports for humans and machines
type Renderer struct {
	out     io.Writer
	verbose bool
}

// NewRenderer creates a renderer writing summaries to out
func NewRenderer(out io.Writer, verbose bool) *Renderer {
	return &Renderer{out: out, verbose: verbose}
}

// RenderSummary prints one stage as a banner followed by a per-item table. Successful
// items are listed only in verbose mode.
func (r *Renderer) RenderSummary(report *model.BatchReport) {
	fmt.Fprintf(r.out, "\n%s\n", rule)
	fmt.Fprintf(r.out, "  Stage: %s\n", report.Stage)
	fmt.Fprintf(r.out, "%s\n\n", rule)

	tw := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, item := range report.Items {
		if item.Status == model.StatusSuccess && !r.verbose {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", statusMark(item.Status), item.Label, detail(item), item.Error)
	}
	_ = tw.Flush()

	fmt.Fprintf(r.out, "\n  Total:     %d\n", len(report.Items))
	fmt.Fprintf(r.out, "  Success:   %d\n", report.Succeeded())
	fmt.Fprintf(r.out, "  Failures:  %d\n", report.Failed())
	fmt.Fprintf(r.out, "  Skipped:   %d\n", report.Skipped())
	if !report.FinishedAt.IsZero() {
		fmt.Fprintf(r.out, "  Duration:  %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintln(r.out)
}

func statusMark(s model.ItemStatus) string {
	switch s {
	case model.StatusSuccess:
		return "✓"
	case model.StatusFailed:
		return "✗"
	default:
		return "-"
	}
}

func detail(item model.ItemResult) string {
	var parts []string
	if item.Method != "" {
		parts = append(parts, string(item.Method))
	}
	if item.WordCount > 0 {
		parts = append(parts, fmt.Sprintf("%d words", item.WordCount))
	}
	if item.Records > 0 {
		parts = append(parts, fmt.Sprintf("%d records", item.Records))
	}
	return strings.Join(parts, ", ")
}

// RenderJSON writes all stage reports of a run to path
func (r *Renderer) RenderJSON(runID string, reports []*model.BatchReport, path string) error {
	data, err := json.MarshalIndent(RunReport{RunID: runID, Stages: reports}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
