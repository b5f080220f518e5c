package model

import "time"

// ItemStatus is the outcome of processing one item of a batch
type ItemStatus string

const (
	StatusSuccess ItemStatus = "success"
	StatusFailed  ItemStatus = "failed"
	StatusSkipped ItemStatus = "skipped" // Input missing, nothing attempted
)

// ItemResult records what happened to one document, file or segment group.
// A failed item never aborts the batch it belongs to.
type ItemResult struct {
	Label      string           `json:"label"`
	Path       string           `json:"path,omitempty"`
	Status     ItemStatus       `json:"status"`
	Method     ExtractionMethod `json:"method,omitempty"`
	OutputPath string           `json:"output_path,omitempty"`
	WordCount  int              `json:"word_count,omitempty"`
	Records    int              `json:"records,omitempty"` // Segments, pairs, ... depending on stage
	Error      string           `json:"error,omitempty"`
}

// BatchReport aggregates per-item results of one pipeline stage
type BatchReport struct {
	RunID      string       `json:"run_id"`
	Stage      string       `json:"stage"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Items      []ItemResult `json:"items"`
}

// NewBatchReport starts a report for one stage
func NewBatchReport(stage string) *BatchReport {
	return &BatchReport{Stage: stage, StartedAt: time.Now().UTC(), Items: []ItemResult{}}
}

// Finish stamps the completion time
func (r *BatchReport) Finish() *BatchReport {
	r.FinishedAt = time.Now().UTC()
	return r
}

// Add appends an item result
func (r *BatchReport) Add(item ItemResult) {
	r.Items = append(r.Items, item)
}

// Succeeded counts successful items
func (r *BatchReport) Succeeded() int {
	return r.count(StatusSuccess)
}

// Failed counts failed items
func (r *BatchReport) Failed() int {
	return r.count(StatusFailed)
}

// Skipped counts skipped items
func (r *BatchReport) Skipped() int {
	return r.count(StatusSkipped)
}

func (r *BatchReport) count(status ItemStatus) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// Truncate shortens capability error messages before they are logged or reported
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// Prefix returns the first max runes of s
func Prefix(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
