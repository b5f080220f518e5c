package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/chronicle/internal/kb"
	"github.com/ppiankov/chronicle/internal/model"
)

// DefaultDatePatterns match "21 October 1956" and "October 1956". Both can fire on the
// same mention, producing two events.
var DefaultDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,2}(?:st|nd|rd|th)? \w+ \d{4})`),
	regexp.MustCompile(`(?:January|February|March|April|May|June|July|August|September|October|November|December) \d{4}`),
}

// TimelineExtractor records date mentions with surrounding context
type TimelineExtractor struct {
	patterns []*regexp.Regexp
	window   int
	events   []model.TimelineEvent
}

// NewTimelineExtractor creates an extractor with a context window of window characters
// on each side
func NewTimelineExtractor(window int) *TimelineExtractor {
	if window <= 0 {
		window = 50
	}
	return &TimelineExtractor{patterns: DefaultDatePatterns, window: window, events: []model.TimelineEvent{}}
}

// Name returns the extractor name
func (t *TimelineExtractor) Name() string {
	return "timeline"
}

// Extract appends one event per pattern match, pattern by pattern
func (t *TimelineExtractor) Extract(ctx context.Context, text, label string) error {
	for _, p := range t.patterns {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, loc := range p.FindAllStringIndex(text, -1) {
			start := backRunes(text, loc[0], t.window)
			end := forwardRunes(text, loc[1], t.window)
			t.events = append(t.events, model.TimelineEvent{
				Date:   text[loc[0]:loc[1]],
				Event:  strings.TrimSpace(text[start:end]),
				Source: label,
			})
		}
	}
	return nil
}

// Events returns the accumulated events
func (t *TimelineExtractor) Events() []model.TimelineEvent {
	return t.events
}

// Save writes timelines/timeline.json
func (t *TimelineExtractor) Save(ctx context.Context, sink kb.Sink) error {
	return sink.Put(ctx, kb.Artifact{Category: kb.CategoryTimelines, Name: "timeline.json", Payload: t.events})
}

// backRunes moves n runes left of byte offset pos, stopping at 0
func backRunes(s string, pos, n int) int {
	for i := 0; i < n && pos > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:pos])
		pos -= size
	}
	return pos
}

// forwardRunes moves n runes right of byte offset pos, stopping at len(s)
func forwardRunes(s string, pos, n int) int {
	for i := 0; i < n && pos < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[pos:])
		pos += size
	}
	return pos
}
