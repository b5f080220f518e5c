// Package segment splits cleaned text into ordered, length-bounded chunks.
package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/chronicle/internal/model"
)

// DefaultMaxChars is the segment bound used when none is configured
const DefaultMaxChars = 2000

var (
	sectionBreak = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd  = regexp.MustCompile(`[.!?]\s+`)
	sectionFile  = regexp.MustCompile(`^section_(\d+)\.txt$`)
)

// Segmenter packs sections, and sentences of oversized sections, into chunks of at most
// MaxChars characters. A single sentence longer than MaxChars is emitted whole.
type Segmenter struct {
	MaxChars int
}

// New creates a segmenter; maxChars <= 0 selects DefaultMaxChars
func New(maxChars int) *Segmenter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Segmenter{MaxChars: maxChars}
}

// Split returns the segments of text in document order. No segment is empty.
func (s *Segmenter) Split(text string) []string {
	p := &packer{max: s.MaxChars}

	for _, section := range sectionBreak.Split(text, -1) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		if p.fits(section, "\n\n") {
			p.add(section, "\n\n")
			continue
		}

		p.flush()
		if charLen(section) <= s.MaxChars {
			p.add(section, "\n\n")
			continue
		}

		for _, sentence := range splitSentences(section) {
			if !p.fits(sentence, " ") {
				p.flush()
			}
			p.add(sentence, " ")
		}
	}

	p.flush()
	return p.segments
}

// Segments wraps Split output with document and index metadata
func (s *Segmenter) Segments(document, text string) []model.Segment {
	parts := s.Split(text)
	segments := make([]model.Segment, len(parts))
	for i, part := range parts {
		segments[i] = model.Segment{Document: document, Index: i, Text: part}
	}
	return segments
}

type packer struct {
	max      int
	current  strings.Builder
	length   int
	segments []string
}

func (p *packer) fits(piece, sep string) bool {
	if p.length == 0 {
		return charLen(piece) <= p.max
	}
	return p.length+charLen(sep)+charLen(piece) <= p.max
}

func (p *packer) add(piece, sep string) {
	if p.length > 0 {
		p.current.WriteString(sep)
		p.length += charLen(sep)
	}
	p.current.WriteString(piece)
	p.length += charLen(piece)
}

func (p *packer) flush() {
	if seg := strings.TrimSpace(p.current.String()); seg != "" {
		p.segments = append(p.segments, seg)
	}
	p.current.Reset()
	p.length = 0
}

// splitSentences cuts after sentence-terminal punctuation followed by whitespace
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if sentence := strings.TrimSpace(text[start : loc[0]+1]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func charLen(s string) int {
	return utf8.RuneCountInString(s)
}

// WriteSections persists segments as section_001.txt, section_002.txt, ... in dir,
// replacing section files left by an earlier run
func WriteSections(dir string, segments []string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create section dir: %w", err)
	}
	stale, err := SectionFiles(dir)
	if err != nil {
		return err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove stale section: %w", err)
		}
	}
	for i, seg := range segments {
		path := filepath.Join(dir, fmt.Sprintf("section_%03d.txt", i+1))
		if err := os.WriteFile(path, []byte(seg), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// SectionFiles lists section files in dir ordered by their sequence number
func SectionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read section dir: %w", err)
	}

	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := sectionFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, numbered{n: n, path: filepath.Join(dir, e.Name())})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}
