package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const coreNLPAnnotators = "tokenize,ssplit,pos,lemma,ner,depparse"

// CoreNLPClient talks to a Stanford CoreNLP server
type CoreNLPClient struct {
	baseURL    string
	httpClient *http.Client
}

type coreNLPDocument struct {
	Sentences []coreNLPSentence `json:"sentences"`
}

type coreNLPSentence struct {
	Index             int                 `json:"index"`
	Tokens            []coreNLPToken      `json:"tokens"`
	EntityMentions    []coreNLPMention    `json:"entitymentions"`
	BasicDependencies []coreNLPDependency `json:"basicDependencies"`
}

type coreNLPToken struct {
	Index       int    `json:"index"` // 1-based within the sentence
	Word        string `json:"word"`
	Original    string `json:"originalText"`
	After       string `json:"after"`
	BeginOffset int    `json:"characterOffsetBegin"`
	EndOffset   int    `json:"characterOffsetEnd"`
}

type coreNLPMention struct {
	Text string `json:"text"`
	NER  string `json:"ner"`
}

type coreNLPDependency struct {
	Dep       string `json:"dep"`
	Governor  int    `json:"governor"` // 0 = ROOT
	Dependent int    `json:"dependent"`
}

// NewCoreNLPClient creates a client for the server at baseURL
func NewCoreNLPClient(baseURL string, timeout time.Duration) *CoreNLPClient {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &CoreNLPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the analyzer name
func (c *CoreNLPClient) Name() string {
	return "corenlp"
}

// Check probes the server's readiness endpoint
func (c *CoreNLPClient) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ready", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %v", ErrUnavailable, c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d from %s", ErrUnavailable, resp.StatusCode, c.baseURL)
	}
	return nil
}

// Analyze annotates text on the server and maps the result onto Doc
func (c *CoreNLPClient) Analyze(ctx context.Context, text string) (*Doc, error) {
	props, err := json.Marshal(map[string]string{
		"annotators":   coreNLPAnnotators,
		"outputFormat": "json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}

	endpoint := c.baseURL + "/?properties=" + url.QueryEscape(string(props))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(text)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("corenlp error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw coreNLPDocument
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return convertCoreNLP(text, &raw), nil
}

func convertCoreNLP(text string, raw *coreNLPDocument) *Doc {
	runes := []rune(text)
	doc := &Doc{}

	for si, s := range raw.Sentences {
		base := len(doc.Tokens)
		for _, tok := range s.Tokens {
			doc.Tokens = append(doc.Tokens, Token{Text: tok.Word, Head: noHead, Sentence: si})
		}

		deps := make([]string, len(s.Tokens))
		heads := make([]int, len(s.Tokens))
		for i := range heads {
			heads[i] = noHead
		}
		for _, d := range s.BasicDependencies {
			i := d.Dependent - 1
			if i < 0 || i >= len(s.Tokens) {
				continue
			}
			deps[i] = d.Dep
			if d.Governor > 0 {
				heads[i] = d.Governor - 1
			}
		}
		deps, heads = normalizeDependencies(deps, heads)
		for i := range s.Tokens {
			doc.Tokens[base+i].Dep = deps[i]
			if heads[i] != noHead {
				doc.Tokens[base+i].Head = base + heads[i]
			}
		}

		doc.Sentences = append(doc.Sentences, Sentence{
			Text:  sentenceText(runes, s.Tokens),
			Start: base,
			End:   len(doc.Tokens),
		})

		for _, m := range s.EntityMentions {
			doc.Entities = append(doc.Entities, Span{Text: m.Text, Label: m.NER, Sentence: si})
		}
	}

	return doc
}

// normalizeDependencies maps Universal Dependencies labels onto the subject/object
// vocabulary. A nominal attached through a case marker becomes the prepositional object
// of that marker.
func normalizeDependencies(deps []string, heads []int) ([]string, []int) {
	caseChild := make(map[int]int)
	for i, d := range deps {
		if d == "case" && heads[i] != noHead {
			if _, seen := caseChild[heads[i]]; !seen {
				caseChild[heads[i]] = i
			}
		}
	}

	for i, d := range deps {
		base, _, _ := strings.Cut(strings.ToLower(d), ":")
		switch base {
		case "nsubj":
			if d == "nsubj" {
				deps[i] = DepSubject
			}
		case "obj", "dobj":
			deps[i] = DepObject
		case "obl", "nmod":
			if c, ok := caseChild[i]; ok {
				deps[i] = DepPrepObject
				heads[i] = c
			}
		case "root":
			deps[i] = DepRoot
		}
	}
	return deps, heads
}

func sentenceText(runes []rune, tokens []coreNLPToken) string {
	if len(tokens) == 0 {
		return ""
	}
	begin := tokens[0].BeginOffset
	end := tokens[len(tokens)-1].EndOffset
	if begin >= 0 && end <= len(runes) && begin <= end {
		return string(runes[begin:end])
	}

	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Original)
		b.WriteString(t.After)
	}
	return strings.TrimSpace(b.String())
}
