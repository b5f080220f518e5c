package model

import "time"

// Config holds every tunable of a chronicle run.
// Values come from flags, CHRONICLE_* environment variables, the config file and
// finally DefaultConfig, in that order of priority.
type Config struct {
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Clean     CleanConfig     `yaml:"clean" mapstructure:"clean"`
	Segment   SegmentConfig   `yaml:"segment" mapstructure:"segment"`
	NLP       NLPConfig       `yaml:"nlp" mapstructure:"nlp"`
	Knowledge KnowledgeConfig `yaml:"knowledge" mapstructure:"knowledge"`
	QA        QAConfig        `yaml:"qa" mapstructure:"qa"`
	Gate      GateConfig      `yaml:"gate" mapstructure:"gate"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// FetchConfig controls downloading of source documents
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBytes  int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	Retries   int           `yaml:"retries" mapstructure:"retries"` // Attempts after the first on 429/5xx

	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// IngestConfig controls the extraction selector
type IngestConfig struct {
	MinWords       int    `yaml:"min_words" mapstructure:"min_words"`             // Below this the PDF is treated as scanned
	DPI            int    `yaml:"dpi" mapstructure:"dpi"`                         // Rasterization resolution for OCR
	Threshold      uint8  `yaml:"threshold" mapstructure:"threshold"`             // Binarization cut-off (0-255)
	Languages      string `yaml:"languages" mapstructure:"languages"`             // Tesseract lexicon, e.g. eng+swa
	RasterizerPath string `yaml:"rasterizer_path" mapstructure:"rasterizer_path"` // pdftoppm binary
	OCRPath        string `yaml:"ocr_path" mapstructure:"ocr_path"`               // tesseract binary
}

// CleanConfig controls the cleaner
type CleanConfig struct {
	PatternsFile string `yaml:"patterns_file" mapstructure:"patterns_file"` // Optional JSON/YAML rule override
}

// SegmentConfig controls the segmenter
type SegmentConfig struct {
	MaxChars int `yaml:"max_chars" mapstructure:"max_chars"`
}

// NLPConfig selects the NLP capability
type NLPConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // corenlp or heuristic (offline; people tagged only via titles)
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds, 0 = no timeout
}

// KnowledgeConfig controls the knowledge extractors
type KnowledgeConfig struct {
	TopTerms      int `yaml:"top_terms" mapstructure:"top_terms"`           // Theme signature size
	ContextWindow int `yaml:"context_window" mapstructure:"context_window"` // Timeline context, characters each side
}

// QAConfig controls automated question generation
type QAConfig struct {
	PrefixChars int     `yaml:"prefix_chars" mapstructure:"prefix_chars"`
	MaxLength   int     `yaml:"max_length" mapstructure:"max_length"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TopK        int     `yaml:"top_k" mapstructure:"top_k"`
}

// GateConfig controls the query-time answer gate
type GateConfig struct {
	Threshold         float64 `yaml:"threshold" mapstructure:"threshold"`
	FactsFile         string  `yaml:"facts_file" mapstructure:"facts_file"`
	MaxInputTokens    int     `yaml:"max_input_tokens" mapstructure:"max_input_tokens"` // Question budget, about 4 characters per token
	MaxNewTokens      int     `yaml:"max_new_tokens" mapstructure:"max_new_tokens"`
	NumBeams          int     `yaml:"num_beams" mapstructure:"num_beams"`
	NoRepeatNgram     int     `yaml:"no_repeat_ngram" mapstructure:"no_repeat_ngram"`
	RepetitionPenalty float64 `yaml:"repetition_penalty" mapstructure:"repetition_penalty"`
}

// LLMConfig selects the generation capability
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, vertex
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"-" mapstructure:"api_key"` // Never written to config files
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Project           string  `yaml:"project,omitempty" mapstructure:"project"` // Vertex AI only
	Region            string  `yaml:"region,omitempty" mapstructure:"region"`   // Vertex AI only
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"`           // seconds, 0 = no timeout
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig controls the OCR cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// OutputConfig controls where artifacts go
type OutputConfig struct {
	ExtractedDir  string `yaml:"extracted_dir" mapstructure:"extracted_dir"`
	CleanedDir    string `yaml:"cleaned_dir" mapstructure:"cleaned_dir"`
	KnowledgeBase string `yaml:"knowledge_base" mapstructure:"knowledge_base"` // Directory, gs://, sqlite:// or neo4j:// target
	QADir         string `yaml:"qa_dir" mapstructure:"qa_dir"`
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
}

// ServerConfig controls the ask endpoint
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			Timeout:   time.Minute,
			UserAgent: "chronicle/0.1 (+https://github.com/ppiankov/chronicle)",
			MaxBytes:  200 << 20,
			Retries:   2,

			RespectRobots: true,
		},
		Ingest: IngestConfig{
			MinWords:       100,
			DPI:            300,
			Threshold:      140,
			Languages:      "eng+swa",
			RasterizerPath: "pdftoppm",
			OCRPath:        "tesseract",
		},
		Segment: SegmentConfig{
			MaxChars: 2000,
		},
		NLP: NLPConfig{
			Provider: "heuristic",
			BaseURL:  "http://localhost:9000",
		},
		Knowledge: KnowledgeConfig{
			TopTerms:      50,
			ContextWindow: 50,
		},
		QA: QAConfig{
			PrefixChars: 500,
			MaxLength:   200,
			Temperature: 0.7,
			TopK:        50,
		},
		Gate: GateConfig{
			Threshold:         0.5,
			MaxInputTokens:    64,
			MaxNewTokens:      60,
			NumBeams:          4,
			NoRepeatNgram:     2,
			RepetitionPenalty: 2.0,
		},
		LLM: LLMConfig{
			Provider:          "",
			Timeout:           30,
			MaxTokens:         200,
			RequestsPerSecond: 2,
			Burst:             1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".chronicle-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Output: OutputConfig{
			ExtractedDir:  "data/extracted_text",
			CleanedDir:    "data/cleaned_text",
			KnowledgeBase: "data/knowledge_base",
			QADir:         "data/qa_pairs",
		},
		Server: ServerConfig{
			Addr: ":7860",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
