package model

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete veritas configuration
type Config struct {
	Pipeline    PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit" mapstructure:"rate_limit"`
	LLM         LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Classifiers []ClassifierConfig `yaml:"classifiers" mapstructure:"classifiers"`
	Search      SearchConfig       `yaml:"search" mapstructure:"search"`
	Fetch       FetchConfig        `yaml:"fetch" mapstructure:"fetch"`
	Translate   TranslateConfig    `yaml:"translate" mapstructure:"translate"`
	Checkworthy CheckworthyConfig  `yaml:"checkworthy" mapstructure:"checkworthy"`
	Converter   ConverterConfig    `yaml:"converter" mapstructure:"converter"`
	Cache       CacheConfig        `yaml:"cache" mapstructure:"cache"`
	HTTP        HTTPConfig         `yaml:"http" mapstructure:"http"`
	Authority   AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	Logging     LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	Output      OutputConfig       `yaml:"output" mapstructure:"output"`
}

// PipelineConfig controls the claim pipeline
type PipelineConfig struct {
	MaxClaims        int           `yaml:"max_claims" mapstructure:"max_claims"`               // Claims classified per submission
	EvidenceCount    int           `yaml:"evidence_count" mapstructure:"evidence_count"`       // Snippets requested per claim
	ClaimConcurrency int           `yaml:"claim_concurrency" mapstructure:"claim_concurrency"` // 1 = sequential
	AdapterTimeout   time.Duration `yaml:"adapter_timeout" mapstructure:"adapter_timeout"`     // Per-classifier deadline
	MaxInFlight      int           `yaml:"max_in_flight" mapstructure:"max_in_flight"`         // Cap on outstanding classifier goroutines, detached ones included
	TieBreak         []string      `yaml:"tie_break" mapstructure:"tie_break"`                 // Priority among FACT, MYTH, SCAM
	ClaimExtractor   string        `yaml:"claim_extractor" mapstructure:"claim_extractor"`     // sentence, llm
}

// RateLimitConfig configures the shared sliding-window limiter
type RateLimitConfig struct {
	MaxCalls int           `yaml:"max_calls" mapstructure:"max_calls"`
	Window   time.Duration `yaml:"window" mapstructure:"window"`
}

// LLMConfig holds LLM provider settings shared by the LLM classifier, explainer, translator and extractor
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // groq, openai, anthropic, ollama, gemini, "" (disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	Explain   bool   `yaml:"explain" mapstructure:"explain"` // Use the LLM for explanations
}

// ClassifierConfig describes one opinion source of the ensemble
type ClassifierConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Kind        string `yaml:"kind" mapstructure:"kind"` // llm, google_factcheck, nli, zero_shot, fake_news, binary, similarity
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Weight      int    `yaml:"weight" mapstructure:"weight"`
	RateLimited bool   `yaml:"rate_limited" mapstructure:"rate_limited"`
	Endpoint    string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Model       string `yaml:"model,omitempty" mapstructure:"model"`
	APIKey      string `yaml:"api_key,omitempty" mapstructure:"api_key"`
}

// SearchConfig configures evidence search
type SearchConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint          string        `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// FetchConfig configures reading pages linked from the submission
type FetchConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxPages      int           `yaml:"max_pages" mapstructure:"max_pages"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxTextChars  int           `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// TranslateConfig configures translation of non-English submissions
type TranslateConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// CheckworthyConfig configures the claim-worthiness gate in front of claim extraction
type CheckworthyConfig struct {
	Enabled   bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint  string  `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Model     string  `yaml:"model" mapstructure:"model"`
	APIKey    string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"` // Candidates scoring below are dropped as opinion
}

// ConverterConfig points at an optional audio/image-to-text service
type ConverterConfig struct {
	Endpoint string        `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// CacheConfig configures the search and page cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// HTTPConfig holds outbound proxy settings
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// AuthorityConfig configures source authority classification
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// PathPattern maps a URL path regex to an authority tier
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	IncludeText   bool `yaml:"include_text" mapstructure:"include_text"`
}

// Classifier kinds
const (
	KindLLM             = "llm"
	KindGoogleFactCheck = "google_factcheck"
	KindNLI             = "nli"
	KindZeroShot        = "zero_shot"
	KindFakeNews        = "fake_news"
	KindBinary          = "binary"
	KindSimilarity      = "similarity"
)

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			MaxClaims:        3,
			EvidenceCount:    5,
			ClaimConcurrency: 1,
			AdapterTimeout:   20 * time.Second,
			MaxInFlight:      32,
			TieBreak:         []string{"FACT", "MYTH", "SCAM"},
			ClaimExtractor:   "sentence",
		},
		RateLimit: RateLimitConfig{
			MaxCalls: 50,
			Window:   60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:  "", // Disabled until a key is available
			Timeout:   30,
			MaxTokens: 1024,
			Explain:   true,
		},
		Classifiers: []ClassifierConfig{
			{Name: "llm", Kind: KindLLM, Enabled: true, Weight: 3, RateLimited: true},
			{Name: "google-factcheck", Kind: KindGoogleFactCheck, Enabled: true, Weight: 1},
			{Name: "nli", Kind: KindNLI, Enabled: false, Weight: 1, Model: "roberta-large-mnli"},
			{Name: "zero-shot", Kind: KindZeroShot, Enabled: false, Weight: 1, Model: "facebook/bart-large-mnli"},
			{Name: "fake-news", Kind: KindFakeNews, Enabled: false, Weight: 1, Model: "winterForestStump/Roberta-fake-news-detector"},
			{Name: "tunbert", Kind: KindBinary, Enabled: false, Weight: 1, Model: "not-lain/TunBERT"},
			{Name: "similarity", Kind: KindSimilarity, Enabled: false, Weight: 1, Model: "text-embedding-3-small"},
		},
		Search: SearchConfig{
			Enabled:           true,
			Endpoint:          "https://html.duckduckgo.com/html/",
			UserAgent:         "Veritas/0.1 (+https://github.com/ppiankov/veritas)",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		Fetch: FetchConfig{
			Enabled:       true,
			MaxPages:      3,
			MaxBodyBytes:  2_000_000,
			MaxTextChars:  4000,
			Timeout:       15 * time.Second,
			UserAgent:     "Veritas/0.1 (+https://github.com/ppiankov/veritas)",
			RespectRobots: true,
		},
		Translate: TranslateConfig{
			Enabled: true,
		},
		Checkworthy: CheckworthyConfig{
			Model:     "finetuneanon/claimbuster-lite",
			Threshold: 0.5,
		},
		Converter: ConverterConfig{
			Timeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "", // Memory only unless set
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"who.int", "cdc.gov", "nih.gov", "europa.eu", "un.org",
				"doi.org", "nature.com", "science.org", "thelancet.com",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com", "apnews.com",
				"bbc.co.uk", "bbc.com", "snopes.com", "politifact.com", "factcheck.org",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Pipeline.MaxClaims < 1 {
		errs = append(errs, fmt.Errorf("pipeline.max_claims must be >= 1, got %d", c.Pipeline.MaxClaims))
	}
	if c.Pipeline.EvidenceCount < 0 {
		errs = append(errs, fmt.Errorf("pipeline.evidence_count must be >= 0, got %d", c.Pipeline.EvidenceCount))
	}
	if c.Pipeline.AdapterTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.adapter_timeout must be positive, got %v", c.Pipeline.AdapterTimeout))
	}
	if c.Pipeline.MaxInFlight < 1 {
		errs = append(errs, fmt.Errorf("pipeline.max_in_flight must be >= 1, got %d", c.Pipeline.MaxInFlight))
	}
	if _, err := ParsePriority(c.Pipeline.TieBreak); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.tie_break: %w", err))
	}
	if c.RateLimit.MaxCalls < 1 {
		errs = append(errs, fmt.Errorf("rate_limit.max_calls must be >= 1, got %d", c.RateLimit.MaxCalls))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.window must be positive, got %v", c.RateLimit.Window))
	}

	if c.Checkworthy.Threshold < 0 || c.Checkworthy.Threshold > 1 {
		errs = append(errs, fmt.Errorf("checkworthy.threshold must be within [0,1], got %v", c.Checkworthy.Threshold))
	}

	names := make(map[string]bool)
	for i, cl := range c.Classifiers {
		if cl.Name == "" {
			errs = append(errs, fmt.Errorf("classifiers[%d]: name is required", i))
		} else if names[cl.Name] {
			errs = append(errs, fmt.Errorf("classifiers[%d]: duplicate name %q", i, cl.Name))
		}
		names[cl.Name] = true
		if cl.Weight < 1 {
			errs = append(errs, fmt.Errorf("classifiers[%d] %q: weight must be >= 1, got %d", i, cl.Name, cl.Weight))
		}
	}

	return errors.Join(errs...)
}

// ParsePriority parses a tie-break order, which must name FACT, MYTH and SCAM exactly once
func ParsePriority(order []string) ([]Label, error) {
	if len(order) != len(DecisiveLabels) {
		return nil, fmt.Errorf("expected %d labels, got %d", len(DecisiveLabels), len(order))
	}
	seen := make(map[Label]bool)
	labels := make([]Label, 0, len(order))
	for _, s := range order {
		l, err := ParseLabel(s)
		if err != nil {
			return nil, err
		}
		if seen[l] {
			return nil, fmt.Errorf("label %s listed twice", l)
		}
		seen[l] = true
		labels = append(labels, l)
	}
	return labels, nil
}
