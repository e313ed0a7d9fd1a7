package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrCitationLeak is returned when generated text cites a URL outside the evidence allowlist
var ErrCitationLeak = errors.New("citation leak")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one system+user exchange and returns the model's reply
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single-turn completion
type CompletionRequest struct {
	// System is the system instruction (optional)
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature controls sampling; zero uses the provider default
	Temperature float32
}

// CompletionResponse contains the model's output
type CompletionResponse struct {
	// Text is the generated reply, trimmed
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "groq", "openai", "anthropic", "ollama", "gemini", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string

	// Logger receives availability diagnostics (nil = discard)
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 1024,
	}
}

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 1024
)

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// resolve fills request fields the caller left empty from the provider config
func (c Config) resolve(req CompletionRequest, fallbackModel string) CompletionRequest {
	if req.Model == "" {
		req.Model = c.Model
	}
	if req.Model == "" {
		req.Model = fallbackModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.MaxTokens
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}
	return req
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]"'<>]+`)

// ExtractURLs extracts all distinct URLs from text
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, url := range matches {
		// Clean up trailing punctuation
		url = strings.TrimRight(url, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			unique = append(unique, url)
		}
	}

	return unique
}

// CheckCitations returns the URLs cited in text and fails with ErrCitationLeak
// if any of them is not in allowed
func CheckCitations(text string, allowed []string) ([]string, error) {
	cited := ExtractURLs(text)
	for _, url := range cited {
		if !contains(allowed, url) {
			return cited, fmt.Errorf("%w: cited disallowed URL %s", ErrCitationLeak, url)
		}
	}
	return cited, nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes <think>...</think> blocks emitted by reasoning models
func StripReasoning(text string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
}
