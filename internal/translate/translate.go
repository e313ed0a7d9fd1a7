// Package translate brings submissions into English before claims are extracted.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/worker"
)

// ErrTranslationFailed marks a translator reply that reports failure instead of text
var ErrTranslationFailed = errors.New("translation failed")

// Translator translates text into English
type Translator interface {
	Translate(ctx context.Context, text, sourceLang string) (string, error)
}

// aliases maps dialect codes onto the language a translator understands
var aliases = map[string]string{
	"tunisian_ar":       "ar",
	"transliterated_ar": "ar",
}

var languageNames = map[string]string{
	"ar": "Arabic",
	"fr": "French",
	"es": "Spanish",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
}

// Normalize lower-cases a language code and resolves aliases
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if a, ok := aliases[lang]; ok {
		return a
	}
	return lang
}

// Needed reports whether text in lang must be translated ("", "en" and "auto" need not)
func Needed(lang string) bool {
	switch Normalize(lang) {
	case "", "en", "auto":
		return false
	}
	return true
}

// IsFailure reports whether translator output signals failure: empty or "Error"-prefixed
func IsFailure(out string) bool {
	out = strings.TrimSpace(out)
	return out == "" || strings.HasPrefix(out, "Error")
}

// LLMTranslator translates with a chat model
type LLMTranslator struct {
	provider llm.Provider
	limiter  *worker.WindowLimiter // optional, shared with the other LLM callers
}

// NewLLMTranslator creates a translator; limiter may be nil
func NewLLMTranslator(provider llm.Provider, limiter *worker.WindowLimiter) *LLMTranslator {
	return &LLMTranslator{provider: provider, limiter: limiter}
}

// Translate returns text unchanged when no translation is needed
func (t *LLMTranslator) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	if !Needed(sourceLang) || strings.TrimSpace(text) == "" {
		return text, nil
	}

	lang := Normalize(sourceLang)
	name, ok := languageNames[lang]
	if !ok {
		name = lang
	}

	if t.limiter != nil {
		if err := t.limiter.AcquireContext(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := t.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:    llm.TranslationPrompt(text, name),
		MaxTokens: 2048,
	})
	if err != nil {
		return "", fmt.Errorf("translate from %s: %w", lang, err)
	}

	out := llm.StripReasoning(resp.Text)
	if IsFailure(out) {
		return "", fmt.Errorf("%w: %q", ErrTranslationFailed, truncate(out, 80))
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
