package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/worker"
)

// ClaimExtractor splits submission text into checkable claims
type ClaimExtractor interface {
	ExtractClaims(ctx context.Context, text string) ([]string, error)
}

// Sentence length bounds, in bytes
const (
	minSentenceLen = 12
	maxSentenceLen = 500
)

// SentenceExtractor treats every declarative sentence as a claim, ranking
// sentences with factual markers (keywords, numbers) first
type SentenceExtractor struct {
	keywords []string
	max      int
}

// NewSentenceExtractor creates a sentence extractor returning at most max claims (0 = all)
func NewSentenceExtractor(max int) *SentenceExtractor {
	return &SentenceExtractor{
		keywords: []string{
			"originated", "origin", "first", "introduced", "invented",
			"according to", "is defined as", "is legally", "under the law",
			"shall", "must", "is required", "established", "founded",
			"created", "discovered", "developed", "causes", "cures",
			"prevents", "proven", "studies show", "scientists", "percent", "%",
		},
		max: max,
	}
}

type rankedSentence struct {
	text  string
	score int
}

// ExtractClaims never fails; an empty result means nothing looked like a claim
func (e *SentenceExtractor) ExtractClaims(_ context.Context, text string) ([]string, error) {
	var ranked []rankedSentence
	for _, s := range dedupe(splitSentences(text)) {
		if strings.HasSuffix(s, "?") {
			continue
		}
		ranked = append(ranked, rankedSentence{text: s, score: e.score(s)})
	}

	// Stable: equally ranked sentences keep document order
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if e.max > 0 && len(ranked) > e.max {
		ranked = ranked[:e.max]
	}

	claims := make([]string, len(ranked))
	for i, r := range ranked {
		claims[i] = r.text
	}
	return claims, nil
}

func (e *SentenceExtractor) score(sentence string) int {
	lower := strings.ToLower(sentence)
	score := 0
	for _, keyword := range e.keywords {
		if strings.Contains(lower, keyword) {
			score++
		}
	}
	if strings.IndexFunc(sentence, unicode.IsDigit) >= 0 {
		score++
	}
	return score
}

// splitSentences splits text into sentences (simple heuristic)
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= minSentenceLen && len(sentence) <= maxSentenceLen {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)

		// A terminator only ends a sentence when followed by a space
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			flush()
		}
	}
	if current.Len() > 0 {
		flush()
	}

	return sentences
}

// dedupe removes case-insensitive duplicates, keeping the first occurrence
func dedupe(sentences []string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, s := range sentences {
		key := strings.ToLower(strings.TrimSpace(s))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, s)
		}
	}

	return unique
}

// LLMExtractor asks a chat model for the claims
type LLMExtractor struct {
	provider llm.Provider
	limiter  *worker.WindowLimiter
	max      int
}

// NewLLMExtractor creates an LLM claim extractor; limiter may be nil
func NewLLMExtractor(provider llm.Provider, limiter *worker.WindowLimiter, max int) *LLMExtractor {
	if max <= 0 {
		max = 3
	}
	return &LLMExtractor{provider: provider, limiter: limiter, max: max}
}

// ExtractClaims returns at most max claims parsed from the model reply
func (e *LLMExtractor) ExtractClaims(ctx context.Context, text string) ([]string, error) {
	if e.limiter != nil {
		if err := e.limiter.AcquireContext(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System: "You extract verifiable factual claims from user text.",
		Prompt: llm.ClaimExtractionPrompt(text, e.max),
	})
	if err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}

	claims := dedupe(llm.ParseStringList(resp.Text))
	if len(claims) > e.max {
		claims = claims[:e.max]
	}
	return claims, nil
}

// Chain tries extractors in order until one yields claims
type Chain []ClaimExtractor

// ExtractClaims returns the first non-empty result. Errors are returned only
// when every extractor failed.
func (c Chain) ExtractClaims(ctx context.Context, text string) ([]string, error) {
	var errs []string
	for _, e := range c {
		claims, err := e.ExtractClaims(ctx, text)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if len(claims) > 0 {
			return claims, nil
		}
	}
	if len(errs) == len(c) && len(errs) > 0 {
		return nil, fmt.Errorf("all claim extractors failed: %s", strings.Join(errs, "; "))
	}
	return nil, nil
}
