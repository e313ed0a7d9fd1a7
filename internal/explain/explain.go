// Package explain writes the human-readable rationale for a verdict
package explain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/worker"
)

// ErrEmptyExplanation is returned when the model produced nothing usable
var ErrEmptyExplanation = errors.New("empty explanation")

// Explainer justifies a verdict over the given claims and evidence.
// URLs that appear in evidence are the only ones an explanation may cite.
type Explainer interface {
	Explain(ctx context.Context, claims []string, verdict model.Label, evidence []string) (string, error)
}

// LLMExplainer asks a chat model for the explanation
type LLMExplainer struct {
	provider llm.Provider
	limiter  *worker.WindowLimiter
	logger   *zap.Logger
}

// NewLLMExplainer creates an explainer; limiter may be nil
func NewLLMExplainer(provider llm.Provider, limiter *worker.WindowLimiter, logger *zap.Logger) *LLMExplainer {
	return &LLMExplainer{
		provider: provider,
		limiter:  limiter,
		logger:   logging.OrNop(logger),
	}
}

const explanationMaxTokens = 300

// Explain returns the model's explanation. Replies that cite URLs outside the
// evidence fail with llm.ErrCitationLeak.
func (e *LLMExplainer) Explain(ctx context.Context, claims []string, verdict model.Label, evidence []string) (string, error) {
	if e.limiter != nil {
		if err := e.limiter.AcquireContext(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:    llm.ExplanationPrompt(claims, verdict, evidence),
		MaxTokens: explanationMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}

	text := llm.StripReasoning(resp.Text)
	if isFailure(text) {
		return "", ErrEmptyExplanation
	}

	allowed := llm.ExtractURLs(strings.Join(evidence, "\n"))
	if cited, err := llm.CheckCitations(text, allowed); err != nil {
		e.logger.Warn("explanation rejected", zap.Strings("cited", cited), zap.Error(err))
		return "", err
	}

	return text, nil
}

// isFailure reports replies that carry an error message instead of an explanation
func isFailure(text string) bool {
	return text == "" ||
		strings.HasPrefix(text, "Error") ||
		strings.HasPrefix(text, "An error occurred")
}

// FormatEvidence renders evidence as explainer input, keeping each source URL citable
func FormatEvidence(evidence model.EvidenceSet) []string {
	out := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		switch {
		case ev.Text == "":
		case ev.URL == "":
			out = append(out, ev.Text)
		default:
			out = append(out, fmt.Sprintf("%s (%s)", ev.Text, ev.URL))
		}
	}
	return out
}

// TemplateExplanation describes a verdict from the per-claim vote counts.
// It is used whenever no model explanation is available.
func TemplateExplanation(verdict model.Label, claims []model.ClaimVerdict) string {
	if len(claims) == 0 {
		return "No checkable claims were found, so no verdict could be reached."
	}

	var b strings.Builder
	switch verdict {
	case model.LabelUncertain:
		b.WriteString("The classifiers could not reach a decisive verdict.")
	default:
		fmt.Fprintf(&b, "The submission was judged %s.", verdict)
	}

	counts := make(map[model.Label]int)
	for _, cv := range claims {
		counts[cv.Label]++
	}
	fmt.Fprintf(&b, " Of %d claim(s): %s.", len(claims), formatCounts(counts))

	var votes, abstained int
	tally := make(map[model.Label]int)
	for _, cv := range claims {
		for _, v := range cv.Votes {
			if v.Label == model.LabelAbstain {
				abstained++
				continue
			}
			votes++
			tally[v.Label] += v.Weight
		}
	}
	if votes > 0 {
		fmt.Fprintf(&b, " Classifier votes by weight: %s.", formatCounts(tally))
	}
	if abstained > 0 {
		fmt.Fprintf(&b, " %d classifier vote(s) abstained.", abstained)
	}

	return b.String()
}

// formatCounts lists non-zero counts in label priority order, e.g. "2 FACT, 1 MYTH"
func formatCounts(counts map[model.Label]int) string {
	var parts []string
	for _, l := range append(append([]model.Label{}, model.DecisiveLabels...), model.LabelUncertain) {
		if counts[l] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[l], l))
		}
	}
	return strings.Join(parts, ", ")
}
