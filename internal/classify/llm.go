package classify

import (
	"context"
	"fmt"

	"github.com/ppiankov/veritas/internal/llm"
)

// LLMModel asks a chat model for a FACT / MYTH / SCAM classification
type LLMModel struct {
	provider  llm.Provider
	model     string
	maxTokens int
}

// NewLLMModel creates an LLM-backed model; modelName overrides the provider default
func NewLLMModel(provider llm.Provider, modelName string) *LLMModel {
	return &LLMModel{
		provider:  provider,
		model:     modelName,
		maxTokens: 1024,
	}
}

// Name returns the model name
func (m *LLMModel) Name() string {
	return "llm:" + m.provider.Name()
}

// Predict classifies the claim. Evidence is optional context.
func (m *LLMModel) Predict(ctx context.Context, claim string, evidence []string) (Opinion, error) {
	resp, err := m.provider.Complete(ctx, llm.CompletionRequest{
		System:    llm.SystemFactChecker,
		Prompt:    llm.ClassificationPrompt(claim, evidence),
		Model:     m.model,
		MaxTokens: m.maxTokens,
	})
	if err != nil {
		return Opinion{}, fmt.Errorf("llm classify: %w", err)
	}
	if resp.Text == "" {
		return Opinion{}, fmt.Errorf("llm classify: empty reply: %w", ErrNoVerdict)
	}

	c := llm.ParseClassification(resp.Text)
	return Opinion{
		Label:      c.Label,
		Confidence: c.Confidence,
		Reason:     c.Reasoning,
	}, nil
}

// Ready checks that the provider answers
func (m *LLMModel) Ready(ctx context.Context) error {
	if !m.provider.IsAvailable(ctx) {
		return fmt.Errorf("llm provider %s is not available", m.provider.Name())
	}
	return nil
}
