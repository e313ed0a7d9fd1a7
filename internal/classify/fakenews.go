package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// fakeScamThreshold is the FAKE confidence above which a claim reads as SCAM rather than MYTH
const fakeScamThreshold = 0.8

// FakeNewsModel runs a binary fake/real news detector on the claim alone
type FakeNewsModel struct {
	client *InferenceClient
	model  string
}

// NewFakeNewsModel creates a fake news model served by client
func NewFakeNewsModel(client *InferenceClient, modelName string) *FakeNewsModel {
	if modelName == "" {
		modelName = "winterForestStump/Roberta-fake-news-detector"
	}
	return &FakeNewsModel{client: client, model: modelName}
}

// Name returns the model name
func (m *FakeNewsModel) Name() string {
	return "fake-news"
}

// Ready checks the model server
func (m *FakeNewsModel) Ready(ctx context.Context) error {
	return m.client.Ready(ctx, m.model)
}

// Predict maps the detector's best label. Evidence is not used.
func (m *FakeNewsModel) Predict(ctx context.Context, claim string, _ []string) (Opinion, error) {
	scores, err := m.client.TextClassification(ctx, m.model, claim)
	if err != nil {
		return Opinion{}, fmt.Errorf("fake news inference: %w", err)
	}
	if len(scores) == 0 {
		return Opinion{}, fmt.Errorf("fake news detector returned no labels: %w", ErrNoVerdict)
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}

	return Opinion{
		Label:      FakeNewsLabel(best.Label, best.Score),
		Confidence: best.Score,
		Reason:     fmt.Sprintf("%s (%.2f)", best.Label, best.Score),
	}, nil
}

// FakeNewsLabel maps a detector label: FAKE is SCAM when confident, else MYTH; REAL is FACT
func FakeNewsLabel(label string, confidence float64) model.Label {
	switch strings.ToUpper(label) {
	case "FAKE", "LABEL_0":
		if confidence > fakeScamThreshold {
			return model.LabelScam
		}
		return model.LabelMyth
	case "REAL", "LABEL_1":
		return model.LabelFact
	default:
		return model.LabelMyth
	}
}
