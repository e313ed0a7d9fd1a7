package classify

import (
	"context"
	"fmt"

	"github.com/ppiankov/veritas/internal/model"
)

// ZeroShotModel asks a zero-shot classifier to pick FACT, MYTH or SCAM for the
// claim paired with each evidence snippet, then takes the majority
type ZeroShotModel struct {
	client *InferenceClient
	model  string
}

// NewZeroShotModel creates a zero-shot model served by client
func NewZeroShotModel(client *InferenceClient, modelName string) *ZeroShotModel {
	if modelName == "" {
		modelName = "facebook/bart-large-mnli"
	}
	return &ZeroShotModel{client: client, model: modelName}
}

// Name returns the model name
func (m *ZeroShotModel) Name() string {
	return "zero-shot"
}

// Ready checks the model server
func (m *ZeroShotModel) Ready(ctx context.Context) error {
	return m.client.Ready(ctx, m.model)
}

// Predict votes once per evidence snippet
func (m *ZeroShotModel) Predict(ctx context.Context, claim string, evidence []string) (Opinion, error) {
	if len(evidence) == 0 {
		return Opinion{}, ErrNoEvidence
	}

	candidates := []string{string(model.LabelFact), string(model.LabelMyth), string(model.LabelScam)}
	var counts [3]float64

	for _, e := range evidence {
		result, err := m.client.ZeroShot(ctx, m.model, claim+" Evidence for that is: "+e, candidates)
		if err != nil {
			return Opinion{}, fmt.Errorf("zero-shot inference: %w", err)
		}
		top, err := model.ParseLabel(result.Labels[0])
		if err != nil {
			return Opinion{}, fmt.Errorf("zero-shot top label: %w", err)
		}
		for i, l := range threeWay {
			if l == top {
				counts[i]++
			}
		}
	}

	best := argmax(counts[:])
	return Opinion{
		Label:      threeWay[best],
		Confidence: counts[best] / float64(len(evidence)),
		Reason:     fmt.Sprintf("FACT %.0f, MYTH %.0f, SCAM %.0f of %d snippets", counts[0], counts[1], counts[2], len(evidence)),
	}, nil
}
