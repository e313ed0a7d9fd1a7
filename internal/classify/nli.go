package classify

import (
	"context"
	"fmt"
	"strings"
)

// contradictionBoost amplifies contradiction so refuting evidence outweighs neutral snippets
const contradictionBoost = 2.5

// NLIModel scores the claim against each evidence snippet with a natural
// language inference model: entailment reads as FACT, neutral as MYTH,
// contradiction as SCAM.
type NLIModel struct {
	client *InferenceClient
	model  string
}

// NewNLIModel creates an NLI model served by client
func NewNLIModel(client *InferenceClient, modelName string) *NLIModel {
	if modelName == "" {
		modelName = "roberta-large-mnli"
	}
	return &NLIModel{client: client, model: modelName}
}

// Name returns the model name
func (m *NLIModel) Name() string {
	return "nli"
}

type nliPair struct {
	Text     string `json:"text"`      // premise (evidence)
	TextPair string `json:"text_pair"` // hypothesis (claim)
}

// Predict averages [entailment, neutral, contradiction] over all evidence
func (m *NLIModel) Predict(ctx context.Context, claim string, evidence []string) (Opinion, error) {
	if len(evidence) == 0 {
		return Opinion{}, ErrNoEvidence
	}

	var sums [3]float64
	for _, e := range evidence {
		scores, err := m.client.TextClassification(ctx, m.model, nliPair{Text: e, TextPair: claim})
		if err != nil {
			return Opinion{}, fmt.Errorf("nli inference: %w", err)
		}
		probs, err := nliProbabilities(scores)
		if err != nil {
			return Opinion{}, err
		}
		for i := range sums {
			sums[i] += probs[i]
		}
	}

	n := float64(len(evidence))
	mean := [3]float64{sums[0] / n, sums[1] / n, sums[2] / n * contradictionBoost}
	total := mean[0] + mean[1] + mean[2]
	if total == 0 {
		return Opinion{}, fmt.Errorf("nli scores are all zero: %w", ErrNoVerdict)
	}
	best := argmax(mean[:])

	return Opinion{
		Label:      threeWay[best],
		Confidence: mean[best] / total,
		Reason:     fmt.Sprintf("entailment %.2f, neutral %.2f, contradiction x%.1f %.2f over %d snippets", mean[0], mean[1], contradictionBoost, mean[2], len(evidence)),
	}, nil
}

// Ready checks the model server
func (m *NLIModel) Ready(ctx context.Context) error {
	return m.client.Ready(ctx, m.model)
}

// nliProbabilities orders label scores as [entailment, neutral, contradiction]
func nliProbabilities(scores []LabelScore) ([3]float64, error) {
	var probs [3]float64
	found := 0
	for _, s := range scores {
		switch strings.ToUpper(s.Label) {
		case "ENTAILMENT", "LABEL_2":
			probs[0] = s.Score
		case "NEUTRAL", "LABEL_1":
			probs[1] = s.Score
		case "CONTRADICTION", "LABEL_0":
			probs[2] = s.Score
		default:
			continue
		}
		found++
	}
	if found == 0 {
		return probs, fmt.Errorf("nli response has no entailment labels: %w", ErrNoVerdict)
	}
	return probs, nil
}
