package classify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	// binaryMinConfidence is the banded confidence below which the model abstains
	binaryMinConfidence = 0.6
	binaryMaxSources    = 5
	binaryContextRunes  = 500
)

// BinaryModel runs a true/false factuality classifier (TunBERT and similar)
// on the claim paired with each evidence snippet
type BinaryModel struct {
	client *InferenceClient
	model  string
}

// NewBinaryModel creates a binary model served by client
func NewBinaryModel(client *InferenceClient, modelName string) *BinaryModel {
	if modelName == "" {
		modelName = "not-lain/TunBERT"
	}
	return &BinaryModel{client: client, model: modelName}
}

// Name returns the model name
func (m *BinaryModel) Name() string {
	return "binary"
}

// Ready checks the model server
func (m *BinaryModel) Ready(ctx context.Context) error {
	return m.client.Ready(ctx, m.model)
}

// Predict averages the true probability over the first evidence snippets,
// weighting each by the model's confidence. Without usable evidence the
// claim is judged alone.
func (m *BinaryModel) Predict(ctx context.Context, claim string, evidence []string) (Opinion, error) {
	claim = strings.Join(strings.Fields(claim), " ")

	var weighted, total float64
	var lastErr error
	used := 0
	for _, src := range evidence {
		if used == binaryMaxSources {
			break
		}
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		used++

		p, err := m.trueProbability(ctx, fmt.Sprintf("Claim: %s Context: %s", claim, firstRunes(src, binaryContextRunes)))
		if err != nil {
			if ctx.Err() != nil {
				return Opinion{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		conf := math.Max(p, 1-p)
		weighted += p * conf
		total += conf
	}

	if total > 0 {
		p := weighted / total
		return binaryOpinion(p, math.Abs(p-0.5)*2, used), nil
	}

	p, err := m.trueProbability(ctx, claim)
	if err != nil {
		if lastErr != nil {
			err = fmt.Errorf("%w (evidence: %v)", err, lastErr)
		}
		return Opinion{}, fmt.Errorf("binary inference: %w", err)
	}
	return binaryOpinion(p, math.Max(p, 1-p), 0), nil
}

func (m *BinaryModel) trueProbability(ctx context.Context, input string) (float64, error) {
	scores, err := m.client.TextClassification(ctx, m.model, input)
	if err != nil {
		return 0, err
	}
	p, ok := BinaryTrueProbability(scores)
	if !ok {
		return 0, fmt.Errorf("unrecognised labels %v: %w", scores, ErrNoVerdict)
	}
	return p, nil
}

func binaryOpinion(trueProb, confidence float64, sources int) Opinion {
	return Opinion{
		Label:      BinaryLabel(trueProb, confidence),
		Confidence: confidence,
		Reason:     fmt.Sprintf("P(true)=%.2f over %d source(s)", trueProb, sources),
	}
}

// BinaryLabel bands a true probability: FACT above 0.5, MYTH otherwise,
// UNCERTAIN (an abstention) when the confidence is below 0.6
func BinaryLabel(trueProb, confidence float64) model.Label {
	switch {
	case confidence < binaryMinConfidence:
		return model.LabelUncertain
	case trueProb > 0.5:
		return model.LabelFact
	default:
		return model.LabelMyth
	}
}

// BinaryTrueProbability reads the probability of the "true" class from a
// two-class result. LABEL_1 is true and LABEL_0 false, as in TunBERT.
func BinaryTrueProbability(scores []LabelScore) (float64, bool) {
	for _, s := range scores {
		switch strings.ToUpper(strings.TrimSpace(s.Label)) {
		case "TRUE", "LABEL_1", "REAL", "FACT":
			return clamp01(s.Score), true
		}
	}
	for _, s := range scores {
		switch strings.ToUpper(strings.TrimSpace(s.Label)) {
		case "FALSE", "LABEL_0", "FAKE":
			return clamp01(1 - s.Score), true
		}
	}
	return 0, false
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
