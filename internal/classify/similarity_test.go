package classify

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
)

// tableEmbedder returns a fixed vector per text
type tableEmbedder struct {
	vectors map[string][]float32
	seen    []string
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.seen = append(e.seen, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vectors[t]
	}
	return out, nil
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestSimilarityLabel(t *testing.T) {
	assert.Equal(t, model.LabelFact, SimilarityLabel(0.71))
	assert.Equal(t, model.LabelMyth, SimilarityLabel(0.7))
	assert.Equal(t, model.LabelMyth, SimilarityLabel(0.4))
	assert.Equal(t, model.LabelScam, SimilarityLabel(0.39))
	assert.Equal(t, model.LabelScam, SimilarityLabel(-0.5))
}

func TestSimilarityModel_MeanCosine(t *testing.T) {
	e := &tableEmbedder{vectors: map[string][]float32{
		"the sky is blue":     {1, 0},
		"sky appears blue":    {1, 0},
		"rayleigh scattering": {float32(math.Cos(math.Pi / 3)), float32(math.Sin(math.Pi / 3))},
	}}
	m := NewSimilarityModel(e)

	op, err := m.Predict(context.Background(), "  The Sky is BLUE ", []string{"Sky appears blue", "Rayleigh scattering"})
	require.NoError(t, err)

	// (1 + 0.5) / 2
	assert.Equal(t, model.LabelFact, op.Label)
	assert.InDelta(t, 0.75, op.Confidence, 1e-6)
	assert.Equal(t, []string{"the sky is blue", "sky appears blue", "rayleigh scattering"}, e.seen)
}

func TestSimilarityModel_Errors(t *testing.T) {
	_, err := NewSimilarityModel(&tableEmbedder{}).Predict(context.Background(), "c", nil)
	assert.ErrorIs(t, err, ErrNoEvidence)

	_, err = NewSimilarityModel(&tableEmbedder{err: errors.New("quota")}).Predict(context.Background(), "c", []string{"e"})
	assert.ErrorContains(t, err, "quota")
}

func TestSimilarityModel_NegativeMeanClampsConfidence(t *testing.T) {
	e := &tableEmbedder{vectors: map[string][]float32{"c": {1, 0}, "e": {-1, 0}}}

	op, err := NewSimilarityModel(e).Predict(context.Background(), "c", []string{"e"})
	require.NoError(t, err)
	assert.Equal(t, model.LabelScam, op.Label)
	assert.Equal(t, 0.0, op.Confidence)
}
