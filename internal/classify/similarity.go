package classify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// Similarity bands for the mean claim/evidence cosine
const (
	similarityFactAbove   = 0.7
	similarityMythAtLeast = 0.4
)

// Embedder turns texts into vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SimilarityModel compares claim and evidence embeddings: evidence that
// closely restates the claim reads as support
type SimilarityModel struct {
	embedder Embedder
}

// NewSimilarityModel creates a similarity model
func NewSimilarityModel(embedder Embedder) *SimilarityModel {
	return &SimilarityModel{embedder: embedder}
}

// Name returns the model name
func (m *SimilarityModel) Name() string {
	return "similarity"
}

// Predict bands the mean cosine similarity
func (m *SimilarityModel) Predict(ctx context.Context, claim string, evidence []string) (Opinion, error) {
	if len(evidence) == 0 {
		return Opinion{}, ErrNoEvidence
	}

	texts := make([]string, 0, len(evidence)+1)
	texts = append(texts, normalizeForEmbedding(claim))
	for _, e := range evidence {
		texts = append(texts, normalizeForEmbedding(e))
	}

	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return Opinion{}, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return Opinion{}, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	var sum float64
	for _, v := range vectors[1:] {
		sum += Cosine(vectors[0], v)
	}
	avg := sum / float64(len(evidence))

	return Opinion{
		Label:      SimilarityLabel(avg),
		Confidence: math.Max(0, avg),
		Reason:     fmt.Sprintf("mean cosine similarity %.3f over %d snippets", avg, len(evidence)),
	}, nil
}

// Ready embeds a short test text
func (m *SimilarityModel) Ready(ctx context.Context) error {
	_, err := m.embedder.Embed(ctx, []string{"ready"})
	return err
}

// SimilarityLabel bands a mean cosine: > 0.7 FACT, [0.4, 0.7] MYTH, otherwise SCAM
func SimilarityLabel(avg float64) model.Label {
	switch {
	case avg > similarityFactAbove:
		return model.LabelFact
	case avg >= similarityMythAtLeast:
		return model.LabelMyth
	default:
		return model.LabelScam
	}
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched or zero vectors
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func normalizeForEmbedding(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
