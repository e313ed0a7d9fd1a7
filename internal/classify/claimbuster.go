package classify

import (
	"context"
	"fmt"
	"strings"
)

// ClaimBusterScorer scores how check-worthy a sentence is with a ClaimBuster
// style text classifier. It lets the claim extractor drop opinions.
type ClaimBusterScorer struct {
	client *InferenceClient
	model  string
}

// NewClaimBusterScorer creates a scorer served by client
func NewClaimBusterScorer(client *InferenceClient, modelName string) *ClaimBusterScorer {
	if modelName == "" {
		modelName = "finetuneanon/claimbuster-lite"
	}
	return &ClaimBusterScorer{client: client, model: modelName}
}

// Checkworthiness returns the probability that sentence is a check-worthy claim
func (s *ClaimBusterScorer) Checkworthiness(ctx context.Context, sentence string) (float64, error) {
	scores, err := s.client.TextClassification(ctx, s.model, sentence)
	if err != nil {
		return 0, fmt.Errorf("claim-worthiness inference: %w", err)
	}
	p, ok := CheckworthyScore(scores)
	if !ok {
		return 0, fmt.Errorf("claim-worthiness model returned unrecognised labels %v: %w", scores, ErrNoVerdict)
	}
	return p, nil
}

// CheckworthyScore sums the check-worthy classes of a result. ClaimBuster's
// three-way CFS/UFS/NFS scheme and two-way Checkworthy/Non-Checkworthy
// (LABEL_1/LABEL_0) models are both understood.
func CheckworthyScore(scores []LabelScore) (float64, bool) {
	var pos, neg float64
	var havePos, haveNeg bool
	for _, s := range scores {
		switch strings.ToLower(strings.TrimSpace(s.Label)) {
		case "checkworthy", "check-worthy", "cfs", "label_1":
			pos += s.Score
			havePos = true
		case "non-checkworthy", "non-check-worthy", "ufs", "nfs", "label_0":
			neg += s.Score
			haveNeg = true
		}
	}

	switch {
	case havePos:
		return clamp01(pos), true
	case haveNeg:
		return clamp01(1 - neg), true
	}
	return 0, false
}
