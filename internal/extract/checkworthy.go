package extract

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
)

// ErrNotCheckworthy is returned when every candidate claim scored as opinion
var ErrNotCheckworthy = errors.New("no check-worthy claims")

// WorthinessScorer rates how check-worthy a sentence is, from 0 to 1
type WorthinessScorer interface {
	Checkworthiness(ctx context.Context, sentence string) (float64, error)
}

// Checkworthy ranks the claims of an inner extractor by claim-worthiness and
// drops those scoring below the threshold
type Checkworthy struct {
	inner     ClaimExtractor
	scorer    WorthinessScorer
	threshold float64
	max       int
	logger    *zap.Logger
}

// NewCheckworthy wraps inner; max caps the result (0 = all)
func NewCheckworthy(inner ClaimExtractor, scorer WorthinessScorer, threshold float64, max int, logger *zap.Logger) *Checkworthy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checkworthy{inner: inner, scorer: scorer, threshold: threshold, max: max, logger: logger}
}

type scoredClaim struct {
	text  string
	score float64
}

// ExtractClaims scores every candidate. A candidate the scorer fails on is
// kept at the threshold; when the scorer fails on all of them the candidates
// pass through unranked.
func (c *Checkworthy) ExtractClaims(ctx context.Context, text string) ([]string, error) {
	candidates, err := c.inner.ExtractClaims(ctx, text)
	if err != nil || len(candidates) == 0 {
		return candidates, err
	}

	scored := make([]scoredClaim, 0, len(candidates))
	failed := 0
	for _, cand := range candidates {
		score, err := c.scorer.Checkworthiness(ctx, cand)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("claim-worthiness scoring failed", zap.String("claim", cand), zap.Error(err))
			failed++
			score = c.threshold
		}
		if score < c.threshold {
			c.logger.Debug("dropping claim as not check-worthy", zap.String("claim", cand), zap.Float64("score", score))
			continue
		}
		scored = append(scored, scoredClaim{text: cand, score: score})
	}

	if failed == len(candidates) {
		c.logger.Warn("claim-worthiness scorer unavailable, keeping candidates unranked", zap.Int("candidates", len(candidates)))
		return c.capped(candidates), nil
	}
	if len(scored) == 0 {
		return nil, ErrNotCheckworthy
	}

	// Stable: equal scores keep the inner extractor's order
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	claims := make([]string, len(scored))
	for i, s := range scored {
		claims[i] = s.text
	}
	return c.capped(claims), nil
}

func (c *Checkworthy) capped(claims []string) []string {
	if c.max > 0 && len(claims) > c.max {
		return claims[:c.max]
	}
	return claims
}
