package ensemble

import (
	"fmt"

	"github.com/ppiankov/veritas/internal/model"
)

// Aggregator combines weighted votes into verdicts
type Aggregator struct {
	policy Policy
}

// NewAggregator creates an aggregator with the given tie-break policy
func NewAggregator(policy Policy) (*Aggregator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{policy: policy}, nil
}

// Policy returns the tie-break policy in use
func (a *Aggregator) Policy() Policy {
	return a.policy
}

// Tally sums the weights of decisive votes. ABSTAIN votes contribute nothing.
func (a *Aggregator) Tally(votes []model.Vote) model.Tally {
	var t model.Tally
	for _, v := range votes {
		t.Add(v.Label, v.Weight)
	}
	return t
}

// Decide picks the heaviest label, breaking ties by policy priority.
// An empty tally decides UNCERTAIN with confidence 0.
func (a *Aggregator) Decide(t model.Tally) (model.Label, float64) {
	total := t.Total()
	if total == 0 {
		return model.LabelUncertain, 0
	}

	best := a.policy.Priority[0]
	for _, l := range a.policy.Priority[1:] {
		// Strictly greater: an equal weight keeps the higher-priority label
		if t.Get(l) > t.Get(best) {
			best = l
		}
	}

	return best, float64(t.Get(best)) / float64(total)
}

// Aggregate decides one claim from its votes
func (a *Aggregator) Aggregate(claim model.Claim, votes []model.Vote) model.ClaimVerdict {
	t := a.Tally(votes)
	label, confidence := a.Decide(t)

	return model.ClaimVerdict{
		Claim:      claim,
		Label:      label,
		Tally:      t,
		Confidence: confidence,
		Votes:      votes,
	}
}

// Reduce decides a submission from its claim verdicts.
// Every decisive claim counts once; UNCERTAIN claims are ignored.
func (a *Aggregator) Reduce(verdicts []model.ClaimVerdict) model.Label {
	var t model.Tally
	for _, v := range verdicts {
		t.Add(v.Label, 1)
	}
	label, _ := a.Decide(t)
	return label
}

// Summary formats a tally as "FACT=2 MYTH=1 SCAM=0"
func Summary(t model.Tally) string {
	return fmt.Sprintf("FACT=%d MYTH=%d SCAM=%d", t.Fact, t.Myth, t.Scam)
}
