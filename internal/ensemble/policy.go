package ensemble

import (
	"fmt"

	"github.com/ppiankov/veritas/internal/model"
)

// Policy decides ties between labels with equal weight.
// Priority lists FACT, MYTH and SCAM exactly once, highest first.
type Policy struct {
	Priority []model.Label
}

// DefaultPolicy prefers FACT over MYTH over SCAM
func DefaultPolicy() Policy {
	return Policy{Priority: []model.Label{model.LabelFact, model.LabelMyth, model.LabelScam}}
}

// NewPolicy parses a configured tie-break order
func NewPolicy(order []string) (Policy, error) {
	if len(order) == 0 {
		return DefaultPolicy(), nil
	}
	labels, err := model.ParsePriority(order)
	if err != nil {
		return Policy{}, fmt.Errorf("tie-break policy: %w", err)
	}
	return Policy{Priority: labels}, nil
}

// Validate checks that Priority is a permutation of the decisive labels
func (p Policy) Validate() error {
	order := make([]string, len(p.Priority))
	for i, l := range p.Priority {
		order[i] = string(l)
	}
	if _, err := model.ParsePriority(order); err != nil {
		return fmt.Errorf("tie-break policy: %w", err)
	}
	return nil
}
