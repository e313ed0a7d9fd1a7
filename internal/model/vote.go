package model

import (
	"fmt"
	"strings"
	"time"
)

// Label is a classifier opinion or a verdict
type Label string

const (
	LabelFact      Label = "FACT"
	LabelMyth      Label = "MYTH"
	LabelScam      Label = "SCAM"
	LabelAbstain   Label = "ABSTAIN"   // Votes only: contributes no weight
	LabelUncertain Label = "UNCERTAIN" // Verdicts only: nothing decisive
)

// DecisiveLabels are the labels that carry weight in a tally, in default priority order
var DecisiveLabels = []Label{LabelFact, LabelMyth, LabelScam}

// IsDecisive reports whether the label is one of FACT, MYTH, SCAM
func (l Label) IsDecisive() bool {
	switch l {
	case LabelFact, LabelMyth, LabelScam:
		return true
	}
	return false
}

// ParseLabel parses a decisive label (case-insensitive)
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsDecisive() {
		return "", fmt.Errorf("unknown label %q (expected FACT, MYTH or SCAM)", s)
	}
	return l, nil
}

// Vote is the normalized output of one classifier for one claim
type Vote struct {
	Source     string        `json:"source"`               // Classifier name
	Label      Label         `json:"label"`                // FACT, MYTH, SCAM or ABSTAIN
	Weight     int           `json:"weight"`               // Fixed per classifier
	Confidence float64       `json:"confidence"`           // Diagnostics only, never tallied
	Reason     string        `json:"reason,omitempty"`     // Short rationale when the model gives one
	Error      string        `json:"error,omitempty"`      // Why the classifier abstained, if it failed
	Latency    time.Duration `json:"latency_ns,omitempty"` // Wall time of the invocation
}

// Abstain builds an abstaining vote carrying a diagnostic
func Abstain(source string, weight int, reason string) Vote {
	return Vote{
		Source: source,
		Label:  LabelAbstain,
		Weight: weight,
		Error:  reason,
	}
}

// Tally holds the accumulated weight per decisive label for one claim
type Tally struct {
	Fact int `json:"FACT"`
	Myth int `json:"MYTH"`
	Scam int `json:"SCAM"`
}

// Add adds weight to a decisive label's slot; other labels and non-positive weights are ignored
func (t *Tally) Add(label Label, weight int) {
	if weight <= 0 {
		return
	}
	switch label {
	case LabelFact:
		t.Fact += weight
	case LabelMyth:
		t.Myth += weight
	case LabelScam:
		t.Scam += weight
	}
}

// Get returns the weight accumulated for a label
func (t Tally) Get(label Label) int {
	switch label {
	case LabelFact:
		return t.Fact
	case LabelMyth:
		return t.Myth
	case LabelScam:
		return t.Scam
	}
	return 0
}

// Total returns the sum of all slots
func (t Tally) Total() int {
	return t.Fact + t.Myth + t.Scam
}
