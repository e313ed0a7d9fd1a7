package model

import "time"

// ClaimVerdict is the decided label for one claim
type ClaimVerdict struct {
	Claim      Claim       `json:"claim"`
	Label      Label       `json:"label"`                // FACT, MYTH, SCAM or UNCERTAIN
	Tally      Tally       `json:"tally"`                // Weight per decisive label
	Confidence float64     `json:"confidence"`           // max(tally) / sum(tally), 0 when empty
	Votes      []Vote      `json:"votes,omitempty"`      // One per classifier, in classifier order
	Evidence   EvidenceSet `json:"evidence,omitempty"`   // Evidence the classifiers saw
	Skipped    bool        `json:"skipped,omitempty"`    // Not classified because the request deadline passed
}

// Stage is a step of the verification state machine
type Stage string

const (
	StageReceived           Stage = "RECEIVED"
	StageTextExtracted      Stage = "TEXT_EXTRACTED"
	StageTranslated         Stage = "TRANSLATED"
	StageClaimsExtracted    Stage = "CLAIMS_EXTRACTED"
	StagePerClaimClassified Stage = "PER_CLAIM_CLASSIFIED"
	StageReduced            Stage = "REDUCED"
	StageExplained          Stage = "EXPLAINED"
	StageDone               Stage = "DONE"
	StageFailed             Stage = "FAILED"
)

// Result is the outcome of verifying one submission
type Result struct {
	RequestID   string         `json:"request_id"`
	Verdict     Label          `json:"verdict"`             // FACT, MYTH, SCAM or UNCERTAIN
	Explanation string         `json:"explanation"`
	Claims      []ClaimVerdict `json:"claims"`              // In claim order
	Text        string         `json:"text,omitempty"`      // Combined (and translated) text that was analysed
	Stage       Stage          `json:"stage"`               // Last stage reached
	Stages      []Stage        `json:"stages"`              // Every stage visited, in order
	Warnings    []string       `json:"warnings,omitempty"`  // Non-fatal degradations (fallbacks taken)
	Error       string         `json:"error,omitempty"`     // Set only for FAILED results
	StartedAt   time.Time      `json:"started_at"`
	Duration    time.Duration  `json:"duration_ns"`
}

// Enter records a stage transition
func (r *Result) Enter(stage Stage) {
	r.Stage = stage
	r.Stages = append(r.Stages, stage)
}

// Warn records a non-fatal degradation
func (r *Result) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Counts returns how many claim verdicts landed on each label, UNCERTAIN included
func (r *Result) Counts() map[Label]int {
	counts := make(map[Label]int)
	for _, cv := range r.Claims {
		counts[cv.Label]++
	}
	return counts
}

// Evidence returns the distinct evidence snippets across all claims, in claim order
func (r *Result) Evidence() EvidenceSet {
	seen := make(map[string]bool)
	var all EvidenceSet
	for _, cv := range r.Claims {
		for _, e := range cv.Evidence {
			if e.Text == "" || seen[e.Text] {
				continue
			}
			seen[e.Text] = true
			all = append(all, e)
		}
	}
	return all
}
