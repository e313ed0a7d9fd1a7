package model

// Claim represents a single checkable proposition extracted from a submission
type Claim struct {
	Text      string `json:"text"`                // The claim text itself
	Index     int    `json:"index"`               // Position within the submission (0-based)
	Heuristic string `json:"heuristic,omitempty"` // How the claim was obtained (e.g., "sentence", "llm", "fallback:full_text")
}

// Heuristics recorded on extracted claims
const (
	HeuristicSentence = "sentence"
	HeuristicLLM      = "llm"
	HeuristicFallback = "fallback:full_text"
)

// NewClaims wraps extracted claim texts, preserving their order
func NewClaims(texts []string, heuristic string) []Claim {
	claims := make([]Claim, 0, len(texts))
	for _, text := range texts {
		claims = append(claims, Claim{
			Text:      text,
			Index:     len(claims),
			Heuristic: heuristic,
		})
	}
	return claims
}
