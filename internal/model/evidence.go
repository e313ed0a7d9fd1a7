package model

// Evidence is a short text snippet retrieved to support or refute a claim
type Evidence struct {
	Text      string         `json:"text"`                // Snippet text
	URL       string         `json:"url,omitempty"`       // Where the snippet came from
	Host      string         `json:"host,omitempty"`      // Domain name
	Origin    EvidenceOrigin `json:"origin"`              // search, linked_page
	Authority AuthorityTier  `json:"authority,omitempty"` // Source authority classification (diagnostic only)
}

// EvidenceOrigin classifies how a snippet was obtained
type EvidenceOrigin string

const (
	OriginSearch     EvidenceOrigin = "search"      // Web search result snippet
	OriginLinkedPage EvidenceOrigin = "linked_page" // Readable text of a page linked from the submission
)

// EvidenceSet is the evidence gathered for exactly one claim.
// Order is not significant to aggregation.
type EvidenceSet []Evidence

// Texts returns the non-empty snippet texts
func (s EvidenceSet) Texts() []string {
	texts := make([]string, 0, len(s))
	for _, e := range s {
		if e.Text != "" {
			texts = append(texts, e.Text)
		}
	}
	return texts
}

// URLs returns the distinct source URLs of the set
func (s EvidenceSet) URLs() []string {
	seen := make(map[string]bool)
	var urls []string
	for _, e := range s {
		if e.URL == "" || seen[e.URL] {
			continue
		}
		seen[e.URL] = true
		urls = append(urls, e.URL)
	}
	return urls
}

// AuthorityTier represents the classification of source authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Laws, statutes, academic papers, official documents
	TierSecondary AuthorityTier = 2 // Encyclopedias, major publishers, reputable media
	TierTertiary  AuthorityTier = 3 // Blogs, personal websites, aggregators
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}
