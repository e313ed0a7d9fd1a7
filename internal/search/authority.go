package search

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// AuthorityClassifier classifies evidence sources into authority tiers
type AuthorityClassifier struct {
	domainMap    map[string]model.AuthorityTier
	primary      []string
	secondary    []string
	pathPatterns []compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.AuthorityTier
}

// Suffixes that mark institutional hosts
var institutionalSuffixes = []string{".gov", ".edu", ".ac.uk", ".int"}

// NewAuthorityClassifier creates a new authority classifier. Invalid path patterns are ignored.
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	a := &AuthorityClassifier{
		domainMap: make(map[string]model.AuthorityTier, len(config.DomainMap)),
		primary:   normalizeDomains(config.PrimaryDomains),
		secondary: normalizeDomains(config.SecondaryDomains),
	}

	for domain, tier := range config.DomainMap {
		a.domainMap[strings.ToLower(domain)] = ParseTier(tier)
	}

	for _, p := range config.PathPatterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		a.pathPatterns = append(a.pathPatterns, compiledPattern{pattern: re, tier: ParseTier(p.Tier)})
	}

	return a
}

// Classify classifies a URL into an authority tier. Unparseable URLs are tertiary.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return model.TierTertiary
	}
	host := strings.ToLower(parsed.Hostname())

	if tier, ok := a.domainMap[host]; ok {
		return tier
	}
	if matchesDomain(host, a.primary) {
		return model.TierPrimary
	}
	if matchesDomain(host, a.secondary) {
		return model.TierSecondary
	}

	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	for _, suffix := range institutionalSuffixes {
		if strings.HasSuffix(host, suffix) {
			return model.TierPrimary
		}
	}

	return model.TierTertiary
}

// Annotate sets Host and Authority on every evidence item with a URL
func (a *AuthorityClassifier) Annotate(evidence []model.Evidence) {
	for i := range evidence {
		if evidence[i].URL == "" {
			continue
		}
		if u, err := url.Parse(evidence[i].URL); err == nil {
			evidence[i].Host = strings.ToLower(u.Hostname())
		}
		evidence[i].Authority = a.Classify(evidence[i].URL)
	}
}

// SortByAuthority orders evidence primary first, keeping the original order within a tier
func SortByAuthority(evidence []model.Evidence) {
	rank := func(t model.AuthorityTier) int {
		if t == model.TierUnknown {
			return int(model.TierTertiary) + 1
		}
		return int(t)
	}
	sort.SliceStable(evidence, func(i, j int) bool {
		return rank(evidence[i].Authority) < rank(evidence[j].Authority)
	})
}

// ParseTier converts a tier name or number to an AuthorityTier, defaulting to tertiary
func ParseTier(tier string) model.AuthorityTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), "."); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// matchesDomain reports whether host is one of domains or a subdomain of one
func matchesDomain(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
