package search

import (
	"testing"

	"github.com/ppiankov/veritas/internal/model"
)

func TestAuthorityClassifier_Classify(t *testing.T) {
	config := &model.AuthorityConfig{
		PrimaryDomains:   []string{"who.int", "doi.org", "Legislation.gov.uk"},
		SecondaryDomains: []string{"wikipedia.org", "britannica.com"},
		PathPatterns: []model.PathPattern{
			{Pattern: "/statute/", Tier: "primary"},
			{Pattern: "/press/", Tier: "secondary"},
			{Pattern: "([", Tier: "primary"}, // invalid, ignored
		},
		DomainMap: map[string]string{
			"nytimes.com": "secondary",
			"myblog.gov":  "tertiary",
		},
	}
	classifier := NewAuthorityClassifier(config)

	tests := []struct {
		url      string
		expected model.AuthorityTier
		desc     string
	}{
		{"https://who.int/news/item/1", model.TierPrimary, "primary domain exact match"},
		{"https://www.legislation.gov.uk/ukpga/1998/42", model.TierPrimary, "primary domain subdomain, case-insensitive config"},
		{"https://doi.org/10.1234/example", model.TierPrimary, "DOI primary source"},
		{"https://en.wikipedia.org/wiki/Laksa", model.TierSecondary, "Wikipedia secondary source"},
		{"https://www.britannica.com/topic/democracy", model.TierSecondary, "Britannica secondary source"},
		{"https://nytimes.com/article", model.TierSecondary, "explicit domain map"},
		{"https://myblog.gov/post", model.TierTertiary, "domain map overrides TLD heuristics"},
		{"https://example.com/statute/42", model.TierPrimary, "path pattern primary"},
		{"https://example.com/press/release", model.TierSecondary, "path pattern secondary"},
		{"https://whitehouse.gov/statements", model.TierPrimary, ".gov is primary"},
		{"https://mit.edu/research", model.TierPrimary, ".edu is primary"},
		{"https://oxford.ac.uk/research", model.TierPrimary, ".ac.uk is primary"},
		{"https://WHO.INT:443/page", model.TierPrimary, "port and case ignored"},
		{"https://notwikipedia.org/page", model.TierTertiary, "suffix must be a label boundary"},
		{"https://randomsite.com/page", model.TierTertiary, "unknown domain defaults to tertiary"},
		{"not-a-url", model.TierTertiary, "no host"},
		{"://missing-scheme", model.TierTertiary, "malformed URL"},
		{"", model.TierTertiary, "empty URL"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := classifier.Classify(tt.url); got != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, got)
			}
		})
	}
}

func TestAuthorityClassifier_Defaults(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)

	if got := classifier.Classify("https://www.cdc.gov/vaccines"); got != model.TierPrimary {
		t.Errorf("Expected cdc.gov primary by default, got %v", got)
	}
	if got := classifier.Classify("https://www.snopes.com/fact-check/x"); got != model.TierSecondary {
		t.Errorf("Expected snopes.com secondary by default, got %v", got)
	}
}

func TestAuthorityClassifier_AnnotateAndSort(t *testing.T) {
	classifier := NewAuthorityClassifier(nil)
	evidence := []model.Evidence{
		{Text: "blog", URL: "https://Blog.Example.net/a"},
		{Text: "no url"},
		{Text: "wiki", URL: "https://en.wikipedia.org/wiki/Moon"},
		{Text: "who", URL: "https://www.who.int/q"},
	}

	classifier.Annotate(evidence)
	if evidence[0].Host != "blog.example.net" || evidence[0].Authority != model.TierTertiary {
		t.Errorf("unexpected annotation: %+v", evidence[0])
	}
	if evidence[1].Authority != model.TierUnknown {
		t.Errorf("evidence without URL should stay unclassified, got %v", evidence[1].Authority)
	}

	SortByAuthority(evidence)
	order := []string{"who", "wiki", "blog", "no url"}
	for i, want := range order {
		if evidence[i].Text != want {
			t.Errorf("position %d: expected %s, got %s", i, want, evidence[i].Text)
		}
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		input    string
		expected model.AuthorityTier
	}{
		{"primary", model.TierPrimary},
		{"PRIMARY", model.TierPrimary},
		{"1", model.TierPrimary},
		{"Secondary", model.TierSecondary},
		{"2", model.TierSecondary},
		{"tertiary", model.TierTertiary},
		{"3", model.TierTertiary},
		{"unknown", model.TierTertiary},
		{"", model.TierTertiary},
	}

	for _, tt := range tests {
		if got := ParseTier(tt.input); got != tt.expected {
			t.Errorf("ParseTier(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
