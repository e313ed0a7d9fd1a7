package llm

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/veritas/internal/model"
)

func TestParseClassification_JSON(t *testing.T) {
	reply := "<think>the user wants json</think>\n```json\n" +
		`{"classification": "scam", "confidence": 0.92, "reasoning": "Phishing pattern", "key_evidence": ["a", "b"]}` +
		"\n```"

	c := ParseClassification(reply)

	if !c.FromJSON {
		t.Fatal("Expected JSON parse")
	}
	if c.Label != model.LabelScam {
		t.Errorf("Expected SCAM, got %s", c.Label)
	}
	if c.Confidence != 0.92 {
		t.Errorf("Expected confidence 0.92, got %v", c.Confidence)
	}
	if c.Reasoning != "Phishing pattern" || len(c.KeyEvidence) != 2 {
		t.Errorf("Unexpected reasoning/evidence: %+v", c)
	}
}

func TestParseClassification_JSONDefaults(t *testing.T) {
	c := ParseClassification(`{"classification": "UNSURE"}`)

	if c.Label != model.LabelAbstain {
		t.Errorf("Expected ABSTAIN for unknown classification, got %s", c.Label)
	}
	if c.Confidence != 0.5 {
		t.Errorf("Expected default confidence 0.5, got %v", c.Confidence)
	}
	if c.Reasoning != "Analysis completed" {
		t.Errorf("Expected default reasoning, got %q", c.Reasoning)
	}
}

func TestParseClassification_KeywordFallback(t *testing.T) {
	tests := []struct {
		reply string
		want  model.Label
	}{
		{"This is a well-established fact.", model.LabelFact},
		{"Looks like a scam to me", model.LabelScam},
		{"This is a myth, not a fact", model.LabelMyth},
		{"The statement is false.", model.LabelMyth},
		{"I cannot tell.", model.LabelAbstain},
	}

	for _, tt := range tests {
		c := ParseClassification(tt.reply)
		if c.FromJSON {
			t.Errorf("%q: expected keyword fallback", tt.reply)
		}
		if c.Label != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.reply, tt.want, c.Label)
		}
		if c.Confidence != 0.7 {
			t.Errorf("%q: expected fallback confidence 0.7, got %v", tt.reply, c.Confidence)
		}
	}
}

func TestClassificationPrompt(t *testing.T) {
	long := strings.Repeat("x", 500)
	sources := []string{"", "one", "two", "three", "four", long, "six"}

	prompt := ClassificationPrompt("the earth is flat", sources)

	if !strings.Contains(prompt, `CLAIM TO VERIFY: "the earth is flat"`) {
		t.Error("Expected claim in prompt")
	}
	if !strings.Contains(prompt, "1. one...") {
		t.Error("Expected numbered sources, skipping empty ones")
	}
	if strings.Contains(prompt, "six") {
		t.Error("Expected at most 5 sources")
	}
	if strings.Contains(prompt, strings.Repeat("x", 301)) {
		t.Error("Expected sources truncated to 300 characters")
	}

	if p := ClassificationPrompt("claim", nil); strings.Contains(p, "Context from reliable sources") {
		t.Error("Expected no source block without sources")
	}
}

func TestExplanationPrompt(t *testing.T) {
	p := ExplanationPrompt([]string{"a", "b"}, model.LabelMyth, []string{"s1", "s2", "s3", "s4"})
	if !strings.Contains(p, "is a MYTH") || !strings.Contains(p, "a, b") {
		t.Errorf("Unexpected prompt: %s", p)
	}
	if strings.Contains(p, "s4") {
		t.Error("Expected at most 3 sources")
	}
}

func TestParseStringList(t *testing.T) {
	got := ParseStringList("Here you go:\n[\"Claim one.\", \"  \", \"Claim two.\"]")
	if len(got) != 2 || got[0] != "Claim one." || got[1] != "Claim two." {
		t.Errorf("Unexpected JSON list: %v", got)
	}

	got = ParseStringList("1. First claim\n- Second claim\n\n")
	if len(got) != 2 || got[0] != "First claim" || got[1] != "Second claim" {
		t.Errorf("Unexpected line list: %v", got)
	}
}

func TestCheckCitations(t *testing.T) {
	allowed := []string{"https://example.com/1"}

	cited, err := CheckCitations("See https://example.com/1.", allowed)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(cited) != 1 || cited[0] != "https://example.com/1" {
		t.Errorf("Unexpected cited URLs: %v", cited)
	}

	_, err = CheckCitations("See https://evil.example/x and https://example.com/1", allowed)
	if !errors.Is(err, ErrCitationLeak) {
		t.Errorf("Expected ErrCitationLeak, got %v", err)
	}
}

func TestStripReasoning(t *testing.T) {
	if got := StripReasoning("<think>\nhmm\n</think>\nFACT"); got != "FACT" {
		t.Errorf("Expected FACT, got %q", got)
	}
}
