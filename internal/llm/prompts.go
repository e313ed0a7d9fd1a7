package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// SystemFactChecker is the system instruction shared by classification and explanation
const SystemFactChecker = "You are a highly accurate fact-checking AI that provides evidence-based analysis of claims. Always respond with valid JSON format."

const (
	maxPromptSources   = 5
	maxPromptSourceLen = 300
	maxExplainSources  = 3
	explanationWordCap = 100
)

// ClassificationPrompt builds the prompt asking for a FACT / MYTH / SCAM verdict
func ClassificationPrompt(claim string, sources []string) string {
	var sourceBlock strings.Builder
	n := 0
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if n == 0 {
			sourceBlock.WriteString("\n\nContext from reliable sources:\n")
		}
		n++
		fmt.Fprintf(&sourceBlock, "%d. %s...\n", n, truncate(s, maxPromptSourceLen))
		if n >= maxPromptSources {
			break
		}
	}

	return fmt.Sprintf(`You are an expert fact-checker with access to reliable information sources. Your task is to analyze the following claim and determine its veracity.

CLAIM TO VERIFY: "%s"
%s
Please analyze this claim thoroughly and provide:

1. CLASSIFICATION: Choose ONE of the following:
   - FACT: The claim is factually accurate and supported by evidence
   - MYTH: The claim is false, misleading, or lacks sufficient evidence
   - SCAM: The claim appears to be deliberately deceptive or fraudulent

2. CONFIDENCE: Rate your confidence from 0.0 to 1.0

3. REASONING: Provide a clear explanation for your classification

4. KEY_EVIDENCE: List the most important evidence points

Respond in the following JSON format:
{
    "classification": "FACT|MYTH|SCAM",
    "confidence": 0.0-1.0,
    "reasoning": "Your detailed reasoning here",
    "key_evidence": ["evidence point 1", "evidence point 2"],
    "sources_used": true/false
}

Focus on accuracy, logical reasoning, and evidence-based conclusions.`, claim, sourceBlock.String())
}

// Classification is a parsed classification reply
type Classification struct {
	Label       model.Label // FACT, MYTH, SCAM or ABSTAIN when undecided
	Confidence  float64
	Reasoning   string
	KeyEvidence []string
	FromJSON    bool // false when the keyword fallback was used
}

type classificationReply struct {
	Classification string   `json:"classification"`
	Confidence     *float64 `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	KeyEvidence    []string `json:"key_evidence"`
}

// ParseClassification reads a classification reply. JSON is tried first;
// otherwise the label is guessed from keywords in the text.
func ParseClassification(text string) Classification {
	text = StripReasoning(text)

	if raw, ok := jsonObject(text); ok {
		var reply classificationReply
		if err := json.Unmarshal([]byte(raw), &reply); err == nil {
			c := Classification{
				Label:       model.LabelAbstain,
				Confidence:  0.5,
				Reasoning:   reply.Reasoning,
				KeyEvidence: reply.KeyEvidence,
				FromJSON:    true,
			}
			if l, err := model.ParseLabel(reply.Classification); err == nil {
				c.Label = l
			}
			if reply.Confidence != nil {
				c.Confidence = clamp01(*reply.Confidence)
			}
			if c.Reasoning == "" {
				c.Reasoning = "Analysis completed"
			}
			return c
		}
	}

	upper := strings.ToUpper(text)
	label := model.LabelAbstain
	switch {
	case strings.Contains(upper, "FACT") && !strings.Contains(upper, "MYTH"):
		label = model.LabelFact
	case strings.Contains(upper, "SCAM"):
		label = model.LabelScam
	case strings.Contains(upper, "MYTH") || strings.Contains(upper, "FALSE"):
		label = model.LabelMyth
	}

	return Classification{
		Label:      label,
		Confidence: 0.7,
		Reasoning:  text,
	}
}

// ExplanationPrompt asks for a short justification of a verdict
func ExplanationPrompt(claims []string, verdict model.Label, sources []string) string {
	if len(sources) > maxExplainSources {
		sources = sources[:maxExplainSources]
	}
	return fmt.Sprintf("Explain why the following statement is a %s. These are the arguments: %s. Sources: %s. Provide a short detailed explanation under %d words. Reply with plain text only.",
		verdict, strings.Join(claims, ", "), strings.Join(sources, ", "), explanationWordCap)
}

// ClaimExtractionPrompt asks for up to max checkable claims as a JSON array
func ClaimExtractionPrompt(text string, max int) string {
	return fmt.Sprintf(`Extract at most %d distinct, self-contained factual claims from the text below. Each claim must be a single declarative sentence that can be checked against evidence. Ignore opinions, questions and greetings.

Respond with a JSON array of strings and nothing else.

TEXT:
"""
%s
"""`, max, text)
}

// TranslationPrompt asks for an English translation
func TranslationPrompt(text, sourceLang string) string {
	return fmt.Sprintf(`Translate the following text from %s to English. Preserve meaning, names and numbers. Respond with the translation only, without notes or quotes.

%s`, sourceLang, text)
}

// ParseStringList reads a JSON array of strings, falling back to one item per non-empty line
func ParseStringList(text string) []string {
	text = StripReasoning(text)
	text = stripCodeFence(text)

	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		var items []string
		if err := json.Unmarshal([]byte(text[start:end+1]), &items); err == nil {
			return nonEmpty(items)
		}
	}

	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = listMarker.ReplaceAllString(strings.TrimSpace(line), "")
		line = strings.TrimSpace(strings.Trim(line, `",`))
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)

// jsonObject returns the outermost {...} span of text
func jsonObject(text string) (string, bool) {
	text = stripCodeFence(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.Index(text, "\n"); nl >= 0 {
		text = text[nl+1:] // drop the language tag line
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
