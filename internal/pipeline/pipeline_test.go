package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/ensemble"
	"github.com/ppiankov/veritas/internal/explain"
	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/model"
)

// keywordClassifier votes by looking for a keyword per label in the claim
type keywordClassifier struct {
	name   string
	weight int
	calls  atomic.Int32

	mu       sync.Mutex
	evidence []model.EvidenceSet
}

func (c *keywordClassifier) Name() string { return c.name }
func (c *keywordClassifier) Weight() int  { return c.weight }

func (c *keywordClassifier) Classify(_ context.Context, claim model.Claim, evidence model.EvidenceSet) model.Vote {
	c.calls.Add(1)
	c.mu.Lock()
	c.evidence = append(c.evidence, evidence)
	c.mu.Unlock()

	text := strings.ToLower(claim.Text)
	switch {
	case strings.Contains(text, "scam"):
		return model.Vote{Source: c.name, Label: model.LabelScam, Weight: c.weight}
	case strings.Contains(text, "myth"):
		return model.Vote{Source: c.name, Label: model.LabelMyth, Weight: c.weight}
	case strings.Contains(text, "fact"):
		return model.Vote{Source: c.name, Label: model.LabelFact, Weight: c.weight}
	}
	return model.Abstain(c.name, c.weight, "no keyword")
}

type listExtractor struct {
	claims []string
	err    error
}

func (e listExtractor) ExtractClaims(context.Context, string) ([]string, error) {
	return e.claims, e.err
}

type stubSearcher struct {
	err   error
	calls atomic.Int32
}

func (s *stubSearcher) Search(_ context.Context, query string, n int) ([]model.Evidence, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []model.Evidence{{Text: "about " + query, URL: "https://example.org/" + query[:1], Origin: model.OriginSearch}}, nil
}

type stubPages struct{ evidence []model.Evidence }

func (p stubPages) Evidence(context.Context, string) ([]model.Evidence, error) {
	return p.evidence, nil
}

type stubTranslator struct {
	out string
	err error
}

func (t stubTranslator) Translate(context.Context, string, string) (string, error) {
	return t.out, t.err
}

type stubExplainer struct {
	text  string
	err   error
	calls atomic.Int32
	got   []string
}

func (e *stubExplainer) Explain(_ context.Context, claims []string, _ model.Label, evidence []string) (string, error) {
	e.calls.Add(1)
	e.got = evidence
	return e.text, e.err
}

type stubFiles map[string]string

func (f stubFiles) Extract(_ context.Context, name string, _ []byte) (string, error) {
	text, ok := f[name]
	if !ok {
		return "", errors.New("unsupported file format")
	}
	return text, nil
}

func newTestPipeline(opts Options, deps Deps, classifiers ...ensemble.Classifier) *Pipeline {
	deps.Classifiers = classifiers
	deps.Executor = ensemble.NewExecutor(time.Second, 16, nil)
	return New(opts, deps)
}

func stages(res *model.Result) []model.Stage {
	return res.Stages
}

func TestVerify_EmptyInputInvokesNothing(t *testing.T) {
	c := &keywordClassifier{name: "kw", weight: 1}
	searcher := &stubSearcher{}
	explainer := &stubExplainer{text: "never"}
	p := newTestPipeline(Options{}, Deps{Searcher: searcher, Explainer: explainer}, c)

	res := p.Verify(context.Background(), Request{Prompt: "  \n\t "})

	assert.Equal(t, model.LabelUncertain, res.Verdict)
	assert.Equal(t, EmptyInputMessage, res.Explanation)
	assert.Equal(t, model.StageDone, res.Stage)
	assert.Equal(t, []model.Stage{model.StageReceived, model.StageTextExtracted, model.StageDone}, stages(res))
	assert.Empty(t, res.Claims)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.RequestID)

	assert.Zero(t, c.calls.Load())
	assert.Zero(t, searcher.calls.Load())
	assert.Zero(t, explainer.calls.Load())
}

func TestVerify_FullRun(t *testing.T) {
	heavy := &keywordClassifier{name: "llm", weight: 3}
	light := &keywordClassifier{name: "nli", weight: 1}
	searcher := &stubSearcher{}
	explainer := &stubExplainer{text: "Mostly established facts."}
	pages := stubPages{evidence: []model.Evidence{{Text: "linked page text", URL: "https://linked.example/a", Origin: model.OriginLinkedPage}}}

	p := newTestPipeline(Options{EvidenceCount: 5}, Deps{
		ClaimExtractor: listExtractor{claims: []string{"fact one", "  ", "fact two", "a myth"}},
		Searcher:       searcher,
		Pages:          pages,
		Explainer:      explainer,
	}, heavy, light)

	res := p.Verify(context.Background(), Request{Prompt: "fact one. fact two. a myth. https://linked.example/a"})

	assert.Equal(t, []model.Stage{
		model.StageReceived, model.StageTextExtracted, model.StageTranslated, model.StageClaimsExtracted,
		model.StagePerClaimClassified, model.StageReduced, model.StageExplained, model.StageDone,
	}, stages(res))
	assert.Empty(t, res.Warnings)

	require.Len(t, res.Claims, 3)
	assert.Equal(t, "fact one", res.Claims[0].Claim.Text)
	assert.Equal(t, 0, res.Claims[0].Claim.Index)
	assert.Equal(t, "fact two", res.Claims[1].Claim.Text)
	assert.Equal(t, 1, res.Claims[1].Claim.Index)
	assert.Equal(t, model.HeuristicSentence, res.Claims[0].Claim.Heuristic)

	// [FACT, FACT, MYTH] reduces to FACT
	assert.Equal(t, model.LabelFact, res.Claims[0].Label)
	assert.Equal(t, model.LabelMyth, res.Claims[2].Label)
	assert.Equal(t, model.LabelFact, res.Verdict)
	assert.Equal(t, model.Tally{Fact: 4}, res.Claims[0].Tally)
	assert.InDelta(t, 1.0, res.Claims[0].Confidence, 1e-9)
	assert.Len(t, res.Claims[0].Votes, 2)

	// Search evidence plus the linked page, for every claim
	require.Len(t, res.Claims[0].Evidence, 2)
	assert.Equal(t, model.OriginSearch, res.Claims[0].Evidence[0].Origin)
	assert.Equal(t, model.OriginLinkedPage, res.Claims[0].Evidence[1].Origin)
	assert.Equal(t, int32(3), searcher.calls.Load())
	assert.Equal(t, int32(3), heavy.calls.Load())

	assert.Equal(t, "Mostly established facts.", res.Explanation)
	assert.Contains(t, explainer.got, "linked page text (https://linked.example/a)")
	assert.Equal(t, "fact one. fact two. a myth. https://linked.example/a", res.Text)
}

func TestVerify_CapsClaims(t *testing.T) {
	c := &keywordClassifier{name: "kw", weight: 1}
	p := newTestPipeline(Options{MaxClaims: 2}, Deps{
		ClaimExtractor: listExtractor{claims: []string{"fact a", "fact b", "fact c", "fact d"}},
	}, c)

	res := p.Verify(context.Background(), Request{Prompt: "text"})
	assert.Len(t, res.Claims, 2)
	assert.Equal(t, int32(2), c.calls.Load())
}

func TestVerify_ClaimExtractionFallback(t *testing.T) {
	tests := []struct {
		name      string
		extractor listExtractor
		warns     bool
	}{
		{name: "error", extractor: listExtractor{err: errors.New("model offline")}, warns: true},
		{name: "empty", extractor: listExtractor{}},
		{name: "blank claims", extractor: listExtractor{claims: []string{" ", ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(Options{}, Deps{ClaimExtractor: tt.extractor}, &keywordClassifier{name: "kw", weight: 1})

			res := p.Verify(context.Background(), Request{Prompt: "The earth is flat, a myth."})
			require.Len(t, res.Claims, 1)
			assert.Equal(t, "The earth is flat, a myth.", res.Claims[0].Claim.Text)
			assert.Equal(t, model.HeuristicFallback, res.Claims[0].Claim.Heuristic)
			assert.Equal(t, model.LabelMyth, res.Verdict)
			assert.Equal(t, tt.warns, len(res.Warnings) > 0, "warnings: %v", res.Warnings)
		})
	}
}

func TestVerify_OpinionOnlyIsUncertain(t *testing.T) {
	c := &keywordClassifier{name: "kw", weight: 1}
	explainer := &stubExplainer{text: "should not be used"}
	p := newTestPipeline(Options{}, Deps{
		ClaimExtractor: listExtractor{err: fmt.Errorf("scoring: %w", extract.ErrNotCheckworthy)},
		Explainer:      explainer,
	}, c)

	res := p.Verify(context.Background(), Request{Prompt: "I think rainy days are the best kind of days."})

	assert.Empty(t, res.Claims)
	assert.Equal(t, model.LabelUncertain, res.Verdict)
	assert.Equal(t, model.StageDone, res.Stage)
	assert.Equal(t, []string{OpinionWarning}, res.Warnings)
	assert.Equal(t, explain.TemplateExplanation(model.LabelUncertain, nil), res.Explanation)
	assert.Zero(t, c.calls.Load())
	assert.Zero(t, explainer.calls.Load())
}

func TestVerify_Translation(t *testing.T) {
	c := &keywordClassifier{name: "kw", weight: 1}

	t.Run("translated", func(t *testing.T) {
		p := newTestPipeline(Options{}, Deps{Translator: stubTranslator{out: " this is a fact "}}, c)
		res := p.Verify(context.Background(), Request{Prompt: "c'est un fait", SourceLanguage: "fr"})
		assert.Equal(t, "this is a fact", res.Text)
		assert.Equal(t, model.LabelFact, res.Verdict)
		assert.Empty(t, res.Warnings)
	})

	t.Run("english skips translator", func(t *testing.T) {
		p := newTestPipeline(Options{}, Deps{Translator: stubTranslator{err: errors.New("must not be called")}}, c)
		res := p.Verify(context.Background(), Request{Prompt: "a fact", SourceLanguage: "en"})
		assert.Empty(t, res.Warnings)
	})

	failures := map[string]stubTranslator{
		"error":        {err: errors.New("quota")},
		"error prefix": {out: "Error: unsupported language"},
		"empty":        {out: "   "},
	}
	for name, tr := range failures {
		t.Run(name, func(t *testing.T) {
			p := newTestPipeline(Options{}, Deps{Translator: tr}, c)
			res := p.Verify(context.Background(), Request{Prompt: "une myth", SourceLanguage: "tunisian_ar"})
			assert.Equal(t, "une myth", res.Text)
			assert.Equal(t, model.LabelMyth, res.Verdict)
			require.Len(t, res.Warnings, 1)
			assert.Contains(t, res.Warnings[0], "translation failed")
			assert.Contains(t, res.Stages, model.StageTranslated)
		})
	}
}

func TestVerify_Files(t *testing.T) {
	p := newTestPipeline(Options{}, Deps{
		Extractor:      stubFiles{"notes.txt": "a fact from a file"},
		ClaimExtractor: listExtractor{},
	}, &keywordClassifier{name: "kw", weight: 1})

	res := p.Verify(context.Background(), Request{
		Prompt: "prompt text",
		Files: []File{
			{Name: "notes.txt", Data: []byte("ignored by stub")},
			{Name: "archive.zip", Data: []byte("PK")},
		},
	})

	assert.Equal(t, "prompt text\n\na fact from a file", res.Text)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "archive.zip")
	assert.Equal(t, model.LabelFact, res.Verdict)
}

func TestVerify_FilesOnlyUnreadable(t *testing.T) {
	c := &keywordClassifier{name: "kw", weight: 1}
	p := newTestPipeline(Options{}, Deps{Extractor: stubFiles{}}, c)

	res := p.Verify(context.Background(), Request{Files: []File{{Name: "photo.heic"}}})

	assert.Equal(t, EmptyInputMessage, res.Explanation)
	assert.Equal(t, model.LabelUncertain, res.Verdict)
	assert.Len(t, res.Warnings, 1)
	assert.Zero(t, c.calls.Load())
}

func TestVerify_SearchFailureDegrades(t *testing.T) {
	c := &keywordClassifier{name: "kw", weight: 1}
	p := newTestPipeline(Options{EvidenceCount: 3}, Deps{
		ClaimExtractor: listExtractor{claims: []string{"a scam offer"}},
		Searcher:       &stubSearcher{err: errors.New("search down")},
	}, c)

	res := p.Verify(context.Background(), Request{Prompt: "a scam offer"})

	assert.Equal(t, model.LabelScam, res.Verdict)
	require.Len(t, res.Claims, 1)
	assert.Empty(t, res.Claims[0].Evidence)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "search down")
}

func TestVerify_ExplainerFailureUsesTemplate(t *testing.T) {
	explainer := &stubExplainer{err: errors.New("citation leak")}
	p := newTestPipeline(Options{}, Deps{
		ClaimExtractor: listExtractor{claims: []string{"fact x"}},
		Explainer:      explainer,
	}, &keywordClassifier{name: "kw", weight: 2})

	res := p.Verify(context.Background(), Request{Prompt: "fact x"})

	assert.Equal(t, int32(1), explainer.calls.Load())
	assert.True(t, strings.HasPrefix(res.Explanation, "The submission was judged FACT."), res.Explanation)
	assert.Equal(t, model.StageDone, res.Stage)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "explanation unavailable")
}

func TestVerify_AllAbstainIsUncertain(t *testing.T) {
	p := newTestPipeline(Options{}, Deps{
		ClaimExtractor: listExtractor{claims: []string{"nothing decisive here"}},
	}, &keywordClassifier{name: "a", weight: 1}, &keywordClassifier{name: "b", weight: 3})

	res := p.Verify(context.Background(), Request{Prompt: "nothing decisive here"})

	assert.Equal(t, model.LabelUncertain, res.Verdict)
	require.Len(t, res.Claims, 1)
	assert.Equal(t, model.LabelUncertain, res.Claims[0].Label)
	assert.Zero(t, res.Claims[0].Confidence)
	assert.Equal(t, model.StageDone, res.Stage)
}

func TestVerify_NoClassifiers(t *testing.T) {
	p := newTestPipeline(Options{}, Deps{})
	res := p.Verify(context.Background(), Request{Prompt: "a fact"})

	assert.Equal(t, model.LabelUncertain, res.Verdict)
	require.Len(t, res.Claims, 1)
	assert.Empty(t, res.Claims[0].Votes)
}

func TestVerify_CancelledRequestSkipsClaims(t *testing.T) {
	c := &keywordClassifier{name: "kw", weight: 1}
	explainer := &stubExplainer{text: "never"}
	p := newTestPipeline(Options{}, Deps{
		ClaimExtractor: listExtractor{claims: []string{"fact 1", "fact 2"}},
		Explainer:      explainer,
	}, c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.Verify(ctx, Request{Prompt: "fact 1. fact 2."})

	require.Len(t, res.Claims, 2)
	for _, cv := range res.Claims {
		assert.True(t, cv.Skipped)
		assert.Equal(t, model.LabelUncertain, cv.Label)
	}
	assert.Equal(t, model.LabelUncertain, res.Verdict)
	assert.Zero(t, c.calls.Load())
	assert.Zero(t, explainer.calls.Load())
	assert.NotEmpty(t, res.Explanation)
	assert.Equal(t, model.StageDone, res.Stage)
}

func TestVerify_ConcurrentClaimsKeepOrder(t *testing.T) {
	claims := []string{"fact 0", "a myth 1", "scam 2", "fact 3", "a myth 4", "fact 5"}
	c := &keywordClassifier{name: "kw", weight: 1}
	p := newTestPipeline(Options{MaxClaims: 10, ClaimConcurrency: 3}, Deps{
		ClaimExtractor: listExtractor{claims: claims},
	}, c)

	res := p.Verify(context.Background(), Request{Prompt: "many claims"})

	require.Len(t, res.Claims, len(claims))
	want := []model.Label{model.LabelFact, model.LabelMyth, model.LabelScam, model.LabelFact, model.LabelMyth, model.LabelFact}
	for i, cv := range res.Claims {
		assert.Equal(t, claims[i], cv.Claim.Text)
		assert.Equal(t, want[i], cv.Label, "claim %d", i)
	}
	assert.Equal(t, model.LabelFact, res.Verdict)
}

type panickingExtractor struct{}

func (panickingExtractor) ExtractClaims(context.Context, string) ([]string, error) {
	panic("extractor exploded")
}

func TestVerify_PanicBecomesFailedResult(t *testing.T) {
	p := newTestPipeline(Options{}, Deps{ClaimExtractor: panickingExtractor{}}, &keywordClassifier{name: "kw", weight: 1})

	res := p.Verify(context.Background(), Request{Prompt: "anything"})

	assert.Equal(t, model.StageFailed, res.Stage)
	assert.Equal(t, model.LabelUncertain, res.Verdict)
	assert.Contains(t, res.Error, "extractor exploded")
}

func TestVerifyPrompt(t *testing.T) {
	p := newTestPipeline(Options{}, Deps{}, &keywordClassifier{name: "kw", weight: 1})
	res := p.VerifyPrompt(context.Background(), "a plain fact")
	assert.Equal(t, model.LabelFact, res.Verdict)
	assert.NoError(t, p.Wait(context.Background()))
}
