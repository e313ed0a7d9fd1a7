package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veritas/internal/ensemble"
	"github.com/ppiankov/veritas/internal/explain"
	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/metrics"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/search"
	"github.com/ppiankov/veritas/internal/textract"
	"github.com/ppiankov/veritas/internal/translate"
)

// EmptyInputMessage is the explanation of a submission with no text
const EmptyInputMessage = "No text could be extracted from the submission."

// OpinionWarning is attached when every candidate claim scored as opinion
const OpinionWarning = "no check-worthy claims found; the text reads as opinion"

// File is an attachment of a submission
type File struct {
	Name string
	Data []byte
}

// Request is one submission to verify
type Request struct {
	Prompt         string
	Files          []File
	SourceLanguage string // "", "en" and "auto" skip translation
}

// LinkedEvidence reads pages referenced by the submission
type LinkedEvidence interface {
	Evidence(ctx context.Context, text string) ([]model.Evidence, error)
}

// Options bound the work done per submission
type Options struct {
	MaxClaims        int
	EvidenceCount    int
	ClaimConcurrency int    // 1 = sequential
	ClaimHeuristic   string // recorded on extracted claims
}

// Deps are the pipeline's collaborators. Nil collaborators are skipped,
// except Executor and Aggregator which are required.
type Deps struct {
	Extractor      textract.Extractor
	Translator     translate.Translator
	ClaimExtractor extract.ClaimExtractor
	Searcher       search.Searcher
	Pages          LinkedEvidence
	Explainer      explain.Explainer
	Classifiers    []ensemble.Classifier
	Executor       *ensemble.Executor
	Aggregator     *ensemble.Aggregator
	Logger         *zap.Logger
}

// Pipeline verifies submissions
type Pipeline struct {
	opts Options
	deps Deps

	logger *zap.Logger
}

// New creates a pipeline
func New(opts Options, deps Deps) *Pipeline {
	if opts.MaxClaims <= 0 {
		opts.MaxClaims = 3
	}
	if opts.EvidenceCount < 0 {
		opts.EvidenceCount = 0
	}
	if opts.ClaimConcurrency <= 0 {
		opts.ClaimConcurrency = 1
	}
	if opts.ClaimHeuristic == "" {
		opts.ClaimHeuristic = model.HeuristicSentence
	}
	if deps.Executor == nil {
		deps.Executor = ensemble.NewExecutor(0, 0, deps.Logger)
	}
	if deps.Aggregator == nil {
		deps.Aggregator, _ = ensemble.NewAggregator(ensemble.DefaultPolicy())
	}

	return &Pipeline{
		opts:   opts,
		deps:   deps,
		logger: logging.OrNop(deps.Logger),
	}
}

// Classifiers returns the ensemble the pipeline votes with
func (p *Pipeline) Classifiers() []ensemble.Classifier {
	return p.deps.Classifiers
}

// VerifyPrompt verifies a bare prompt
func (p *Pipeline) VerifyPrompt(ctx context.Context, prompt string) *model.Result {
	return p.Verify(ctx, Request{Prompt: prompt})
}

// Wait blocks until classifier goroutines left running after their timeout have finished
func (p *Pipeline) Wait(ctx context.Context) error {
	return p.deps.Executor.Wait(ctx)
}

// Verify runs a submission through every stage and never fails outright:
// collaborator failures degrade to fallbacks recorded in Result.Warnings, and
// a panic ends the run in StageFailed.
func (p *Pipeline) Verify(ctx context.Context, req Request) (res *model.Result) {
	res = &model.Result{
		RequestID: uuid.NewString(),
		Verdict:   model.LabelUncertain,
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With(zap.String("request_id", res.RequestID))
	ctx = logging.WithContext(ctx, logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("verification panicked", zap.Any("panic", r), zap.Stack("stack"))
			res.Verdict = model.LabelUncertain
			res.Error = fmt.Sprintf("internal error: %v", r)
			res.Explanation = "Verification failed: " + res.Error
			res.Enter(model.StageFailed)
		}
		res.Duration = time.Since(res.StartedAt)
		metrics.ObserveVerdict("request", string(res.Verdict))
		logger.Info("verification finished",
			zap.String("verdict", string(res.Verdict)),
			zap.String("stage", string(res.Stage)),
			zap.Int("claims", len(res.Claims)),
			zap.Int("warnings", len(res.Warnings)),
			zap.Duration("duration", res.Duration),
		)
	}()

	res.Enter(model.StageReceived)
	logger.Info("verification started", zap.Int("files", len(req.Files)), zap.String("language", req.SourceLanguage))

	text := p.extractText(ctx, req, res)
	res.Enter(model.StageTextExtracted)
	if strings.TrimSpace(text) == "" {
		logger.Info("empty submission")
		res.Explanation = EmptyInputMessage
		res.Enter(model.StageDone)
		return res
	}

	original := text
	text = p.translate(ctx, text, req.SourceLanguage, res)
	res.Text = text
	res.Enter(model.StageTranslated)

	claims := p.extractClaims(ctx, text, res)
	res.Enter(model.StageClaimsExtracted)
	logger.Debug("claims extracted", zap.Int("count", len(claims)))

	linked := p.linkedEvidence(ctx, original, res)
	res.Claims = p.classifyClaims(ctx, claims, linked, res)
	res.Enter(model.StagePerClaimClassified)

	res.Verdict = p.deps.Aggregator.Reduce(res.Claims)
	res.Enter(model.StageReduced)

	res.Explanation = p.explain(ctx, res)
	res.Enter(model.StageExplained)

	res.Enter(model.StageDone)
	return res
}

// extractText joins the prompt with the text of every readable file
func (p *Pipeline) extractText(ctx context.Context, req Request, res *model.Result) string {
	var parts []string
	if s := strings.TrimSpace(req.Prompt); s != "" {
		parts = append(parts, s)
	}

	for _, f := range req.Files {
		if p.deps.Extractor == nil {
			res.Warn(fmt.Sprintf("file %s skipped: no text extractor", f.Name))
			continue
		}
		text, err := p.deps.Extractor.Extract(ctx, f.Name, f.Data)
		if err != nil {
			logging.FromContext(ctx).Warn("file skipped", zap.String("file", f.Name), zap.Error(err))
			res.Warn(fmt.Sprintf("file %s skipped: %v", f.Name, err))
			continue
		}
		if s := strings.TrimSpace(text); s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, "\n\n")
}

// translate falls back to the untranslated text on any failure
func (p *Pipeline) translate(ctx context.Context, text, lang string, res *model.Result) string {
	if !translate.Needed(lang) {
		return text
	}
	if p.deps.Translator == nil {
		res.Warn(fmt.Sprintf("translation from %q unavailable, analysing original text", lang))
		return text
	}

	out, err := p.deps.Translator.Translate(ctx, text, lang)
	if err == nil && translate.IsFailure(out) {
		err = translate.ErrTranslationFailed
	}
	if err != nil {
		logging.FromContext(ctx).Warn("translation failed", zap.String("language", lang), zap.Error(err))
		res.Warn(fmt.Sprintf("translation failed, analysing original text: %v", err))
		return text
	}
	return strings.TrimSpace(out)
}

// extractClaims falls back to the whole text as a single claim
func (p *Pipeline) extractClaims(ctx context.Context, text string, res *model.Result) []model.Claim {
	var (
		texts []string
		err   error
	)
	if p.deps.ClaimExtractor != nil {
		texts, err = p.deps.ClaimExtractor.ExtractClaims(ctx, text)
	}
	if errors.Is(err, extract.ErrNotCheckworthy) {
		logging.FromContext(ctx).Info("no check-worthy claims")
		res.Warn(OpinionWarning)
		return nil
	}
	if err != nil {
		logging.FromContext(ctx).Warn("claim extraction failed", zap.Error(err))
		res.Warn(fmt.Sprintf("claim extraction failed, using full text: %v", err))
	}

	var kept []string
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return model.NewClaims([]string{text}, model.HeuristicFallback)
	}

	if len(kept) > p.opts.MaxClaims {
		kept = kept[:p.opts.MaxClaims]
	}
	return model.NewClaims(kept, p.opts.ClaimHeuristic)
}

func (p *Pipeline) linkedEvidence(ctx context.Context, text string, res *model.Result) model.EvidenceSet {
	if p.deps.Pages == nil {
		return nil
	}
	evidence, err := p.deps.Pages.Evidence(ctx, text)
	if err != nil {
		res.Warn(fmt.Sprintf("linked pages: %v", err))
	}
	return evidence
}

type claimOutcome struct {
	verdict  model.ClaimVerdict
	warnings []string
	panicked any
}

// classifyClaims decides every claim, in claim order. Claims that start after
// ctx is done are skipped and stay UNCERTAIN.
func (p *Pipeline) classifyClaims(ctx context.Context, claims []model.Claim, linked model.EvidenceSet, res *model.Result) []model.ClaimVerdict {
	outcomes := make([]claimOutcome, len(claims))

	if p.opts.ClaimConcurrency <= 1 {
		for i, c := range claims {
			outcomes[i] = p.classifyClaim(ctx, c, linked)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.opts.ClaimConcurrency)
		for i, c := range claims {
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						outcomes[i].panicked = r
					}
				}()
				outcomes[i] = p.classifyClaim(ctx, c, linked)
				return nil
			})
		}
		_ = g.Wait()
	}

	verdicts := make([]model.ClaimVerdict, len(claims))
	skipped := 0
	for i, o := range outcomes {
		if o.panicked != nil {
			panic(o.panicked)
		}
		for _, w := range o.warnings {
			res.Warn(w)
		}
		if o.verdict.Skipped {
			skipped++
		}
		verdicts[i] = o.verdict
	}
	if skipped > 0 {
		res.Warn(fmt.Sprintf("%d claim(s) skipped: request deadline reached", skipped))
	}
	return verdicts
}

func (p *Pipeline) classifyClaim(ctx context.Context, claim model.Claim, linked model.EvidenceSet) claimOutcome {
	logger := logging.FromContext(ctx).With(zap.Int("claim", claim.Index))

	if ctx.Err() != nil {
		logger.Warn("claim skipped", zap.Error(ctx.Err()))
		return claimOutcome{verdict: model.ClaimVerdict{
			Claim:   claim,
			Label:   model.LabelUncertain,
			Skipped: true,
		}}
	}

	var out claimOutcome
	var evidence model.EvidenceSet
	if p.deps.Searcher != nil && p.opts.EvidenceCount > 0 {
		found, err := p.deps.Searcher.Search(ctx, claim.Text, p.opts.EvidenceCount)
		if err != nil {
			logger.Warn("evidence search failed", zap.Error(err))
			out.warnings = append(out.warnings, fmt.Sprintf("claim %d: evidence search failed: %v", claim.Index+1, err))
		}
		evidence = append(evidence, found...)
	}
	evidence = append(evidence, linked...)

	votes := p.deps.Executor.Run(ctx, claim, evidence, p.deps.Classifiers)
	out.verdict = p.deps.Aggregator.Aggregate(claim, votes)
	out.verdict.Evidence = evidence

	metrics.ObserveVerdict("claim", string(out.verdict.Label))
	logger.Info("claim classified",
		zap.String("label", string(out.verdict.Label)),
		zap.String("tally", ensemble.Summary(out.verdict.Tally)),
		zap.Int("evidence", len(evidence)),
	)
	return out
}

// explain never fails: without a usable model explanation the vote counts are described
func (p *Pipeline) explain(ctx context.Context, res *model.Result) string {
	fallback := explain.TemplateExplanation(res.Verdict, res.Claims)
	if p.deps.Explainer == nil || ctx.Err() != nil || len(res.Claims) == 0 {
		return fallback
	}

	claims := make([]string, len(res.Claims))
	for i, cv := range res.Claims {
		claims[i] = cv.Claim.Text
	}

	text, err := p.deps.Explainer.Explain(ctx, claims, res.Verdict, explain.FormatEvidence(res.Evidence()))
	if err != nil {
		logging.FromContext(ctx).Warn("explanation failed", zap.Error(err))
		res.Warn(fmt.Sprintf("explanation unavailable, using summary: %v", err))
		return fallback
	}
	return text
}
