package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/worker"
)

var (
	// ErrNoEvidence is returned by models that cannot judge a claim without evidence
	ErrNoEvidence = errors.New("no evidence")

	// ErrNoVerdict is returned when a model has no opinion (unknown rating, empty reply)
	ErrNoVerdict = errors.New("no verdict")
)

// Opinion is a model's raw judgement of a claim
type Opinion struct {
	Label      model.Label // FACT, MYTH, SCAM; anything else abstains
	Confidence float64     // 0..1, diagnostic only
	Reason     string
}

// Model is a black-box classifier over a claim and its evidence texts
type Model interface {
	Name() string
	Predict(ctx context.Context, claim string, evidence []string) (Opinion, error)
}

// readiness is implemented by models that can check their backend
type readiness interface {
	Ready(ctx context.Context) error
}

// Spec is the ensemble configuration of one classifier
type Spec struct {
	Name        string
	Weight      int
	RateLimited bool
}

// Adapter turns a Model into an ensemble classifier that always yields a vote
type Adapter struct {
	spec    Spec
	model   Model
	limiter *worker.WindowLimiter
	logger  *zap.Logger
}

// NewAdapter wraps a model. limiter is consulted only when spec.RateLimited is set.
func NewAdapter(spec Spec, m Model, limiter *worker.WindowLimiter, logger *zap.Logger) *Adapter {
	if spec.Name == "" {
		spec.Name = m.Name()
	}
	if spec.Weight <= 0 {
		spec.Weight = 1
	}

	return &Adapter{
		spec:    spec,
		model:   m,
		limiter: limiter,
		logger:  logging.OrNop(logger).With(zap.String("classifier", spec.Name)),
	}
}

// Name returns the classifier name
func (a *Adapter) Name() string {
	return a.spec.Name
}

// Weight returns the classifier's vote weight
func (a *Adapter) Weight() int {
	return a.spec.Weight
}

// Spec returns the classifier configuration
func (a *Adapter) Spec() Spec {
	return a.spec
}

// Check asks the model backend whether it is ready. Models without a readiness check are assumed ready.
func (a *Adapter) Check(ctx context.Context) error {
	r, ok := a.model.(readiness)
	if !ok {
		return nil
	}
	return r.Ready(ctx)
}

// Classify runs the model and normalizes the outcome into a vote.
// Errors, panics and non-committal opinions become ABSTAIN.
func (a *Adapter) Classify(ctx context.Context, claim model.Claim, evidence model.EvidenceSet) (vote model.Vote) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("classifier panicked", zap.Any("panic", r))
			vote = model.Abstain(a.spec.Name, a.spec.Weight, fmt.Sprintf("panic: %v", r))
		}
	}()

	if a.spec.RateLimited && a.limiter != nil {
		if err := a.limiter.AcquireContext(ctx); err != nil {
			return a.abstain(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	op, err := a.model.Predict(ctx, claim.Text, evidence.Texts())
	if err != nil {
		return a.abstain(err)
	}

	if !op.Label.IsDecisive() {
		a.logger.Debug("classifier abstained", zap.String("label", string(op.Label)))
		return model.Vote{
			Source: a.spec.Name,
			Label:  model.LabelAbstain,
			Weight: a.spec.Weight,
			Reason: op.Reason,
		}
	}

	return model.Vote{
		Source:     a.spec.Name,
		Label:      op.Label,
		Weight:     a.spec.Weight,
		Confidence: clamp01(op.Confidence),
		Reason:     truncateReason(op.Reason),
	}
}

func (a *Adapter) abstain(err error) model.Vote {
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "timeout"
	case errors.Is(err, ErrNoEvidence), errors.Is(err, ErrNoVerdict):
		a.logger.Debug("classifier abstained", zap.Error(err))
	default:
		a.logger.Warn("classifier failed", zap.Error(err))
	}
	return model.Abstain(a.spec.Name, a.spec.Weight, msg)
}

const maxReasonLen = 500

func truncateReason(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxReasonLen {
		return s
	}
	return string(r[:maxReasonLen]) + "..."
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
