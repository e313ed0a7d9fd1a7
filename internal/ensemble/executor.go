package ensemble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/metrics"
	"github.com/ppiankov/veritas/internal/model"
)

// Classifier is one opinion source of the ensemble.
// Classify must return a vote for every call; failures are ABSTAIN votes.
type Classifier interface {
	Name() string
	Weight() int
	Classify(ctx context.Context, claim model.Claim, evidence model.EvidenceSet) model.Vote
}

// Abstain reasons recorded in Vote.Error by the executor
const (
	ReasonTimeout = "timeout"
	ReasonPanic   = "panic"
)

const defaultMaxInFlight = 32

// Executor fans a claim out to every classifier concurrently
type Executor struct {
	timeout time.Duration
	slots   *semaphore.Weighted
	running sync.WaitGroup
	logger  *zap.Logger
}

// NewExecutor creates an executor. timeout bounds each classifier call,
// including the time spent waiting for a slot; maxInFlight caps running
// classifier calls across all Run calls, including ones left running after
// their deadline.
func NewExecutor(timeout time.Duration, maxInFlight int64, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}

	return &Executor{
		timeout: timeout,
		slots:   semaphore.NewWeighted(maxInFlight),
		logger:  logging.OrNop(logger),
	}
}

type indexedVote struct {
	index int
	vote  model.Vote
}

// Run returns exactly one vote per classifier, in classifier order.
// It returns no later than the classifier timeout (or ctx), whatever the
// classifiers do; stragglers are cancelled and left to finish on their own.
// A classifier that cannot get a slot before its deadline abstains with
// ReasonTimeout.
func (e *Executor) Run(ctx context.Context, claim model.Claim, evidence model.EvidenceSet, classifiers []Classifier) []model.Vote {
	votes := make([]model.Vote, len(classifiers))
	if len(classifiers) == 0 {
		return votes
	}

	// Buffered so detached goroutines never block on send
	results := make(chan indexedVote, len(classifiers))
	done := make([]bool, len(classifiers))
	pending := len(classifiers)

	for i, c := range classifiers {
		taskCtx, cancel := context.WithTimeout(ctx, e.timeout)
		e.running.Add(1)
		go func(i int, c Classifier) {
			defer e.running.Done()
			defer cancel()

			if err := e.slots.Acquire(taskCtx, 1); err != nil {
				e.logger.Warn("no executor slot before deadline",
					zap.String("classifier", c.Name()),
					zap.Error(err),
				)
				results <- indexedVote{index: i, vote: model.Abstain(c.Name(), c.Weight(), ReasonTimeout)}
				return
			}
			defer e.slots.Release(1)
			metrics.ExecutorInFlight.Inc()
			defer metrics.ExecutorInFlight.Dec()

			results <- indexedVote{index: i, vote: invoke(taskCtx, c, claim, evidence)}
		}(i, c)
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

collect:
	for pending > 0 {
		select {
		case r := <-results:
			votes[r.index] = r.vote
			done[r.index] = true
			pending--
		case <-timer.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	for i, c := range classifiers {
		if !done[i] {
			votes[i] = model.Abstain(c.Name(), c.Weight(), ReasonTimeout)
			votes[i].Latency = e.timeout
			e.logger.Warn("classifier timed out, detached",
				zap.String("classifier", c.Name()),
				zap.Duration("timeout", e.timeout),
			)
		}
		observe(votes[i])
	}

	return votes
}

// Wait blocks until every classifier goroutine, detached ones included, has finished
func (e *Executor) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		e.running.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for classifiers: %w", ctx.Err())
	}
}

// invoke calls one classifier, converting panics and malformed votes into ABSTAIN
func invoke(ctx context.Context, c Classifier, claim model.Claim, evidence model.EvidenceSet) (vote model.Vote) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			vote = model.Abstain(c.Name(), c.Weight(), fmt.Sprintf("%s: %v", ReasonPanic, r))
		}
		vote.Latency = time.Since(start)
	}()

	vote = c.Classify(ctx, claim, evidence)
	if vote.Source == "" {
		vote.Source = c.Name()
	}
	if vote.Weight <= 0 {
		vote.Weight = c.Weight()
	}
	if vote.Label != model.LabelAbstain && !vote.Label.IsDecisive() {
		return model.Abstain(c.Name(), c.Weight(), fmt.Sprintf("invalid label %q", vote.Label))
	}

	return vote
}

func observe(v model.Vote) {
	metrics.ObserveVote(v.Source, string(v.Label), v.Latency)
	if v.Label == model.LabelAbstain && v.Error != "" {
		metrics.ObserveFailure(v.Source, failureReason(v.Error))
	}
}

func failureReason(msg string) string {
	switch {
	case msg == ReasonTimeout:
		return ReasonTimeout
	case strings.HasPrefix(msg, ReasonPanic):
		return ReasonPanic
	default:
		return "error"
	}
}
