package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ensemble Prometheus metrics.
var (
	VotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veritas",
			Name:      "votes_total",
			Help:      "Classifier votes by label",
		},
		[]string{"classifier", "label"},
	)

	ClassifierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veritas",
			Name:      "classifier_duration_seconds",
			Help:      "Classifier invocation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"classifier"},
	)

	ClassifierFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veritas",
			Name:      "classifier_failures_total",
			Help:      "Classifier invocations that abstained because of a failure",
		},
		[]string{"classifier", "reason"}, // "timeout" / "panic" / "error"
	)

	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veritas",
			Name:      "verdicts_total",
			Help:      "Verdicts by scope and label",
		},
		[]string{"scope", "label"}, // scope: "claim" / "submission"
	)

	RateLimitWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "veritas",
			Name:      "ratelimit_wait_seconds",
			Help:      "Time spent waiting for the shared sliding-window limiter",
			Buckets:   []float64{0, 0.01, 0.1, 1, 5, 15, 30, 60},
		},
	)

	ExecutorInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "veritas",
			Name:      "executor_inflight",
			Help:      "Classifier goroutines currently holding an executor slot, detached ones included",
		},
	)
)

var registerOnce sync.Once

// Register registers the veritas metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(VotesTotal)
		prometheus.MustRegister(ClassifierDuration)
		prometheus.MustRegister(ClassifierFailuresTotal)
		prometheus.MustRegister(VerdictsTotal)
		prometheus.MustRegister(RateLimitWait)
		prometheus.MustRegister(ExecutorInFlight)
	})
}

// ObserveVote records one classifier vote
func ObserveVote(classifier, label string, latency time.Duration) {
	VotesTotal.WithLabelValues(classifier, label).Inc()
	ClassifierDuration.WithLabelValues(classifier).Observe(latency.Seconds())
}

// ObserveFailure records why a classifier abstained
func ObserveFailure(classifier, reason string) {
	ClassifierFailuresTotal.WithLabelValues(classifier, reason).Inc()
}

// ObserveVerdict records a claim or submission verdict
func ObserveVerdict(scope, label string) {
	VerdictsTotal.WithLabelValues(scope, label).Inc()
}

// ObserveRateLimitWait records a limiter wait
func ObserveRateLimitWait(d time.Duration) {
	RateLimitWait.Observe(d.Seconds())
}
