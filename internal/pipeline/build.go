package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/classify"
	"github.com/ppiankov/veritas/internal/ensemble"
	"github.com/ppiankov/veritas/internal/explain"
	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/fetch"
	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/metrics"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/search"
	"github.com/ppiankov/veritas/internal/textract"
	"github.com/ppiankov/veritas/internal/translate"
	"github.com/ppiankov/veritas/internal/util"
	"github.com/ppiankov/veritas/internal/worker"
)

// Built is a pipeline assembled from configuration, with what was left out
type Built struct {
	Pipeline *Pipeline
	Ensemble classify.Set
	Provider llm.Provider // nil when no LLM is configured
}

// NewFromConfig wires every collaborator described by cfg. Clients are
// created once here and shared by all requests.
func NewFromConfig(ctx context.Context, cfg *model.Config, logger *zap.Logger) (*Built, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger = logging.OrNop(logger)

	provider, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM, cfg.HTTP, logger))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	limiter := worker.NewWindowLimiter(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window)
	limiter.OnWait = metrics.ObserveRateLimitWait

	httpClient := util.NewHTTPClient(cfg.Search.Timeout, cfg.HTTP)

	set, err := classify.Build(ctx, cfg.Classifiers, classify.Deps{
		Provider:   provider,
		Limiter:    limiter,
		HTTPClient: util.NewHTTPClient(cfg.Pipeline.AdapterTimeout, cfg.HTTP),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	if len(set.Adapters) == 0 {
		logger.Warn("no classifiers available, every claim will be UNCERTAIN")
	}

	policy, err := ensemble.NewPolicy(cfg.Pipeline.TieBreak)
	if err != nil {
		return nil, err
	}
	aggregator, err := ensemble.NewAggregator(policy)
	if err != nil {
		return nil, err
	}

	store := cache.New(cfg.Cache)
	hosts := worker.NewHostLimiter(cfg.Search.RequestsPerSecond, cfg.Search.Burst)
	authority := search.NewAuthorityClassifier(&cfg.Authority)

	deps := Deps{
		Extractor:   textract.NewFileExtractor(textract.NewConverter(cfg.Converter.Endpoint, util.NewHTTPClient(cfg.Converter.Timeout, cfg.HTTP))),
		Classifiers: set.Classifiers(),
		Executor:    ensemble.NewExecutor(cfg.Pipeline.AdapterTimeout, int64(cfg.Pipeline.MaxInFlight), logger),
		Aggregator:  aggregator,
		Logger:      logger,
	}

	claimExtractors := extract.Chain{extract.NewSentenceExtractor(cfg.Pipeline.MaxClaims)}
	heuristic := model.HeuristicSentence
	if provider != nil {
		if cfg.Translate.Enabled {
			deps.Translator = translate.NewLLMTranslator(provider, limiter)
		}
		if cfg.LLM.Explain {
			deps.Explainer = explain.NewLLMExplainer(provider, limiter, logger)
		}
		if strings.EqualFold(cfg.Pipeline.ClaimExtractor, "llm") {
			claimExtractors = append(extract.Chain{extract.NewLLMExtractor(provider, limiter, cfg.Pipeline.MaxClaims)}, claimExtractors...)
			heuristic = model.HeuristicLLM
		}
	}
	deps.ClaimExtractor = claimExtractors
	if cfg.Checkworthy.Enabled {
		// Score a wider pool of sentences so that opinions can be dropped
		pool := extract.Chain{extract.NewSentenceExtractor(cfg.Pipeline.MaxClaims * 3)}
		if heuristic == model.HeuristicLLM {
			pool = append(extract.Chain{claimExtractors[0]}, pool...)
		}
		scorer := classify.NewClaimBusterScorer(
			classify.NewInferenceClient(cfg.Checkworthy.Endpoint, cfg.Checkworthy.APIKey, util.NewHTTPClient(cfg.Pipeline.AdapterTimeout, cfg.HTTP)),
			cfg.Checkworthy.Model,
		)
		deps.ClaimExtractor = extract.NewCheckworthy(pool, scorer, cfg.Checkworthy.Threshold, cfg.Pipeline.MaxClaims, logger)
	}

	if cfg.Search.Enabled {
		ddg := search.NewDuckDuckGo(cfg.Search, httpClient, hosts, authority, logger)
		deps.Searcher = search.NewCached(ddg, store, cfg.Cache.MemoryTTL, logger)
	}

	if cfg.Fetch.Enabled {
		readerDeps := fetch.ReaderDeps{
			Limiter:   hosts,
			Authority: authority,
			Cache:     store,
			Logger:    logger,
		}
		if cfg.Fetch.RespectRobots {
			readerDeps.Robots = util.NewRobotsChecker(cfg.Fetch.UserAgent, util.NewHTTPClient(cfg.Fetch.Timeout, cfg.HTTP), logger)
		}
		fetcher := fetch.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, cfg.Fetch.MaxBodyBytes, cfg.HTTP)
		deps.Pages = fetch.NewPageReader(cfg.Fetch, fetcher, readerDeps)
	}

	p := New(Options{
		MaxClaims:        cfg.Pipeline.MaxClaims,
		EvidenceCount:    cfg.Pipeline.EvidenceCount,
		ClaimConcurrency: cfg.Pipeline.ClaimConcurrency,
		ClaimHeuristic:   heuristic,
	}, deps)

	return &Built{Pipeline: p, Ensemble: set, Provider: provider}, nil
}
