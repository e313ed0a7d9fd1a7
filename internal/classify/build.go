package classify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/ensemble"
	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/worker"
)

// Deps are the shared clients classifiers are built from
type Deps struct {
	Provider   llm.Provider          // nil disables LLM-backed classifiers
	Limiter    *worker.WindowLimiter // shared with the explainer
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Set is the built ensemble
type Set struct {
	Adapters []*Adapter
	Skipped  map[string]string // classifier name -> why it was not built
}

// Classifiers returns the adapters as ensemble classifiers, in configuration order
func (s Set) Classifiers() []ensemble.Classifier {
	out := make([]ensemble.Classifier, len(s.Adapters))
	for i, a := range s.Adapters {
		out[i] = a
	}
	return out
}

// Build constructs an adapter for every enabled classifier whose backing is
// configured. Classifiers that cannot be built are recorded in Skipped.
func Build(ctx context.Context, configs []model.ClassifierConfig, deps Deps) (Set, error) {
	logger := logging.OrNop(deps.Logger)
	set := Set{Skipped: make(map[string]string)}

	for _, cc := range configs {
		if !cc.Enabled {
			set.Skipped[cc.Name] = "disabled"
			continue
		}

		m, err := newModel(ctx, cc, deps)
		if err != nil {
			return Set{}, fmt.Errorf("classifier %q: %w", cc.Name, err)
		}
		if m == nil {
			reason := unavailableReason(cc)
			set.Skipped[cc.Name] = reason
			logger.Info("classifier not configured, skipping", zap.String("classifier", cc.Name), zap.String("reason", reason))
			continue
		}

		spec := Spec{Name: cc.Name, Weight: cc.Weight, RateLimited: cc.RateLimited}
		set.Adapters = append(set.Adapters, NewAdapter(spec, m, deps.Limiter, logger))
	}

	return set, nil
}

// newModel returns (nil, nil) when the classifier's backing is not configured
func newModel(ctx context.Context, cc model.ClassifierConfig, deps Deps) (Model, error) {
	switch cc.Kind {
	case model.KindLLM:
		if deps.Provider == nil {
			return nil, nil
		}
		return NewLLMModel(deps.Provider, cc.Model), nil

	case model.KindGoogleFactCheck:
		if cc.APIKey == "" {
			return nil, nil
		}
		return NewFactCheckModel(cc.Endpoint, cc.APIKey, deps.HTTPClient), nil

	case model.KindNLI:
		return NewNLIModel(NewInferenceClient(cc.Endpoint, cc.APIKey, deps.HTTPClient), cc.Model), nil

	case model.KindZeroShot:
		return NewZeroShotModel(NewInferenceClient(cc.Endpoint, cc.APIKey, deps.HTTPClient), cc.Model), nil

	case model.KindFakeNews:
		return NewFakeNewsModel(NewInferenceClient(cc.Endpoint, cc.APIKey, deps.HTTPClient), cc.Model), nil

	case model.KindBinary:
		return NewBinaryModel(NewInferenceClient(cc.Endpoint, cc.APIKey, deps.HTTPClient), cc.Model), nil

	case model.KindSimilarity:
		embedder, err := newEmbedder(ctx, cc, deps)
		if err != nil || embedder == nil {
			return nil, err
		}
		return NewSimilarityModel(embedder), nil

	default:
		return nil, fmt.Errorf("unknown classifier kind %q", cc.Kind)
	}
}

// newEmbedder picks Gemini for gemini-* models, otherwise an OpenAI-compatible API.
// Without its own key the similarity classifier reuses an OpenAI LLM provider's client.
func newEmbedder(ctx context.Context, cc model.ClassifierConfig, deps Deps) (Embedder, error) {
	if strings.HasPrefix(cc.Model, "gemini") {
		if cc.APIKey == "" {
			return nil, nil
		}
		return NewGeminiEmbedder(ctx, cc.APIKey, cc.Model)
	}

	if cc.APIKey != "" {
		p, err := llm.NewOpenAIProvider(llm.Config{APIKey: cc.APIKey, BaseURL: cc.Endpoint})
		if err != nil {
			return nil, err
		}
		return NewOpenAIEmbedder(p.Client(), cc.Model), nil
	}

	if p, ok := deps.Provider.(*llm.OpenAIProvider); ok && p.Name() == "openai" {
		return NewOpenAIEmbedder(p.Client(), cc.Model), nil
	}
	return nil, nil
}

func unavailableReason(cc model.ClassifierConfig) string {
	switch cc.Kind {
	case model.KindLLM:
		return "no LLM provider configured"
	case model.KindGoogleFactCheck:
		return "GOOGLE_FACTCHECK_API_KEY not set"
	case model.KindSimilarity:
		return "no embeddings API key (set classifiers[].api_key or use the openai provider)"
	}
	return "not configured"
}
