package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/worker"
)

func TestBuild_DefaultConfigWithoutBackends(t *testing.T) {
	set, err := Build(context.Background(), model.DefaultConfig().Classifiers, Deps{})
	require.NoError(t, err)

	assert.Empty(t, set.Adapters)
	assert.Equal(t, "no LLM provider configured", set.Skipped["llm"])
	assert.Equal(t, "GOOGLE_FACTCHECK_API_KEY not set", set.Skipped["google-factcheck"])
	assert.Equal(t, "disabled", set.Skipped["nli"])
}

func TestBuild_ConstructsConfiguredClassifiers(t *testing.T) {
	limiter := worker.NewWindowLimiter(10, 0)
	configs := []model.ClassifierConfig{
		{Name: "llm", Kind: model.KindLLM, Enabled: true, Weight: 3, RateLimited: true},
		{Name: "google-factcheck", Kind: model.KindGoogleFactCheck, Enabled: true, Weight: 1, APIKey: "k"},
		{Name: "nli", Kind: model.KindNLI, Enabled: true, Weight: 2},
		{Name: "zero-shot", Kind: model.KindZeroShot, Enabled: true},
		{Name: "fake-news", Kind: model.KindFakeNews, Enabled: true},
		{Name: "tunbert", Kind: model.KindBinary, Enabled: true},
		{Name: "similarity", Kind: model.KindSimilarity, Enabled: true, APIKey: "sk-test"},
	}

	set, err := Build(context.Background(), configs, Deps{Provider: &fakeProvider{}, Limiter: limiter})
	require.NoError(t, err)
	require.Len(t, set.Adapters, 7)
	assert.Empty(t, set.Skipped)

	classifiers := set.Classifiers()
	require.Len(t, classifiers, 7)
	for i, cc := range configs {
		assert.Equal(t, cc.Name, classifiers[i].Name())
	}
	assert.Equal(t, 3, classifiers[0].Weight())
	assert.True(t, set.Adapters[0].Spec().RateLimited)
	assert.Equal(t, 1, classifiers[3].Weight())
}

func TestBuild_SimilarityNeedsEmbeddingsBackend(t *testing.T) {
	configs := []model.ClassifierConfig{
		{Name: "similarity", Kind: model.KindSimilarity, Enabled: true},
		{Name: "gemini-similarity", Kind: model.KindSimilarity, Enabled: true, Model: "gemini-embedding-001"},
	}

	set, err := Build(context.Background(), configs, Deps{Provider: &fakeProvider{}})
	require.NoError(t, err)
	assert.Empty(t, set.Adapters)
	assert.Len(t, set.Skipped, 2)
}

func TestBuild_UnknownKind(t *testing.T) {
	_, err := Build(context.Background(), []model.ClassifierConfig{{Name: "x", Kind: "oracle", Enabled: true}}, Deps{})
	assert.ErrorContains(t, err, `unknown classifier kind "oracle"`)
}
