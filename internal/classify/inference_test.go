package classify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
)

type inferenceCall struct {
	Path       string
	Auth       string
	Inputs     json.RawMessage
	Parameters map[string]any
}

// inferenceServer records calls and answers each with respond(call)
func inferenceServer(t *testing.T, respond func(c inferenceCall) string) (*httptest.Server, *[]inferenceCall) {
	t.Helper()
	var calls []inferenceCall

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Inputs     json.RawMessage `json:"inputs"`
			Parameters map[string]any  `json:"parameters"`
		}
		_ = json.Unmarshal(body, &req)

		c := inferenceCall{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Inputs: req.Inputs, Parameters: req.Parameters}
		calls = append(calls, c)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(c)))
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func TestInferenceClient_TextClassificationShapes(t *testing.T) {
	for _, body := range []string{
		`[[{"label":"REAL","score":0.9},{"label":"FAKE","score":0.1}]]`,
		`[{"label":"REAL","score":0.9},{"label":"FAKE","score":0.1}]`,
	} {
		server, calls := inferenceServer(t, func(inferenceCall) string { return body })
		c := NewInferenceClient(server.URL+"/", "hf_token", server.Client())

		scores, err := c.TextClassification(context.Background(), "org/detector", "text")
		require.NoError(t, err)
		require.Len(t, scores, 2)
		assert.Equal(t, "REAL", scores[0].Label)

		require.Len(t, *calls, 1)
		assert.Equal(t, "/org/detector", (*calls)[0].Path)
		assert.Equal(t, "Bearer hf_token", (*calls)[0].Auth)
		assert.EqualValues(t, 10, (*calls)[0].Parameters["top_k"])
	}
}

func TestInferenceClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Model is currently loading"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewInferenceClient(server.URL, "", server.Client())
	_, err := c.TextClassification(context.Background(), "m", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")

	assert.Error(t, c.Ready(context.Background(), "m"))
}

func TestInferenceClient_ZeroShotShapes(t *testing.T) {
	for _, body := range []string{
		`{"sequence":"s","labels":["MYTH","FACT","SCAM"],"scores":[0.5,0.3,0.2]}`,
		`[{"sequence":"s","labels":["MYTH","FACT","SCAM"],"scores":[0.5,0.3,0.2]}]`,
	} {
		server, _ := inferenceServer(t, func(inferenceCall) string { return body })
		res, err := NewInferenceClient(server.URL, "", server.Client()).ZeroShot(context.Background(), "m", "s", []string{"FACT", "MYTH", "SCAM"})
		require.NoError(t, err)
		assert.Equal(t, "MYTH", res.Labels[0])
	}
}

func TestNLIModel_ContradictionBoost(t *testing.T) {
	// Neutral leads, but boosted contradiction (0.3 * 2.5) overtakes it
	server, calls := inferenceServer(t, func(inferenceCall) string {
		return `[[{"label":"NEUTRAL","score":0.5},{"label":"CONTRADICTION","score":0.3},{"label":"ENTAILMENT","score":0.2}]]`
	})
	m := NewNLIModel(NewInferenceClient(server.URL, "", server.Client()), "")

	op, err := m.Predict(context.Background(), "the moon is cheese", []string{"the moon is rock", "apollo samples"})
	require.NoError(t, err)

	assert.Equal(t, model.LabelScam, op.Label)
	assert.InDelta(t, 0.75/(0.2+0.5+0.75), op.Confidence, 1e-9)

	require.Len(t, *calls, 2)
	assert.Equal(t, "/roberta-large-mnli", (*calls)[0].Path)

	var pair nliPair
	require.NoError(t, json.Unmarshal((*calls)[0].Inputs, &pair))
	assert.Equal(t, "the moon is rock", pair.Text)
	assert.Equal(t, "the moon is cheese", pair.TextPair)
}

func TestNLIModel_RawLabelNames(t *testing.T) {
	server, _ := inferenceServer(t, func(inferenceCall) string {
		return `[{"label":"LABEL_2","score":0.8},{"label":"LABEL_1","score":0.15},{"label":"LABEL_0","score":0.05}]`
	})
	m := NewNLIModel(NewInferenceClient(server.URL, "", server.Client()), "")

	op, err := m.Predict(context.Background(), "c", []string{"e"})
	require.NoError(t, err)
	assert.Equal(t, model.LabelFact, op.Label)
}

func TestNLIModel_NoEvidence(t *testing.T) {
	m := NewNLIModel(NewInferenceClient("http://127.0.0.1:0", "", nil), "")
	_, err := m.Predict(context.Background(), "c", nil)
	assert.ErrorIs(t, err, ErrNoEvidence)
}

func TestNLIModel_UnknownLabels(t *testing.T) {
	server, _ := inferenceServer(t, func(inferenceCall) string {
		return `[{"label":"POSITIVE","score":0.9}]`
	})
	m := NewNLIModel(NewInferenceClient(server.URL, "", server.Client()), "")

	_, err := m.Predict(context.Background(), "c", []string{"e"})
	assert.ErrorIs(t, err, ErrNoVerdict)
}

func TestZeroShotModel_MajorityOverSnippets(t *testing.T) {
	var n atomic.Int32
	server, calls := inferenceServer(t, func(inferenceCall) string {
		if n.Add(1) == 2 {
			return `{"labels":["FACT","MYTH","SCAM"],"scores":[0.6,0.3,0.1]}`
		}
		return `{"labels":["MYTH","FACT","SCAM"],"scores":[0.6,0.3,0.1]}`
	})
	m := NewZeroShotModel(NewInferenceClient(server.URL, "", server.Client()), "")

	op, err := m.Predict(context.Background(), "claim", []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, model.LabelMyth, op.Label)
	assert.InDelta(t, 2.0/3, op.Confidence, 1e-9)

	require.Len(t, *calls, 3)
	var input string
	require.NoError(t, json.Unmarshal((*calls)[0].Inputs, &input))
	assert.Equal(t, "claim Evidence for that is: a", input)
	assert.ElementsMatch(t, []any{"FACT", "MYTH", "SCAM"}, (*calls)[0].Parameters["candidate_labels"])
}

func TestZeroShotModel_TieGoesToFirstLabel(t *testing.T) {
	var n atomic.Int32
	server, _ := inferenceServer(t, func(inferenceCall) string {
		if n.Add(1) == 1 {
			return `{"labels":["SCAM","MYTH","FACT"],"scores":[0.6,0.3,0.1]}`
		}
		return `{"labels":["FACT","MYTH","SCAM"],"scores":[0.6,0.3,0.1]}`
	})
	m := NewZeroShotModel(NewInferenceClient(server.URL, "", server.Client()), "")

	op, err := m.Predict(context.Background(), "claim", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, model.LabelFact, op.Label)
}

func TestFakeNewsLabel(t *testing.T) {
	assert.Equal(t, model.LabelScam, FakeNewsLabel("FAKE", 0.95))
	assert.Equal(t, model.LabelMyth, FakeNewsLabel("fake", 0.8))
	assert.Equal(t, model.LabelScam, FakeNewsLabel("LABEL_0", 0.81))
	assert.Equal(t, model.LabelFact, FakeNewsLabel("REAL", 0.6))
	assert.Equal(t, model.LabelFact, FakeNewsLabel("LABEL_1", 0.99))
	assert.Equal(t, model.LabelMyth, FakeNewsLabel("SATIRE", 0.99))
}

func TestFakeNewsModel_PicksBestLabel(t *testing.T) {
	server, calls := inferenceServer(t, func(inferenceCall) string {
		return `[[{"label":"REAL","score":0.1},{"label":"FAKE","score":0.9}]]`
	})
	m := NewFakeNewsModel(NewInferenceClient(server.URL, "", server.Client()), "")

	op, err := m.Predict(context.Background(), "Miracle cure found", []string{"ignored"})
	require.NoError(t, err)

	assert.Equal(t, model.LabelScam, op.Label)
	assert.Equal(t, 0.9, op.Confidence)
	require.Len(t, *calls, 1)
	assert.True(t, strings.HasSuffix((*calls)[0].Path, "Roberta-fake-news-detector"))
}

func TestFakeNewsModel_EmptyResult(t *testing.T) {
	server, _ := inferenceServer(t, func(inferenceCall) string { return `[]` })
	m := NewFakeNewsModel(NewInferenceClient(server.URL, "", server.Client()), "")

	_, err := m.Predict(context.Background(), "c", nil)
	assert.True(t, errors.Is(err, ErrNoVerdict))
}
