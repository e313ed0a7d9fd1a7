package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultInferenceEndpoint is the Hugging Face hosted inference API
const DefaultInferenceEndpoint = "https://api-inference.huggingface.co/models"

// LabelScore is one label of a text-classification result
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ZeroShotResult is a zero-shot classification result, labels sorted by score
type ZeroShotResult struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
}

type inferenceRequest struct {
	Inputs     any            `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// InferenceClient is an HTTP client for a Hugging Face compatible model server
type InferenceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewInferenceClient creates a new model server client
func NewInferenceClient(baseURL, apiKey string, httpClient *http.Client) *InferenceClient {
	if baseURL == "" {
		baseURL = DefaultInferenceEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &InferenceClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// TextClassification runs a text-classification model. inputs is a string or
// a {"text", "text_pair"} object for sentence-pair models.
func (c *InferenceClient) TextClassification(ctx context.Context, modelName string, inputs any) ([]LabelScore, error) {
	raw, err := c.post(ctx, modelName, inferenceRequest{
		Inputs:     inputs,
		Parameters: map[string]any{"top_k": 10}, // every label, not just the best
	})
	if err != nil {
		return nil, err
	}

	// Servers answer either [[...]] (batched) or [...]
	var nested [][]LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []LabelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return flat, nil
}

// ZeroShot scores text against candidate labels
func (c *InferenceClient) ZeroShot(ctx context.Context, modelName, text string, labels []string) (*ZeroShotResult, error) {
	raw, err := c.post(ctx, modelName, inferenceRequest{
		Inputs:     text,
		Parameters: map[string]any{"candidate_labels": labels},
	})
	if err != nil {
		return nil, err
	}

	var result ZeroShotResult
	if err := json.Unmarshal(raw, &result); err == nil && len(result.Labels) > 0 {
		return &result, nil
	}
	var list []ZeroShotResult
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 || len(list[0].Labels) == 0 {
		return nil, fmt.Errorf("failed to decode zero-shot response: %s", truncateBody(raw))
	}
	return &list[0], nil
}

// Ready checks that the model server answers for modelName
func (c *InferenceClient) Ready(ctx context.Context, modelName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+modelName, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("model server not ready: status %d", resp.StatusCode)
	}
	return nil
}

func (c *InferenceClient) post(ctx context.Context, modelName string, body inferenceRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+modelName, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	return respBody, nil
}

func (c *InferenceClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func truncateBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
