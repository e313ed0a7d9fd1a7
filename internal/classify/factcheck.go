package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/model"
)

// FactCheckEndpoint is the Google Fact Check Tools claim search API
const FactCheckEndpoint = "https://factchecktools.googleapis.com/v1alpha1/claims:search"

// FactCheckModel looks the claim up in published fact-checks and scores their ratings
type FactCheckModel struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type factCheckResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
				Site string `json:"site"`
			} `json:"publisher"`
			URL           string `json:"url"`
			TextualRating string `json:"textualRating"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// NewFactCheckModel creates a Google Fact Check model
func NewFactCheckModel(endpoint, apiKey string, httpClient *http.Client) *FactCheckModel {
	if endpoint == "" {
		endpoint = FactCheckEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &FactCheckModel{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Name returns the model name
func (m *FactCheckModel) Name() string {
	return "google-factcheck"
}

// Predict averages the rating scores of every review matching the claim.
// Evidence is not used.
func (m *FactCheckModel) Predict(ctx context.Context, claim string, _ []string) (Opinion, error) {
	ratings, err := m.search(ctx, claim)
	if err != nil {
		return Opinion{}, err
	}
	if len(ratings) == 0 {
		return Opinion{}, fmt.Errorf("no published fact-checks: %w", ErrNoVerdict)
	}

	var sum float64
	for _, r := range ratings {
		sum += RatingScore(r)
	}
	avg := sum / float64(len(ratings))

	return Opinion{
		Label:      ScoreLabel(avg),
		Confidence: (avg + 1) / 2,
		Reason:     fmt.Sprintf("%d published reviews, mean rating score %.2f (%s)", len(ratings), avg, strings.Join(ratings, "; ")),
	}, nil
}

func (m *FactCheckModel) search(ctx context.Context, claim string) ([]string, error) {
	q := url.Values{}
	q.Set("query", claim)
	q.Set("key", m.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fact check request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fact check API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data factCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode fact check response: %w", err)
	}

	var ratings []string
	for _, c := range data.Claims {
		for _, review := range c.ClaimReview {
			if r := strings.TrimSpace(review.TextualRating); r != "" {
				ratings = append(ratings, strings.ToUpper(r))
			}
		}
	}
	return ratings, nil
}

// RatingScore maps a textual fact-check rating to [-1, 1].
// Checks run in order, so "MOSTLY FALSE" scores as false and "PARTLY TRUE" as true.
func RatingScore(rating string) float64 {
	rating = strings.ToUpper(rating)
	switch {
	case strings.Contains(rating, "FALSE"), strings.Contains(rating, "PANTS ON FIRE"):
		return -1
	case strings.Contains(rating, "TRUE"):
		return 1
	case strings.Contains(rating, "PARTLY"), strings.Contains(rating, "MIXED"):
		return 0.5
	case strings.Contains(rating, "MISLEADING"):
		return -0.5
	}
	return 0
}

// ScoreLabel bands a mean rating score: >= 0.5 FACT, (0, 0.5) MYTH, otherwise SCAM
func ScoreLabel(avg float64) model.Label {
	switch {
	case avg >= 0.5:
		return model.LabelFact
	case avg > 0:
		return model.LabelMyth
	default:
		return model.LabelScam
	}
}
