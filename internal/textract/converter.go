package textract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// errorMarker prefixes converter replies that report a failed conversion
const errorMarker = "[ERROR]"

// Converter posts audio and image files to a speech-to-text / OCR service.
// The service answers with {"text": "..."} or a plain-text body.
type Converter struct {
	endpoint   string
	httpClient *http.Client
}

// NewConverter creates a converter client. Returns nil when endpoint is empty.
func NewConverter(endpoint string, httpClient *http.Client) *Converter {
	if endpoint == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Converter{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: httpClient,
	}
}

// Convert uploads one file to {endpoint}/{audio|image}
func (c *Converter) Convert(ctx context.Context, mt MediaType, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+string(mt), &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", filename, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read converter response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("converter returned status %d for %s", resp.StatusCode, filename)
	}

	text := string(raw)
	var reply struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &reply); err != nil {
			return "", fmt.Errorf("decode converter response: %w", err)
		}
		if reply.Error != "" {
			return "", fmt.Errorf("convert %s: %s", filename, reply.Error)
		}
		text = reply.Text
	}

	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, errorMarker) {
		return "", fmt.Errorf("convert %s: %s", filename, strings.TrimSpace(strings.TrimPrefix(text, errorMarker)))
	}
	return text, nil
}
