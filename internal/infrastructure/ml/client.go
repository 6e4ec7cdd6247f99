package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
	"FakeNewsScanner/internal/retry"
)

const (
	maxInputChars = 512
	minInputChars = 10
	maxLoadWait   = 30 * time.Second
	modeAPI       = "api"
)

// Client talks to a hosted text-classification model (HuggingFace inference
// API shape) for the fast fake/real signal.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
	retry    retry.Policy
}

var _ ports.FastClassifier = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, model, apiKey string, timeout time.Duration, policy retry.Policy) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    model,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		retry:    policy,
	}
}

// Classify scores text and returns the label with the class breakdown.
func (c *Client) Classify(ctx context.Context, text string) (domain.FastResult, error) {
	text = strings.TrimSpace(text)
	if len(text) < minInputChars {
		return domain.FastResult{}, domain.ErrInsufficientText
	}
	text = truncate(text, maxInputChars)

	scores, err := retry.Do(ctx, c.retry, func(ctx context.Context) ([]labelScore, error) {
		var raw json.RawMessage
		if err := c.post(ctx, "/"+c.model, map[string]any{"inputs": text}, &raw); err != nil {
			return nil, err
		}
		return decodeScores(raw)
	})
	if err != nil {
		return domain.FastResult{}, fmt.Errorf("%w: %w", domain.ErrClassifierUnavailable, err)
	}

	return toResult(scores, c.model)
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// decodeScores accepts both [[{label,score}]] and [{label,score}].
func decodeScores(raw json.RawMessage) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode scores: %w", err))
	}
	return flat, nil
}

func toResult(scores []labelScore, model string) (domain.FastResult, error) {
	var (
		probs            domain.Probabilities
		sawFake, sawReal bool
	)
	for _, s := range scores {
		switch strings.ToUpper(s.Label) {
		case "LABEL_1", "FAKE":
			probs.Fake, sawFake = s.Score, true
		case "LABEL_0", "REAL":
			probs.Real, sawReal = s.Score, true
		}
	}
	if !sawFake && !sawReal {
		return domain.FastResult{}, fmt.Errorf("%w: response carries no known labels", domain.ErrClassifierUnavailable)
	}
	if !sawFake {
		probs.Fake = 1 - probs.Real
	}
	if !sawReal {
		probs.Real = 1 - probs.Fake
	}

	result := domain.FastResult{
		Probabilities: domain.Probabilities{Fake: round4(probs.Fake), Real: round4(probs.Real)},
		Model:         model,
		Mode:          modeAPI,
	}
	if probs.Fake > probs.Real {
		result.Label, result.Confidence = domain.LabelFake, round4(probs.Fake)
	} else {
		result.Label, result.Confidence = domain.LabelReal, round4(probs.Real)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if closeErr := resp.Body.Close(); closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return &retry.StatusError{
			Code:       resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: loadingDelay(resp.StatusCode, raw),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}

// loadingDelay reads estimated_time from a 503 "model loading" body.
func loadingDelay(status int, body []byte) time.Duration {
	if status != http.StatusServiceUnavailable {
		return 0
	}
	var payload struct {
		EstimatedTime float64 `json:"estimated_time"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.EstimatedTime <= 0 {
		return 0
	}
	wait := time.Duration(payload.EstimatedTime * float64(time.Second))
	if wait > maxLoadWait {
		wait = maxLoadWait
	}
	return wait
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
