package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
	"FakeNewsScanner/internal/retry"
)

// OpenAIClient implements ports.ReasoningClassifier backed by
// OpenAI-compatible chat completion APIs (DeepSeek by default).
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retry.Policy
}

var _ ports.ReasoningClassifier = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.ReasoningConfig, policy retry.Policy) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    perMinute(cfg.RequestsPerMinute),
		retry:      policy,
	}
}

// Classify asks the model for a fake/real/uncertain verdict.
func (c *OpenAIClient) Classify(ctx context.Context, text string) (domain.ReasoningResult, error) {
	reply, err := c.complete(ctx, classifySystemPrompt, classifyPrompt(text), 0.1)
	if err != nil {
		return domain.ReasoningResult{}, err
	}
	return parseVerdict(reply, c.model)
}

// Explain asks the model for a reader-facing Markdown analysis.
func (c *OpenAIClient) Explain(ctx context.Context, text string, fast domain.FastResult) (string, error) {
	return c.complete(ctx, explainSystemPrompt, explainPrompt(text, fast), 0.5)
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: client is nil", domain.ErrReasoningUnavailable)
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("%w: client misconfigured", domain.ErrReasoningUnavailable)
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	reply, err := retry.Do(ctx, c.retry, func(ctx context.Context) (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", retry.Permanent(err)
		}
		return c.send(ctx, body)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrReasoningUnavailable, err)
	}
	return reply, nil
}

func (c *OpenAIClient) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &retry.StatusError{Code: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(payload))}
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", retry.Permanent(fmt.Errorf("decode chat response: %w", err))
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", retry.Permanent(fmt.Errorf("chat response has no content"))
	}

	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

// perMinute spreads n requests over each minute; n <= 0 disables limiting.
func perMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}
