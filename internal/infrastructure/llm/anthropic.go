package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
	"FakeNewsScanner/internal/retry"
)

// AnthropicClient implements ports.ReasoningClassifier on the Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	retry   retry.Policy
}

var _ ports.ReasoningClassifier = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client; Endpoint, when set, overrides the API base URL.
// SDK-level retries are disabled so the shared retry policy is the only one.
func NewAnthropicClient(cfg config.ReasoningConfig, policy retry.Policy) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
		limiter: perMinute(cfg.RequestsPerMinute),
		retry:   policy,
	}
}

// Classify asks the model for a fake/real/uncertain verdict.
func (c *AnthropicClient) Classify(ctx context.Context, text string) (domain.ReasoningResult, error) {
	reply, err := c.complete(ctx, classifySystemPrompt, classifyPrompt(text))
	if err != nil {
		return domain.ReasoningResult{}, err
	}
	return parseVerdict(reply, c.model)
}

// Explain asks the model for a reader-facing Markdown analysis.
func (c *AnthropicClient) Explain(ctx context.Context, text string, fast domain.FastResult) (string, error) {
	return c.complete(ctx, explainSystemPrompt, explainPrompt(text, fast))
}

func (c *AnthropicClient) complete(ctx context.Context, system, user string) (string, error) {
	if c.model == "" {
		return "", fmt.Errorf("%w: model is not configured", domain.ErrReasoningUnavailable)
	}

	reply, err := retry.Do(ctx, c.retry, func(ctx context.Context) (string, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", retry.Permanent(err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		message, err := c.client.Messages.New(callCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: 1024,
			System: []anthropic.TextBlockParam{
				{Text: system},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
			},
		})
		if err != nil {
			return "", classifyAPIError(err)
		}

		for _, block := range message.Content {
			if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
				return strings.TrimSpace(block.Text), nil
			}
		}
		return "", retry.Permanent(errors.New("no text content in anthropic response"))
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrReasoningUnavailable, err)
	}
	return reply, nil
}

// classifyAPIError maps SDK errors onto the shared retry vocabulary.
func classifyAPIError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &retry.StatusError{
			Code:   apiErr.StatusCode,
			Status: fmt.Sprintf("%d %s", apiErr.StatusCode, http.StatusText(apiErr.StatusCode)),
			Body:   apiErr.Error(),
		}
	}
	return err
}
