package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FakeNewsScanner/internal/ports"
	"FakeNewsScanner/internal/retry"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// maxMessageRunes is the Bot API limit for one sendMessage text.
	maxMessageRunes = 4096
)

// Notifier sends crawl digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	retry    retry.Policy
}

var _ ports.Notifier = (*Notifier)(nil)

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
		retry:    retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
	}
}

// WithAPIBase points the notifier at another Bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// WithRetry replaces the retry policy for sendMessage calls.
func (n *Notifier) WithRetry(p retry.Policy) *Notifier {
	n.retry = p
	return n
}

// PublishDigest posts a Markdown digest, split into several messages when it
// exceeds the Bot API length limit.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return errors.New("telegram notifier misconfigured")
	}

	for i, part := range splitMessage(digest, maxMessageRunes) {
		if _, err := retry.Do(ctx, n.retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, n.send(ctx, part)
		}); err != nil {
			return fmt.Errorf("telegram message %d: %w", i+1, err)
		}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return retry.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	statusErr := &retry.StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	var body apiResponse
	if json.Unmarshal(raw, &body) == nil {
		if body.Description != "" {
			statusErr.Body = body.Description
		}
		statusErr.RetryAfter = time.Duration(body.Parameters.RetryAfter) * time.Second
	}
	return statusErr
}

// splitMessage cuts text into chunks of at most limit runes, preferring line
// boundaries.
func splitMessage(text string, limit int) []string {
	var (
		parts   []string
		current []rune
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		if len(current)+len(r) > limit && len(current) > 0 {
			parts = append(parts, string(current))
			current = current[:0]
		}
		for len(r) > limit {
			parts = append(parts, string(r[:limit]))
			r = r[limit:]
		}
		current = append(current, r...)
	}
	if len(current) > 0 || len(parts) == 0 {
		parts = append(parts, string(current))
	}
	return parts
}
