package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/infrastructure/llm"
	"FakeNewsScanner/internal/logging"
)

func TestNewReasoningByProvider(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Reasoning
	require.Nil(t, newReasoning(cfg))

	cfg.Provider = config.ProviderOpenAI
	require.IsType(t, &llm.OpenAIClient{}, newReasoning(cfg))

	cfg.Provider = config.ProviderAnthropic
	require.IsType(t, &llm.AnthropicClient{}, newReasoning(cfg))
}

func TestNotifiersNeedCompleteSettings(t *testing.T) {
	t.Parallel()

	var cfg config.NotificationConfig
	require.Empty(t, notifiers(cfg))

	cfg.Telegram.BotToken = "token"
	require.Empty(t, notifiers(cfg))

	cfg.Telegram.ChatID = "42"
	cfg.Slack = config.SlackConfig{Token: "xoxb", ChannelID: "C1"}
	require.Len(t, notifiers(cfg), 2)
}

func TestRunStopsWithContext(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "app.db")
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Scheduler.Enabled = false

	application, err := New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, application.Run(ctx))
}
