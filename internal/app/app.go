package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"FakeNewsScanner/internal/analytics"
	"FakeNewsScanner/internal/api"
	"FakeNewsScanner/internal/classifier"
	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/infrastructure/cache"
	"FakeNewsScanner/internal/infrastructure/llm"
	"FakeNewsScanner/internal/infrastructure/ml"
	"FakeNewsScanner/internal/infrastructure/parser"
	"FakeNewsScanner/internal/infrastructure/scheduler"
	"FakeNewsScanner/internal/infrastructure/slack"
	"FakeNewsScanner/internal/infrastructure/storage"
	"FakeNewsScanner/internal/infrastructure/telegram"
	"FakeNewsScanner/internal/logging"
	"FakeNewsScanner/internal/ports"
	"FakeNewsScanner/internal/retry"
	"FakeNewsScanner/internal/scanner"
	"FakeNewsScanner/internal/usecase"
)

const stopTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	cache     *cache.RedisCache
	scheduler *usecase.Scheduler
	server    *api.Server
}

// New opens the store and builds every component. The caller owns Run.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	component := func(name string) *slog.Logger { return baseLogger.With("component", name) }

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &Application{cfg: cfg, logger: baseLogger, store: store}

	var credCache ports.CredibilityCache
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL, component("cache"))
		if err != nil {
			baseLogger.Warn("redis cache disabled", "error", err)
		} else {
			a.cache, credCache = rc, rc
		}
	}

	backoff := retry.Policy{MaxAttempts: cfg.Crawl.MaxAttempts, BaseDelay: cfg.Crawl.BackoffBase, MaxDelay: 30 * time.Second}
	reddit := parser.NewRedditScanner(
		&http.Client{Timeout: cfg.Reddit.Timeout},
		parser.RedditOptions{
			BaseURL:      cfg.Reddit.BaseURL,
			UserAgent:    cfg.Reddit.UserAgent,
			PageSize:     cfg.Crawl.PageSize,
			RequestDelay: cfg.Crawl.RequestDelay,
			Retry:        backoff,
		},
		component("scanner.reddit"),
	)
	registry := scanner.NewRegistry()
	registry.Register(reddit)
	source := parser.NewStrategySource(registry, cfg.Sources, component("source"))

	fast := ml.NewClient(cfg.ML.InferenceURL, cfg.ML.Model, cfg.ML.APIKey, cfg.ML.Timeout,
		retry.Policy{MaxAttempts: cfg.ML.MaxAttempts, BaseDelay: time.Second, MaxDelay: 20 * time.Second})
	reasoning := newReasoning(cfg.Reasoning)
	if reasoning == nil {
		baseLogger.Info("reasoning stage disabled")
	}

	cls := classifier.New(fast, reasoning, cfg.Policy.LowConfidence, component("classifier"))
	svc := analytics.New(store, credCache, cfg.Policy, component("analytics"))
	predictor := usecase.NewPredictor(cls, store, svc, cfg.Policy.MinPosts, component("predictor"))

	crawler := usecase.NewCrawler(usecase.CrawlerDeps{
		Source:     source,
		Items:      store,
		Watermarks: store,
		Predictor:  predictor,
		Config:     cfg.Crawl,
		Logger:     component("crawler"),
	})

	var driver ports.Scheduler
	if cfg.Scheduler.Enabled {
		driver = scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), component("cron"))
	}
	a.scheduler = usecase.NewScheduler(driver, crawler, notifiers(cfg.Notifications), cfg.Scheduler.CronExpression, component("scheduler"))

	handler := api.Routes(api.Deps{
		Items:      store,
		Watermarks: store,
		Store:      store,
		Analytics:  svc,
		Analyzer: usecase.NewAnalyzer(usecase.AnalyzerDeps{
			Classifier: cls,
			Predictor:  predictor,
			Reasoning:  reasoning,
			Lookup:     reddit,
			Items:      store,
			Scorer:     svc,
			MinPosts:   cfg.Policy.MinPosts,
			Logger:     component("analyzer"),
		}),
		Batch:     usecase.NewBatchPredictor(store, predictor, cfg.Crawl.PredictConcurrency, component("batch")),
		Scheduler: a.scheduler,
		APIKey:    cfg.HTTP.APIKey,
		Logger:    component("http"),
	})
	a.server = api.NewServer(cfg.HTTP, handler, component("http"))
	return a, nil
}

// Run starts the recurring crawl and serves HTTP until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	if err := a.scheduler.Start(ctx, a.cfg.Scheduler.RunOnStart); err != nil {
		return err
	}
	if a.cfg.Scheduler.Enabled {
		a.logger.Info("crawl scheduler started",
			"schedule", a.cfg.Scheduler.CronExpression,
			"timezone", a.cfg.Scheduler.Location().String(),
			"sources", len(a.cfg.Sources))
	}

	serveErr := a.server.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	return serveErr
}

func (a *Application) close() {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	errs = append(errs, a.store.Close())
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown", "error", err)
	}
}

// newReasoning returns nil when the second stage is not configured.
func newReasoning(cfg config.ReasoningConfig) ports.ReasoningClassifier {
	policy := retry.Policy{MaxAttempts: cfg.MaxAttempts, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIClient(cfg, policy)
	case config.ProviderAnthropic:
		return llm.NewAnthropicClient(cfg, policy)
	default:
		return nil
	}
}

func notifiers(cfg config.NotificationConfig) []ports.Notifier {
	var out []ports.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		out = append(out, telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	if cfg.Slack.Token != "" && cfg.Slack.ChannelID != "" {
		out = append(out, slack.NewNotifier(cfg.Slack.Token, cfg.Slack.ChannelID, cfg.Slack.APIURL))
	}
	return out
}
