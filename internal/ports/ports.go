package ports

import (
	"context"
	"iter"
	"time"

	"FakeNewsScanner/internal/domain"
)

// ItemSource produces items for a configured scope within a window.
type ItemSource interface {
	Scopes() []string
	// Community maps a scope to the community name stored on its items.
	Community(scope string) string
	Scan(ctx context.Context, scope string, start, end time.Time, limit int) iter.Seq2[domain.Item, error]
}

// ItemFilter narrows item listings. Zero values mean no filtering.
type ItemFilter struct {
	Community string
	Label     domain.Label
	Before    *domain.Cursor
	Limit     int
}

// ItemRepository persists crawled items keyed by platform identifier.
type ItemRepository interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	// InsertItems upserts by identifier without overwriting and returns the
	// items that were actually new.
	InsertItems(ctx context.Context, items []domain.Item) ([]domain.Item, error)
	GetItem(ctx context.Context, id string) (domain.Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]domain.Item, error)
	ListUnpredicted(ctx context.Context, limit int) ([]domain.Item, error)
	CountItems(ctx context.Context, community string) (int, error)
	LatestCreatedAt(ctx context.Context, community string) (time.Time, bool, error)
}

// PredictionRepository attaches predictions to stored items.
type PredictionRepository interface {
	// SavePrediction fails with domain.ErrAlreadyPredicted when a prediction
	// exists and force is false.
	SavePrediction(ctx context.Context, itemID string, prediction domain.Prediction, force bool) error
}

// WatermarkRepository stores per-scope crawl boundaries.
type WatermarkRepository interface {
	LoadWatermark(ctx context.Context, scope string) (domain.CrawlWatermark, bool, error)
	SaveWatermark(ctx context.Context, watermark domain.CrawlWatermark) error
	ListWatermarks(ctx context.Context) ([]domain.CrawlWatermark, error)
}

// AnalyticsRepository exposes the read-only aggregates.
type AnalyticsRepository interface {
	DomainCounts(ctx context.Context, domainName string) (domain.DomainCounts, error)
	DomainsWithMinimum(ctx context.Context, minPosts int) ([]domain.DomainCounts, error)
	LabeledPoints(ctx context.Context, from, to time.Time, community string) ([]domain.LabeledPoint, error)
	FakeTitlesSince(ctx context.Context, since time.Time, minConfidence float64, limit int) ([]string, error)
	Summary(ctx context.Context) (domain.StoreSummary, error)
	Ping(ctx context.Context) error
}

// FastClassifier is the Step 1 scoring service.
type FastClassifier interface {
	Classify(ctx context.Context, text string) (domain.FastResult, error)
}

// ReasoningClassifier is the Step 2 scoring service.
type ReasoningClassifier interface {
	Classify(ctx context.Context, text string) (domain.ReasoningResult, error)
	Explain(ctx context.Context, text string, fast domain.FastResult) (string, error)
}

// ItemLookup resolves a single post on the platform.
type ItemLookup interface {
	PostID(rawURL string) (string, error)
	FetchItem(ctx context.Context, id string) (domain.Item, error)
}

// CredibilityCache memoizes domain credibility lookups.
type CredibilityCache interface {
	Get(ctx context.Context, key string) (domain.DomainCredibility, bool)
	Set(ctx context.Context, key string, value domain.DomainCredibility)
}

// Notifier streams crawl digests to Telegram, Slack or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when crawls execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
	Next() time.Time
}
