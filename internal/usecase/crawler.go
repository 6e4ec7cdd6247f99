package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"FakeNewsScanner/internal/classifier"
	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
)

const insertBatchSize = 50

// CrawlerDeps wires all driven adapters into the crawl workflow.
type CrawlerDeps struct {
	Source     ports.ItemSource
	Items      ports.ItemRepository
	Watermarks ports.WatermarkRepository
	// Predictor is optional; without it new items stay unpredicted.
	Predictor *Predictor
	Config    config.CrawlConfig
	Logger    *slog.Logger
}

// Crawler fetches, filters and stores one scope at a time.
type Crawler struct {
	source     ports.ItemSource
	items      ports.ItemRepository
	watermarks ports.WatermarkRepository
	predictor  *Predictor
	cfg        config.CrawlConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewCrawler constructs the crawl component.
func NewCrawler(deps CrawlerDeps) *Crawler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Crawler{
		source:     deps.Source,
		items:      deps.Items,
		watermarks: deps.Watermarks,
		predictor:  deps.Predictor,
		cfg:        deps.Config,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Scopes lists the configured scopes.
func (c *Crawler) Scopes() []string {
	return c.source.Scopes()
}

// Plan picks the mode, window start and item cap for a scope. An empty store
// means historical; otherwise the window starts at the watermark, or at the
// newest stored item when no watermark was saved.
func (c *Crawler) Plan(ctx context.Context, scope string, now time.Time) (domain.CrawlMode, time.Time, int, error) {
	community := c.source.Community(scope)
	count, err := c.items.CountItems(ctx, community)
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("count items: %w", err)
	}
	historicalStart := now.AddDate(0, -c.cfg.HistoricalMonths, 0)
	if count == 0 {
		return domain.ModeHistorical, historicalStart, c.cfg.HistoricalLimit, nil
	}

	wm, ok, err := c.watermarks.LoadWatermark(ctx, scope)
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("load watermark: %w", err)
	}
	if ok && !wm.LastRun.IsZero() {
		return domain.ModeIncremental, wm.LastRun, c.cfg.IncrementalLimit, nil
	}

	latest, ok, err := c.items.LatestCreatedAt(ctx, community)
	if err != nil {
		return "", time.Time{}, 0, fmt.Errorf("latest item: %w", err)
	}
	if !ok {
		latest = historicalStart
	}
	return domain.ModeIncremental, latest, c.cfg.IncrementalLimit, nil
}

// CrawlScope runs one crawl of a scope and returns its record and the new
// watermark. Fetch failures end the scope early but the watermark still
// advances to the window end.
func (c *Crawler) CrawlScope(ctx context.Context, scope string) (domain.CrawlRun, domain.CrawlWatermark) {
	started := c.now()
	run := domain.CrawlRun{
		ID:        uuid.NewString(),
		Scope:     scope,
		WindowEnd: started,
		StartedAt: started,
	}
	log := c.logger.With("scope", scope, "run", run.ID)

	mode, start, limit, err := c.Plan(ctx, scope, started)
	if err != nil {
		run.Errors++
		run.Status = domain.RunFailed
		run.Error = err.Error()
		run.Duration = time.Since(started)
		log.Error("crawl planning failed", "error", err)
		return run, c.recordFailedPlan(ctx, run, log)
	}
	run.Mode, run.WindowStart = mode, start
	log.Info("crawl started", "mode", mode, "from", start.Format(time.RFC3339), "limit", limit)

	filter := NewFilter(c.items, start, started)
	var (
		inserted  []domain.Item
		batch     = make([]domain.Item, 0, insertBatchSize)
		failure   error
		storeFail bool
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		fresh, err := filter.Apply(ctx, batch)
		batch = batch[:0]
		if err != nil {
			return err
		}
		stored, err := c.items.InsertItems(ctx, fresh)
		if err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
		run.Duplicates += len(fresh) - len(stored)
		inserted = append(inserted, stored...)
		return nil
	}

	for item, err := range c.source.Scan(ctx, scope, start, started, limit) {
		if err != nil {
			failure = err
			break
		}
		run.Fetched++
		batch = append(batch, item)
		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				failure, storeFail = err, true
				break
			}
		}
	}
	if !storeFail {
		if err := flush(); err != nil {
			failure = errors.Join(failure, err)
		}
	}

	stats := filter.Stats()
	run.Duplicates += stats.Duplicate
	run.OutOfWindow = stats.OutOfWindow
	run.Inserted = len(inserted)

	if failure != nil {
		run.Errors++
		run.Error = failure.Error()
		log.Warn("crawl source failed", "error", failure, "fetched", run.Fetched)
	}

	if c.cfg.AutoPredict && c.predictor != nil && len(inserted) > 0 {
		predictMode := classifier.FastOnly
		if c.cfg.ReasoningInBackground {
			predictMode = classifier.TwoStage
		}
		ps := c.predictor.PredictAll(ctx, inserted, predictMode, c.cfg.PredictConcurrency, nil)
		run.Predicted, run.FakeDetected = ps.Predicted, ps.Fake
		run.Errors += ps.Failed
	}

	switch {
	case failure == nil:
		run.Status = domain.RunSucceeded
	case run.Fetched > 0:
		run.Status = domain.RunPartial
	default:
		run.Status = domain.RunFailed
	}
	run.Duration = time.Since(started)

	wm := domain.CrawlWatermark{Scope: scope, LastRun: run.WindowEnd, Run: run}
	if err := c.watermarks.SaveWatermark(ctx, wm); err != nil {
		log.Error("save watermark failed", "error", err)
	}

	log.Info("crawl finished",
		"status", run.Status,
		"fetched", run.Fetched,
		"inserted", run.Inserted,
		"duplicates", run.Duplicates,
		"out_of_window", run.OutOfWindow,
		"predicted", run.Predicted,
		"fake", run.FakeDetected,
		"duration", run.Duration)
	return run, wm
}

// recordFailedPlan stores the failed attempt while keeping the previous
// boundary, so the next run plans from the same place.
func (c *Crawler) recordFailedPlan(ctx context.Context, run domain.CrawlRun, log *slog.Logger) domain.CrawlWatermark {
	wm := domain.CrawlWatermark{Scope: run.Scope, Run: run}
	if prev, ok, err := c.watermarks.LoadWatermark(ctx, run.Scope); err == nil && ok {
		wm.LastRun = prev.LastRun
	}
	if err := c.watermarks.SaveWatermark(ctx, wm); err != nil {
		log.Error("save watermark failed", "error", err)
	}
	return wm
}
