package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
)

// State is the crawl run-state flag.
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
)

// CrawlerStatus is the externally visible scheduler state.
type CrawlerStatus struct {
	State    State              `json:"state"`
	Enabled  bool               `json:"enabled"`
	Schedule string             `json:"schedule"`
	Sources  []string           `json:"sources"`
	LastRun  *domain.RunSummary `json:"last_run"`
	NextRun  *time.Time         `json:"next_run"`
}

// Scheduler wires the cron-like driver with the crawl use case. At most one
// crawl runs at a time; triggers arriving meanwhile are coalesced.
type Scheduler struct {
	driver    ports.Scheduler
	crawler   *Crawler
	notifiers []ports.Notifier
	schedule  string
	logger    *slog.Logger
	now       func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	last    *domain.RunSummary
}

// NewScheduler returns a helper to start/stop recurring crawls. driver may be
// nil when only on-demand triggers are wanted.
func NewScheduler(driver ports.Scheduler, crawler *Crawler, notifiers []ports.Notifier, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		driver:    driver,
		crawler:   crawler,
		notifiers: notifiers,
		schedule:  schedule,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the crawl with the provided scheduler and optionally runs
// one crawl immediately in the background.
func (s *Scheduler) Start(ctx context.Context, runOnStart bool) error {
	if s.driver == nil || s.crawler == nil {
		return nil
	}

	job := func(time.Time) {
		s.Trigger(ctx)
	}
	if err := s.driver.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if runOnStart {
		go s.Trigger(ctx)
	}
	return nil
}

// Stop tears down the underlying scheduler and waits for a running crawl
// until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver != nil {
		if err := s.driver.Stop(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for s.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Trigger crawls every scope sequentially. A trigger that arrives while a
// crawl is running returns a skipped summary immediately.
func (s *Scheduler) Trigger(ctx context.Context) domain.RunSummary {
	started := s.now()
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("crawl trigger coalesced", "reason", domain.ReasonRunning)
		return domain.RunSummary{Status: domain.SummarySkipped, Reason: domain.ReasonRunning, StartedAt: started}
	}
	defer s.running.Store(false)

	summary := domain.RunSummary{ID: uuid.NewString(), Status: domain.SummaryCompleted, StartedAt: started}
	for _, scope := range s.crawler.Scopes() {
		run, _ := s.crawler.CrawlScope(ctx, scope)
		summary.Add(run)
	}
	summary.Duration = time.Since(started)

	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()

	s.logger.Info("crawl run completed",
		"run", summary.ID,
		"sources", len(summary.Sources),
		"inserted", summary.Inserted,
		"fake", summary.Fake,
		"errors", summary.Errors)

	if summary.Inserted > 0 {
		s.notify(ctx, summary)
	}
	return summary
}

// Status reports the run-state flag, the last run and the next activation.
func (s *Scheduler) Status() CrawlerStatus {
	status := CrawlerStatus{
		State:    StateIdle,
		Enabled:  s.driver != nil,
		Schedule: s.schedule,
	}
	if s.running.Load() {
		status.State = StateRunning
	}
	if s.crawler != nil {
		status.Sources = s.crawler.Scopes()
	}

	s.mu.RLock()
	if s.last != nil {
		last := *s.last
		status.LastRun = &last
	}
	s.mu.RUnlock()

	if s.driver != nil {
		if next := s.driver.Next(); !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

func (s *Scheduler) notify(ctx context.Context, summary domain.RunSummary) {
	if len(s.notifiers) == 0 {
		return
	}
	message := buildDigestMessage(summary)
	for _, n := range s.notifiers {
		if err := n.PublishDigest(ctx, message); err != nil {
			s.logger.Warn("notify failed", "error", err)
		}
	}
}

func buildDigestMessage(summary domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Crawl %s*\n", summary.StartedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "New items: %d, fake detected: %d, errors: %d\n\n", summary.Inserted, summary.Fake, summary.Errors)
	for _, run := range summary.Sources {
		fmt.Fprintf(&b, "- r/%s (%s): %d new, %d duplicate, %d predicted, %d fake",
			run.Scope, run.Mode, run.Inserted, run.Duplicates, run.Predicted, run.FakeDetected)
		if run.Status != domain.RunSucceeded {
			fmt.Fprintf(&b, " [%s]", run.Status)
		}
		b.WriteString("\n")
	}
	return b.String()
}
