package analytics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"FakeNewsScanner/internal/domain"
)

const (
	reportTopCredible = 5
	reportWarnings    = 5
	reportTopicDays   = 7
	reportTopics      = 10
)

// Report bundles every aggregate for one window.
type Report struct {
	GeneratedAt     time.Time                  `json:"generated_at"`
	Days            int                        `json:"days"`
	Summary         domain.StoreSummary        `json:"summary"`
	TopCredible     []domain.DomainCredibility `json:"top_credible_sources"`
	Warnings        []domain.WarningSource     `json:"warning_sources"`
	Trend           domain.TrendWindow         `json:"trend"`
	TrendingTopics  []domain.TrendingTopic     `json:"trending_topics"`
	Risk            domain.RiskAssessment      `json:"risk_assessment"`
	Recommendations []string                   `json:"recommendations"`
}

// Summary returns the whole-store counters.
func (s *Service) Summary(ctx context.Context) (domain.StoreSummary, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return domain.StoreSummary{}, fmt.Errorf("store summary: %w", err)
	}
	return summary, nil
}

// Report gathers the sections concurrently; any failing section fails the
// report.
func (s *Service) Report(ctx context.Context, days int) (Report, error) {
	if days < 1 {
		return Report{}, fmt.Errorf("%w: days must be positive", domain.ErrInvalidInput)
	}

	report := Report{GeneratedAt: s.now().UTC(), Days: days}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		report.Summary, err = s.Summary(gctx)
		return err
	})
	g.Go(func() (err error) {
		report.TopCredible, err = s.TopCredible(gctx, reportTopCredible, s.policy.TopCredibleMinimum)
		return err
	})
	g.Go(func() (err error) {
		report.Warnings, err = s.Warnings(gctx, reportWarnings, s.policy.WarningMinimum)
		return err
	})
	g.Go(func() error {
		trend, err := s.Trend(gctx, days, "")
		if err != nil {
			return err
		}
		report.Trend = trend
		report.Risk = Assess(trend, s.policy.RiskBands, report.GeneratedAt)
		return nil
	})
	g.Go(func() (err error) {
		report.TrendingTopics, err = s.TrendingTopics(gctx, reportTopicDays, reportTopics)
		return err
	})

	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	report.Recommendations = recommendations(report)
	return report, nil
}

func recommendations(r Report) []string {
	var out []string
	switch r.Risk.Level {
	case domain.RiskHigh, domain.RiskCritical:
		out = append(out, "Misinformation risk is elevated: verify trending stories against primary sources.")
	}
	if r.Trend.Direction == domain.DirectionIncreasing {
		out = append(out, fmt.Sprintf("Fake news share is rising (%+.1f%%): consider crawling more frequently.", r.Trend.ChangePercentage))
	}
	if n := len(r.Warnings); n > 0 {
		out = append(out, fmt.Sprintf("Review %d warning source(s), starting with %s.", n, r.Warnings[0].Domain))
	}
	if len(r.TrendingTopics) > 0 {
		out = append(out, fmt.Sprintf("Watch coverage of %q, the most frequent keyword among fake items.", r.TrendingTopics[0].Keyword))
	}
	if r.Summary.Total > 0 && r.Summary.Predicted < r.Summary.Total {
		out = append(out, fmt.Sprintf("%d item(s) are still unpredicted: run a batch prediction.", r.Summary.Total-r.Summary.Predicted))
	}
	if len(out) == 0 {
		out = append(out, "No notable misinformation activity. Continue routine monitoring.")
	}
	return out
}
