package analytics

import (
	"context"
	"fmt"
	"time"

	"FakeNewsScanner/internal/domain"
)

const (
	trendWeight      = 0.5
	trendCap         = 20.0
	volumeSpikeRatio = 1.5
	volumeSpikeBonus = 5.0
)

// Risk assesses the current period of a trend window.
func (s *Service) Risk(ctx context.Context, days int, community string) (domain.RiskAssessment, error) {
	trend, err := s.Trend(ctx, days, community)
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	return Assess(trend, s.policy.RiskBands, s.now()), nil
}

// Assess combines the fake ratio, a positive trend and a volume spike into a
// 0..100 score. Every factor is returned with its contribution.
func Assess(trend domain.TrendWindow, bands [3]float64, now time.Time) domain.RiskAssessment {
	ratio := trend.Current.FakePercentage
	factors := []domain.RiskFactor{{
		Name:         "fake_news_ratio",
		Value:        ratio,
		Contribution: ratio,
		Impact:       impact(ratio, 30, 15),
		Description:  fmt.Sprintf("%.1f%% of predicted items in the last %d days are fake", ratio, trend.Days),
	}}

	var trendContribution float64
	if trend.Direction == domain.DirectionIncreasing {
		trendContribution = round2(min(trend.ChangePercentage*trendWeight, trendCap))
	}
	factors = append(factors, domain.RiskFactor{
		Name:         "trend_direction",
		Value:        trend.ChangePercentage,
		Contribution: trendContribution,
		Impact:       impact(trend.ChangePercentage, 20, 10),
		Description:  fmt.Sprintf("Fake share is %s (%+.1f%% vs previous period)", directionWord(trend.Direction), trend.ChangePercentage),
	})

	var volume, volumeContribution float64
	if trend.Previous.Total > 0 {
		volume = round2(float64(trend.Current.Total) / float64(trend.Previous.Total))
	}
	volumeImpact := domain.SeverityLow
	if volume >= volumeSpikeRatio {
		volumeContribution = volumeSpikeBonus
		volumeImpact = domain.SeverityMedium
	}
	factors = append(factors, domain.RiskFactor{
		Name:         "volume_spike",
		Value:        volume,
		Contribution: volumeContribution,
		Impact:       volumeImpact,
		Description:  fmt.Sprintf("%d items this period vs %d in the previous one", trend.Current.Total, trend.Previous.Total),
	})

	var score float64
	for _, f := range factors {
		score += f.Contribution
	}
	score = round2(min(100, score))
	level := riskLevel(score, bands)

	return domain.RiskAssessment{
		Days:           trend.Days,
		Community:      trend.Community,
		Score:          score,
		Level:          level,
		Factors:        factors,
		Recommendation: riskRecommendation(level),
		AssessedAt:     now.UTC(),
	}
}

func impact(v, high, medium float64) domain.Severity {
	switch {
	case v > high:
		return domain.SeverityHigh
	case v > medium:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func riskLevel(score float64, bands [3]float64) domain.RiskLevel {
	switch {
	case score < bands[0]:
		return domain.RiskLow
	case score < bands[1]:
		return domain.RiskMedium
	case score < bands[2]:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

func directionWord(d domain.Direction) string {
	switch d {
	case domain.DirectionIncreasing:
		return "increasing"
	case domain.DirectionDecreasing:
		return "decreasing"
	default:
		return "stable"
	}
}

func riskRecommendation(level domain.RiskLevel) string {
	switch level {
	case domain.RiskLow:
		return "Low misinformation activity. Continue routine monitoring."
	case domain.RiskMedium:
		return "Moderate misinformation activity. Verify trending stories before sharing."
	case domain.RiskHigh:
		return "Elevated misinformation activity. Review flagged sources and increase crawl frequency."
	default:
		return "Critical misinformation activity. Escalate and review warning sources immediately."
	}
}
