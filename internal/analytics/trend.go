package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"FakeNewsScanner/internal/domain"
)

const dayLayout = "2006-01-02"

// Trend compares the fake share of the last days calendar days (today
// included) with the days immediately before them.
func (s *Service) Trend(ctx context.Context, days int, community string) (domain.TrendWindow, error) {
	if days < 1 {
		return domain.TrendWindow{}, fmt.Errorf("%w: days must be positive", domain.ErrInvalidInput)
	}

	now := s.now().UTC()
	_, previousStart := windowBounds(now, days)
	points, err := s.repo.LabeledPoints(ctx, previousStart, now.Add(time.Second), community)
	if err != nil {
		return domain.TrendWindow{}, fmt.Errorf("labeled points: %w", err)
	}

	trend := BuildTrend(points, now, days, s.policy.TrendDeadband)
	trend.Community = community
	return trend, nil
}

func windowBounds(now time.Time, days int) (currentStart, previousStart time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	currentStart = today.AddDate(0, 0, -(days - 1))
	previousStart = currentStart.AddDate(0, 0, -days)
	return currentStart, previousStart
}

// BuildTrend buckets points by UTC day and compares the two adjacent
// periods. change is (current - previous) / previous * 100 over fake
// percentages and falls inside the deadband as STABLE.
func BuildTrend(points []domain.LabeledPoint, now time.Time, days int, deadband float64) domain.TrendWindow {
	now = now.UTC()
	currentStart, previousStart := windowBounds(now, days)

	daily := make([]domain.DayCount, days)
	index := make(map[string]int, days)
	for i := range daily {
		day := currentStart.AddDate(0, 0, i).Format(dayLayout)
		daily[i].Day = day
		index[day] = i
	}

	current := domain.PeriodStats{Start: currentStart, End: now}
	previous := domain.PeriodStats{Start: previousStart, End: currentStart}

	for _, p := range points {
		at := p.CreatedAt.UTC()
		var period *domain.PeriodStats
		switch {
		case at.Before(previousStart) || at.After(now):
			continue
		case at.Before(currentStart):
			period = &previous
		default:
			period = &current
		}

		period.Total++
		switch p.Label {
		case domain.LabelFake:
			period.Fake++
		case domain.LabelReal:
			period.Real++
		}

		if period != &current {
			continue
		}
		if i, ok := index[at.Format(dayLayout)]; ok {
			daily[i].Total++
			switch p.Label {
			case domain.LabelFake:
				daily[i].Fake++
			case domain.LabelReal:
				daily[i].Real++
			}
		}
	}

	current.FakePercentage = round2(percentage(current.Fake, current.Total))
	previous.FakePercentage = round2(percentage(previous.Fake, previous.Total))

	change := changePercentage(current.FakePercentage, previous.FakePercentage)
	direction := Direction(change, deadband)

	trend := domain.TrendWindow{
		Days:             days,
		Current:          current,
		Previous:         previous,
		ChangePercentage: change,
		Direction:        direction,
		Daily:            daily,
		DailyAvgFake:     round2(float64(current.Fake) / float64(days)),
		Interpretation:   interpret(direction, change),
	}

	for i := range daily {
		if daily[i].Fake == 0 {
			continue
		}
		if trend.PeakDay == nil || daily[i].Fake > trend.PeakDay.Fake {
			peak := daily[i]
			trend.PeakDay = &peak
		}
	}
	return trend
}

// changePercentage is 0 when there is no previous fake share to compare with.
func changePercentage(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return round2((current - previous) / previous * 100)
}

// Direction classifies a change against a symmetric deadband around zero.
func Direction(change, deadband float64) domain.Direction {
	switch {
	case math.Abs(change) < deadband:
		return domain.DirectionStable
	case change > 0:
		return domain.DirectionIncreasing
	default:
		return domain.DirectionDecreasing
	}
}

func interpret(direction domain.Direction, change float64) string {
	switch {
	case direction == domain.DirectionStable:
		return "Fake news share is stable compared to the previous period."
	case change >= 20:
		return fmt.Sprintf("Significant increase in fake news share (%+.1f%%).", change)
	case change > 0:
		return fmt.Sprintf("Moderate increase in fake news share (%+.1f%%).", change)
	case change <= -20:
		return fmt.Sprintf("Significant decrease in fake news share (%+.1f%%).", change)
	default:
		return fmt.Sprintf("Moderate decrease in fake news share (%+.1f%%).", change)
	}
}
