package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"FakeNewsScanner/internal/domain"
)

var domainCountColumns = []string{
	"domain",
	"COUNT(*) AS total",
	"SUM(CASE WHEN prediction_label = 'FAKE' THEN 1 ELSE 0 END) AS fake_count",
	"SUM(CASE WHEN prediction_label = 'REAL' THEN 1 ELSE 0 END) AS real_count",
	"COALESCE(AVG(CASE WHEN prediction_label = 'FAKE' THEN prediction_confidence END), 0) AS avg_fake_confidence",
	"COALESCE(AVG(CASE WHEN prediction_label = 'REAL' THEN prediction_confidence END), 0) AS avg_real_confidence",
}

// DomainCounts aggregates the predicted items of one domain.
func (s *Store) DomainCounts(ctx context.Context, domainName string) (domain.DomainCounts, error) {
	q := s.sb.Select(domainCountColumns...).From("items").
		Where(sq.Eq{"domain": domainName}).
		Where(sq.NotEq{"prediction_label": nil}).
		GroupBy("domain")

	var counts domain.DomainCounts
	err := s.get(ctx, &counts, q)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DomainCounts{Domain: domainName}, nil
	}
	if err != nil {
		return domain.DomainCounts{}, fmt.Errorf("domain counts %s: %w", domainName, err)
	}
	return counts, nil
}

// DomainsWithMinimum aggregates every domain having at least minPosts
// predicted items.
func (s *Store) DomainsWithMinimum(ctx context.Context, minPosts int) ([]domain.DomainCounts, error) {
	q := s.sb.Select(domainCountColumns...).From("items").
		Where(sq.NotEq{"domain": nil}).
		Where(sq.NotEq{"prediction_label": nil}).
		GroupBy("domain").
		Having("COUNT(*) >= ?", minPosts).
		OrderBy("domain")

	var rows []domain.DomainCounts
	if err := s.selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("domains with minimum: %w", err)
	}
	return rows, nil
}

// LabeledPoints returns predicted items created within [from, to).
func (s *Store) LabeledPoints(ctx context.Context, from, to time.Time, community string) ([]domain.LabeledPoint, error) {
	q := s.sb.Select("created_utc", "prediction_label").From("items").
		Where(sq.NotEq{"prediction_label": nil}).
		Where(sq.GtOrEq{"created_utc": from.Unix()}).
		Where(sq.Lt{"created_utc": to.Unix()})
	if community != "" {
		q = q.Where(communityEq(community))
	}

	var rows []struct {
		CreatedUTC int64  `db:"created_utc"`
		Label      string `db:"prediction_label"`
	}
	if err := s.selectAll(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("labeled points: %w", err)
	}

	points := make([]domain.LabeledPoint, len(rows))
	for i, r := range rows {
		points[i] = domain.LabeledPoint{CreatedAt: time.Unix(r.CreatedUTC, 0).UTC(), Label: domain.Label(r.Label)}
	}
	return points, nil
}

// FakeTitlesSince returns titles of confident fake predictions, newest first.
func (s *Store) FakeTitlesSince(ctx context.Context, since time.Time, minConfidence float64, limit int) ([]string, error) {
	q := s.sb.Select("title").From("items").
		Where(sq.Eq{"prediction_label": string(domain.LabelFake)}).
		Where(sq.GtOrEq{"prediction_confidence": minConfidence}).
		Where(sq.GtOrEq{"created_utc": since.Unix()}).
		OrderBy("created_utc DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	var titles []string
	if err := s.selectAll(ctx, &titles, q); err != nil {
		return nil, fmt.Errorf("fake titles: %w", err)
	}
	return titles, nil
}

// Summary computes whole-store counters.
func (s *Store) Summary(ctx context.Context) (domain.StoreSummary, error) {
	var summary domain.StoreSummary
	var totals struct {
		Total     int `db:"total"`
		Predicted int `db:"predicted"`
	}
	if err := s.get(ctx, &totals, s.sb.Select("COUNT(*) AS total", "COUNT(prediction_label) AS predicted").From("items")); err != nil {
		return summary, fmt.Errorf("summary totals: %w", err)
	}
	summary.Total = totals.Total
	summary.Predicted = totals.Predicted

	for label, dest := range map[domain.Label]*domain.LabelSummary{
		domain.LabelFake: &summary.Fake,
		domain.LabelReal: &summary.Real,
	} {
		q := s.sb.Select(
			"COUNT(*) AS count",
			"COALESCE(AVG(prediction_confidence), 0) AS avg_confidence",
			"COALESCE(AVG(score), 0) AS avg_score",
			"COALESCE(AVG(num_comments), 0) AS avg_comments",
		).From("items").Where(sq.Eq{"prediction_label": string(label)})
		if err := s.get(ctx, dest, q); err != nil {
			return summary, fmt.Errorf("summary %s: %w", label, err)
		}
	}
	return summary, nil
}
