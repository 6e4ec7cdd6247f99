package analytics

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"FakeNewsScanner/internal/domain"
)

var hostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

// NormalizeDomain trims, lowercases and strips a leading "www." before
// validating the hostname shape.
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "www.")
	if d == "" || strings.Contains(d, "..") || strings.ContainsAny(d, `/\`) || !hostnamePattern.MatchString(d) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidDomain, raw)
	}
	return d, nil
}

// Credibility derives the score, tier and breakdown from raw counts. The
// score stays nil while the sample is below minPosts.
func Credibility(counts domain.DomainCounts, minPosts int, bands [3]float64) domain.DomainCredibility {
	fakePct := percentage(counts.Fake, counts.Total)
	result := domain.DomainCredibility{
		Domain:   counts.Domain,
		MinPosts: minPosts,
		Breakdown: domain.Breakdown{
			Total:             counts.Total,
			Fake:              counts.Fake,
			Real:              counts.Real,
			FakeRatio:         round2(fakePct / 100),
			FakePercentage:    round2(fakePct),
			RealPercentage:    round2(percentage(counts.Real, counts.Total)),
			AvgFakeConfidence: round2(counts.AvgFakeConfidence),
			AvgRealConfidence: round2(counts.AvgRealConfidence),
		},
	}

	if counts.Total < minPosts || counts.Total == 0 {
		result.RiskTier = domain.TierUnknown
		result.Recommendation = fmt.Sprintf("Not enough data: %d of %d required posts analyzed.", counts.Total, minPosts)
		return result
	}

	score := round2(max(0, min(100, 100-fakePct)))
	result.Score = &score
	result.RiskTier = tierFor(score, bands)
	result.Recommendation = tierRecommendation(result.RiskTier)
	return result
}

func tierFor(score float64, bands [3]float64) domain.RiskTier {
	switch {
	case score >= bands[0]:
		return domain.TierLow
	case score >= bands[1]:
		return domain.TierMedium
	case score >= bands[2]:
		return domain.TierHigh
	default:
		return domain.TierVeryHigh
	}
}

func tierRecommendation(tier domain.RiskTier) string {
	switch tier {
	case domain.TierLow:
		return "Generally reliable source. Standard verification still applies."
	case domain.TierMedium:
		return "Mixed track record. Cross-check claims with other outlets."
	case domain.TierHigh:
		return "Frequently shares misleading content. Verify before trusting."
	default:
		return "High proportion of fake content. Treat with strong skepticism."
	}
}

// SourceCredibility returns the credibility of one domain.
func (s *Service) SourceCredibility(ctx context.Context, rawDomain string, minPosts int) (domain.DomainCredibility, error) {
	name, err := NormalizeDomain(rawDomain)
	if err != nil {
		return domain.DomainCredibility{}, err
	}
	if minPosts < 1 {
		minPosts = s.policy.MinPosts
	}

	key := fmt.Sprintf("credibility:%s:%d", name, minPosts)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	counts, err := s.repo.DomainCounts(ctx, name)
	if err != nil {
		return domain.DomainCredibility{}, fmt.Errorf("domain counts %s: %w", name, err)
	}
	counts.Domain = name

	result := Credibility(counts, minPosts, s.policy.CredibilityBands)
	if s.cache != nil {
		s.cache.Set(ctx, key, result)
	}
	return result, nil
}

// TopCredible lists the highest-scoring domains among those meeting minPosts.
func (s *Service) TopCredible(ctx context.Context, limit, minPosts int) ([]domain.DomainCredibility, error) {
	rows, err := s.repo.DomainsWithMinimum(ctx, minPosts)
	if err != nil {
		return nil, fmt.Errorf("domains with minimum %d: %w", minPosts, err)
	}

	out := make([]domain.DomainCredibility, 0, len(rows))
	for _, row := range rows {
		c := Credibility(row, minPosts, s.policy.CredibilityBands)
		if c.Score == nil {
			continue
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b domain.DomainCredibility) int {
		if c := cmp.Compare(*b.Score, *a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Breakdown.Total, a.Breakdown.Total); c != 0 {
			return c
		}
		return strings.Compare(a.Domain, b.Domain)
	})
	return truncate(out, limit), nil
}

// Warnings lists domains with the highest fake share among those meeting
// minPosts and carrying at least one fake item.
func (s *Service) Warnings(ctx context.Context, limit, minPosts int) ([]domain.WarningSource, error) {
	rows, err := s.repo.DomainsWithMinimum(ctx, minPosts)
	if err != nil {
		return nil, fmt.Errorf("domains with minimum %d: %w", minPosts, err)
	}

	out := make([]domain.WarningSource, 0, len(rows))
	for _, row := range rows {
		if row.Fake == 0 || row.Total < minPosts {
			continue
		}
		ratio := float64(row.Fake) / float64(row.Total)
		tier := domain.TierHigh
		if ratio > 0.5 {
			tier = domain.TierVeryHigh
		}
		out = append(out, domain.WarningSource{
			Domain:         row.Domain,
			Total:          row.Total,
			Fake:           row.Fake,
			FakePercentage: round2(ratio * 100),
			RiskTier:       tier,
		})
	}

	slices.SortStableFunc(out, func(a, b domain.WarningSource) int {
		if c := cmp.Compare(b.FakePercentage, a.FakePercentage); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Fake, a.Fake); c != 0 {
			return c
		}
		return strings.Compare(a.Domain, b.Domain)
	})
	return truncate(out, limit), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
