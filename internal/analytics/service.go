package analytics

import (
	"log/slog"
	"math"
	"time"

	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/ports"
)

// Service answers the read-only credibility, trend and risk queries.
type Service struct {
	repo   ports.AnalyticsRepository
	cache  ports.CredibilityCache
	policy config.PolicyConfig
	logger *slog.Logger
	now    func() time.Time
}

// New builds the analytics service. cache may be nil.
func New(repo ports.AnalyticsRepository, cache ports.CredibilityCache, policy config.PolicyConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Policy exposes the thresholds the service was built with.
func (s *Service) Policy() config.PolicyConfig {
	return s.policy
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
