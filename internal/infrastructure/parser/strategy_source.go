package parser

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
	"FakeNewsScanner/internal/scanner"
)

// StrategySource implements ItemSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sources  map[string]config.SourceConfig
	scopes   []string
	logger   *slog.Logger
}

var _ ports.ItemSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	s := &StrategySource{
		registry: reg,
		sources:  make(map[string]config.SourceConfig, len(sources)),
		logger:   log,
	}
	for _, src := range sources {
		if _, dup := s.sources[src.Name]; dup {
			continue
		}
		s.sources[src.Name] = src
		s.scopes = append(s.scopes, src.Name)
	}
	return s
}

// Scopes lists configured communities in config order.
func (s *StrategySource) Scopes() []string {
	return append([]string(nil), s.scopes...)
}

// Community returns the community a scope crawls, honoring the
// "community" option.
func (s *StrategySource) Community(scope string) string {
	if v := s.sources[scope].Options["community"]; v != "" {
		return v
	}
	return scope
}

// Scan resolves the scope's scanner and delegates to it.
func (s *StrategySource) Scan(ctx context.Context, scope string, start, end time.Time, limit int) iter.Seq2[domain.Item, error] {
	src, ok := s.sources[scope]
	if !ok {
		return failed(fmt.Errorf("%w: unknown source %s", domain.ErrFetchFailure, scope))
	}
	if s.registry == nil {
		return failed(fmt.Errorf("%w: scanner registry is not configured", domain.ErrFetchFailure))
	}

	name := src.Scanner
	if name == "" {
		name = redditScannerID
	}
	strategy, err := s.registry.Resolve(name)
	if err != nil {
		return failed(fmt.Errorf("%w: source %s: %w", domain.ErrFetchFailure, scope, err))
	}

	community := s.Community(scope)
	s.debug("scan source", "source", scope, "scanner", name, "from", start.Format(time.RFC3339), "to", end.Format(time.RFC3339), "limit", limit)
	return strategy.Scan(ctx, scanner.Request{
		Community:   community,
		WindowStart: start,
		WindowEnd:   end,
		Limit:       limit,
		Options:     src.Options,
	})
}

func failed(err error) iter.Seq2[domain.Item, error] {
	return func(yield func(domain.Item, error) bool) {
		yield(domain.Item{}, err)
	}
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
