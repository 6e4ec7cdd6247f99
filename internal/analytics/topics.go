package analytics

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"FakeNewsScanner/internal/domain"
)

const (
	topicMinConfidence = 0.7
	topicTitleLimit    = 1000
	topicSamples       = 3
)

var wordPattern = regexp.MustCompile(`\b[a-z]{4,}\b`)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for of with by from as is was are were
		been be have has had do does did will would could should may might must can it its this that these
		those i you he she we they what which who when where why how all each every says said new just after
		before video news`) {
		stopwords[w] = struct{}{}
	}
}

// TrendingTopics ranks keywords across confident fake predictions of the last
// days days.
func (s *Service) TrendingTopics(ctx context.Context, days, top int) ([]domain.TrendingTopic, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be positive", domain.ErrInvalidInput)
	}
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	titles, err := s.repo.FakeTitlesSince(ctx, since, topicMinConfidence, topicTitleLimit)
	if err != nil {
		return nil, fmt.Errorf("fake titles: %w", err)
	}
	return ExtractTopics(titles, top), nil
}

// ExtractTopics counts each keyword once per title. The trending score is the
// share of titles mentioning it.
func ExtractTopics(titles []string, top int) []domain.TrendingTopic {
	if len(titles) == 0 {
		return []domain.TrendingTopic{}
	}

	counts := make(map[string]int)
	samples := make(map[string][]string)
	for _, title := range titles {
		seen := make(map[string]bool)
		for _, word := range wordPattern.FindAllString(strings.ToLower(title), -1) {
			if _, stop := stopwords[word]; stop || seen[word] {
				continue
			}
			seen[word] = true
			counts[word]++
			if len(samples[word]) < topicSamples {
				samples[word] = append(samples[word], title)
			}
		}
	}

	topics := make([]domain.TrendingTopic, 0, len(counts))
	for word, n := range counts {
		topics = append(topics, domain.TrendingTopic{
			Keyword:       word,
			Frequency:     n,
			TrendingScore: round2(float64(n) / float64(len(titles)) * 100),
			SampleTitles:  samples[word],
		})
	}
	slices.SortFunc(topics, func(a, b domain.TrendingTopic) int {
		if c := cmp.Compare(b.Frequency, a.Frequency); c != 0 {
			return c
		}
		return strings.Compare(a.Keyword, b.Keyword)
	})
	return truncate(topics, top)
}
