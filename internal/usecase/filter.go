package usecase

import (
	"context"
	"fmt"
	"time"

	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
)

// Outcome is the ingestion decision for one fetched item.
type Outcome string

const (
	OutcomeNew         Outcome = "NEW"
	OutcomeDuplicate   Outcome = "DUPLICATE"
	OutcomeOutOfWindow Outcome = "OUT_OF_WINDOW"
)

// FilterStats counts outcomes over the filter's lifetime.
type FilterStats struct {
	New         int
	Duplicate   int
	OutOfWindow int
}

// Filter drops items already stored, repeated within the run, or created
// outside [start, end]. Identity is the platform identifier only.
type Filter struct {
	repo  ports.ItemRepository
	start time.Time
	end   time.Time
	seen  map[string]struct{}
	stats FilterStats
}

// NewFilter scopes a filter to one crawl window.
func NewFilter(repo ports.ItemRepository, start, end time.Time) *Filter {
	return &Filter{repo: repo, start: start, end: end, seen: make(map[string]struct{})}
}

// Check classifies a single item.
func (f *Filter) Check(ctx context.Context, item domain.Item) (Outcome, error) {
	outcomes, err := f.classify(ctx, []domain.Item{item})
	if err != nil {
		return "", err
	}
	return outcomes[0], nil
}

// Apply classifies a batch with one identifier lookup and returns the NEW
// items in input order.
func (f *Filter) Apply(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	outcomes, err := f.classify(ctx, items)
	if err != nil {
		return nil, err
	}
	fresh := make([]domain.Item, 0, len(items))
	for i, o := range outcomes {
		if o == OutcomeNew {
			fresh = append(fresh, items[i])
		}
	}
	return fresh, nil
}

// Stats returns the counters so far.
func (f *Filter) Stats() FilterStats {
	return f.stats
}

func (f *Filter) classify(ctx context.Context, items []domain.Item) ([]Outcome, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	existing, err := f.repo.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup existing ids: %w", err)
	}

	outcomes := make([]Outcome, len(items))
	for i, item := range items {
		_, repeated := f.seen[item.ID]
		switch {
		case item.CreatedAt.Before(f.start) || item.CreatedAt.After(f.end):
			outcomes[i] = OutcomeOutOfWindow
			f.stats.OutOfWindow++
		case repeated || existing[item.ID]:
			outcomes[i] = OutcomeDuplicate
			f.stats.Duplicate++
		default:
			outcomes[i] = OutcomeNew
			f.stats.New++
		}
		f.seen[item.ID] = struct{}{}
	}
	return outcomes, nil
}
