package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"FakeNewsScanner/internal/classifier"
	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
)

var crawlNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu         sync.Mutex
	items      map[string]domain.Item
	watermarks map[string]domain.CrawlWatermark
	countErr   error
}

func newMemStore(items ...domain.Item) *memStore {
	s := &memStore{items: make(map[string]domain.Item), watermarks: make(map[string]domain.CrawlWatermark)}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *memStore) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *memStore) InsertItems(_ context.Context, items []domain.Item) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted []domain.Item
	for _, item := range items {
		if _, ok := s.items[item.ID]; ok {
			continue
		}
		s.items[item.ID] = item
		inserted = append(inserted, item)
	}
	return inserted, nil
}

func (s *memStore) GetItem(_ context.Context, id string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.Item{}, domain.ErrNotFound
	}
	return item, nil
}

func (s *memStore) ListItems(_ context.Context, _ ports.ItemFilter) ([]domain.Item, error) {
	return s.sorted(func(domain.Item) bool { return true }, 0), nil
}

func (s *memStore) ListUnpredicted(_ context.Context, limit int) ([]domain.Item, error) {
	return s.sorted(func(item domain.Item) bool { return !item.HasPrediction() }, limit), nil
}

func (s *memStore) sorted(keep func(domain.Item) bool, limit int) []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Item
	for _, item := range s.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *memStore) CountItems(_ context.Context, community string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, item := range s.items {
		if community == "" || strings.EqualFold(item.Community, community) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) LatestCreatedAt(_ context.Context, community string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	for _, item := range s.items {
		if strings.EqualFold(item.Community, community) && item.CreatedAt.After(latest) {
			latest = item.CreatedAt
		}
	}
	return latest, !latest.IsZero(), nil
}

func (s *memStore) SavePrediction(_ context.Context, id string, p domain.Prediction, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if item.HasPrediction() && !force {
		return domain.ErrAlreadyPredicted
	}
	item.Prediction = p
	s.items[id] = item
	return nil
}

func (s *memStore) LoadWatermark(_ context.Context, scope string) (domain.CrawlWatermark, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wm, ok := s.watermarks[scope]
	return wm, ok, nil
}

func (s *memStore) SaveWatermark(_ context.Context, wm domain.CrawlWatermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[wm.Scope] = wm
	return nil
}

func (s *memStore) ListWatermarks(context.Context) ([]domain.CrawlWatermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CrawlWatermark
	for _, wm := range s.watermarks {
		out = append(out, wm)
	}
	return out, nil
}

type fakeSource struct {
	items     []domain.Item
	failAfter int

	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *fakeSource) Scopes() []string { return []string{"news"} }

func (f *fakeSource) Community(scope string) string { return scope }

func (f *fakeSource) Scan(context.Context, string, time.Time, time.Time, int) iter.Seq2[domain.Item, error] {
	return func(yield func(domain.Item, error) bool) {
		if f.entered != nil {
			f.once.Do(func() { close(f.entered) })
		}
		if f.release != nil {
			<-f.release
		}
		for i, item := range f.items {
			if f.failAfter > 0 && i == f.failAfter {
				yield(domain.Item{}, fmt.Errorf("page 2: %w", domain.ErrFetchFailure))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

type fakeFast struct {
	gate chan struct{}
}

func (f fakeFast) Classify(_ context.Context, text string) (domain.FastResult, error) {
	if f.gate != nil {
		<-f.gate
	}
	if strings.Contains(strings.ToLower(text), "shocking") {
		return domain.FastResult{Label: domain.LabelFake, Confidence: 0.9, Model: "test"}, nil
	}
	return domain.FastResult{Label: domain.LabelReal, Confidence: 0.55, Model: "test"}, nil
}

type fakeReasoning struct{}

func (fakeReasoning) Classify(context.Context, string) (domain.ReasoningResult, error) {
	return domain.ReasoningResult{Label: domain.LabelFake, Confidence: 0.8, Rationale: "unsourced claim", Model: "test"}, nil
}

func (fakeReasoning) Explain(context.Context, string, domain.FastResult) (string, error) {
	return "The claim has no source.", nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, digest)
	return nil
}

func item(id string, created time.Time, title string) domain.Item {
	return domain.Item{ID: id, Title: title, Community: "news", CreatedAt: created}
}

func testCrawlConfig() config.CrawlConfig {
	return config.CrawlConfig{
		HistoricalMonths:   5,
		HistoricalLimit:    500,
		IncrementalLimit:   100,
		AutoPredict:        true,
		PredictConcurrency: 2,
	}
}

func newTestCrawler(store *memStore, source ports.ItemSource, fast fakeFast) *Crawler {
	cls := classifier.New(fast, nil, 0.6, nil)
	c := NewCrawler(CrawlerDeps{
		Source:     source,
		Items:      store,
		Watermarks: store,
		Predictor:  NewPredictor(cls, store, nil, 5, nil),
		Config:     testCrawlConfig(),
	})
	c.now = func() time.Time { return crawlNow }
	return c
}

func TestFilterOutcomes(t *testing.T) {
	t.Parallel()

	start, end := crawlNow.Add(-24*time.Hour), crawlNow
	store := newMemStore(item("stored", crawlNow.Add(-time.Hour), "old"))
	f := NewFilter(store, start, end)

	ctx := context.Background()
	cases := []struct {
		item domain.Item
		want Outcome
	}{
		{item("fresh", crawlNow.Add(-2*time.Hour), "a"), OutcomeNew},
		{item("fresh", crawlNow.Add(-2*time.Hour), "a"), OutcomeDuplicate},
		{item("stored", crawlNow.Add(-time.Hour), "old"), OutcomeDuplicate},
		{item("ancient", start.Add(-time.Second), "b"), OutcomeOutOfWindow},
		{item("future", end.Add(time.Second), "c"), OutcomeOutOfWindow},
		{item("edge", start, "d"), OutcomeNew},
	}
	for _, tc := range cases {
		got, err := f.Check(ctx, tc.item)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, tc.item.ID)
	}
	require.Equal(t, FilterStats{New: 2, Duplicate: 2, OutOfWindow: 2}, f.Stats())
}

func TestFilterApplyKeepsOrder(t *testing.T) {
	t.Parallel()

	store := newMemStore(item("b", crawlNow.Add(-time.Hour), "x"))
	f := NewFilter(store, crawlNow.Add(-time.Hour*24), crawlNow)
	fresh, err := f.Apply(context.Background(), []domain.Item{
		item("c", crawlNow.Add(-3*time.Hour), "x"),
		item("b", crawlNow.Add(-time.Hour), "x"),
		item("a", crawlNow.Add(-2*time.Hour), "x"),
		item("c", crawlNow.Add(-3*time.Hour), "x"),
	})
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	require.Equal(t, "c", fresh[0].ID)
	require.Equal(t, "a", fresh[1].ID)
}

func TestPlanHistoricalThenIncremental(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	c := newTestCrawler(store, &fakeSource{}, fakeFast{})

	mode, start, limit, err := c.Plan(ctx, "news", crawlNow)
	require.NoError(t, err)
	require.Equal(t, domain.ModeHistorical, mode)
	require.Equal(t, crawlNow.AddDate(0, -5, 0), start)
	require.Equal(t, 500, limit)

	latest := crawlNow.Add(-6 * time.Hour)
	store.items["x"] = item("x", latest, "stored")
	mode, start, limit, err = c.Plan(ctx, "news", crawlNow)
	require.NoError(t, err)
	require.Equal(t, domain.ModeIncremental, mode)
	require.Equal(t, latest, start)
	require.Equal(t, 100, limit)

	mark := crawlNow.Add(-time.Hour)
	require.NoError(t, store.SaveWatermark(ctx, domain.CrawlWatermark{Scope: "news", LastRun: mark}))
	_, start, _, err = c.Plan(ctx, "news", crawlNow)
	require.NoError(t, err)
	require.Equal(t, mark, start)
}

func TestCrawlScopeTwiceInsertsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	source := &fakeSource{items: []domain.Item{
		item("a", crawlNow.Add(-3*time.Hour), "Shocking cure they hide"),
		item("b", crawlNow.Add(-2*time.Hour), "Council approves budget"),
		item("b", crawlNow.Add(-2*time.Hour), "Council approves budget"),
	}}
	c := newTestCrawler(store, source, fakeFast{})

	run, wm := c.CrawlScope(ctx, "news")
	require.Equal(t, domain.RunSucceeded, run.Status)
	require.Equal(t, domain.ModeHistorical, run.Mode)
	require.Equal(t, 3, run.Fetched)
	require.Equal(t, 2, run.Inserted)
	require.Equal(t, 1, run.Duplicates)
	require.Equal(t, 2, run.Predicted)
	require.Equal(t, 1, run.FakeDetected)
	require.Equal(t, crawlNow, wm.LastRun)

	stored, err := store.GetItem(ctx, "a")
	require.NoError(t, err)
	require.True(t, stored.HasPrediction())
	require.Equal(t, domain.KindBasic, stored.Prediction.Kind())

	run, _ = c.CrawlScope(ctx, "news")
	require.Equal(t, domain.ModeIncremental, run.Mode)
	require.Equal(t, crawlNow, run.WindowStart)
	require.Zero(t, run.Inserted)
	require.Len(t, store.items, 2)
}

func TestCrawlScopeMixedCaseScopeGoesIncremental(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	source := &fakeSource{items: []domain.Item{item("a", crawlNow.Add(-time.Hour), "Council approves budget")}}
	c := newTestCrawler(store, source, fakeFast{})

	run, _ := c.CrawlScope(ctx, "News")
	require.Equal(t, domain.ModeHistorical, run.Mode)
	require.Equal(t, 1, run.Inserted)

	run, _ = c.CrawlScope(ctx, "News")
	require.Equal(t, domain.ModeIncremental, run.Mode)
	require.Equal(t, crawlNow, run.WindowStart)
	require.Zero(t, run.Inserted)
	require.Equal(t, 1, run.OutOfWindow)
}

func TestCrawlScopePartialFailureAdvancesWatermark(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	source := &fakeSource{failAfter: 2, items: []domain.Item{
		item("a", crawlNow.Add(-3*time.Hour), "one"),
		item("b", crawlNow.Add(-2*time.Hour), "two"),
		item("c", crawlNow.Add(-time.Hour), "three"),
	}}
	c := newTestCrawler(store, source, fakeFast{})

	run, _ := c.CrawlScope(ctx, "news")
	require.Equal(t, domain.RunPartial, run.Status)
	require.Equal(t, 2, run.Inserted)
	require.Equal(t, 1, run.Errors)
	require.Contains(t, run.Error, "fetch failure")

	wm, ok, err := store.LoadWatermark(ctx, "news")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, crawlNow, wm.LastRun)
	require.Equal(t, domain.RunPartial, wm.Run.Status)
}

func TestCrawlScopeFailedBeforeFirstItem(t *testing.T) {
	t.Parallel()

	c := newTestCrawler(newMemStore(), &erroringSource{}, fakeFast{})
	run, wm := c.CrawlScope(context.Background(), "news")
	require.Equal(t, domain.RunFailed, run.Status)
	require.Zero(t, run.Fetched)
	require.Equal(t, crawlNow, wm.LastRun)
}

func TestCrawlScopeRecordsFailedPlan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	mark := crawlNow.Add(-6 * time.Hour)
	require.NoError(t, store.SaveWatermark(ctx, domain.CrawlWatermark{Scope: "news", LastRun: mark}))
	store.countErr = errors.New("database is locked")

	run, wm := newTestCrawler(store, &fakeSource{}, fakeFast{}).CrawlScope(ctx, "news")
	require.Equal(t, domain.RunFailed, run.Status)
	require.Contains(t, run.Error, "database is locked")
	require.Equal(t, mark, wm.LastRun)

	stored, ok, err := store.LoadWatermark(ctx, "news")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, mark, stored.LastRun)
	require.Equal(t, domain.RunFailed, stored.Run.Status)
}

type erroringSource struct{ fakeSource }

func (*erroringSource) Scan(context.Context, string, time.Time, time.Time, int) iter.Seq2[domain.Item, error] {
	return func(yield func(domain.Item, error) bool) {
		yield(domain.Item{}, fmt.Errorf("listing: %w", domain.ErrFetchFailure))
	}
}

func TestSchedulerCoalescesTriggers(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		items:   []domain.Item{item("a", crawlNow.Add(-time.Hour), "x")},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	notifier := &recordingNotifier{}
	s := NewScheduler(nil, newTestCrawler(newMemStore(), source, fakeFast{}), []ports.Notifier{notifier}, "@every 30m", nil)

	done := make(chan domain.RunSummary)
	go func() { done <- s.Trigger(context.Background()) }()
	<-source.entered

	require.Equal(t, StateRunning, s.Status().State)
	skipped := s.Trigger(context.Background())
	require.Equal(t, domain.SummarySkipped, skipped.Status)
	require.Equal(t, domain.ReasonRunning, skipped.Reason)

	close(source.release)
	summary := <-done
	require.Equal(t, domain.SummaryCompleted, summary.Status)
	require.Equal(t, 1, summary.Inserted)

	status := s.Status()
	require.Equal(t, StateIdle, status.State)
	require.NotNil(t, status.LastRun)
	require.Equal(t, summary.ID, status.LastRun.ID)
	require.Equal(t, []string{"news"}, status.Sources)
	require.False(t, status.Enabled)
	require.Len(t, notifier.messages, 1)
	require.Contains(t, notifier.messages[0], "r/news (historical): 1 new")
}

func TestSchedulerNotifiesOnlyWithNewItems(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	s := NewScheduler(nil, newTestCrawler(newMemStore(), &fakeSource{}, fakeFast{}), []ports.Notifier{notifier}, "", nil)
	summary := s.Trigger(context.Background())
	require.Zero(t, summary.Inserted)
	require.Empty(t, notifier.messages)
}

func TestBatchPredictorRejectsConcurrentJob(t *testing.T) {
	t.Parallel()

	store := newMemStore(
		item("a", crawlNow, "Shocking news"),
		item("b", crawlNow, "Calm news"),
		item("c", crawlNow, "Other news"),
	)
	gate := make(chan struct{})
	cls := classifier.New(fakeFast{gate: gate}, nil, 0.6, nil)
	batch := NewBatchPredictor(store, NewPredictor(cls, store, nil, 5, nil), 2, nil)

	_, ok := batch.Status()
	require.False(t, ok)

	first, started := batch.Start(context.Background(), 100)
	require.True(t, started)
	require.True(t, first.Running)

	second, started := batch.Start(context.Background(), 100)
	require.False(t, started)
	require.Equal(t, first.ID, second.ID)

	close(gate)
	batch.Wait()

	status, ok := batch.Status()
	require.True(t, ok)
	require.False(t, status.Running)
	require.Equal(t, 3, status.Total)
	require.Equal(t, 3, status.Completed)
	require.Equal(t, 3, status.Successful)
	require.NotNil(t, status.CompletedAt)

	left, err := store.ListUnpredicted(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, left)
}

type fakeLookup struct {
	item domain.Item
}

func (l fakeLookup) PostID(rawURL string) (string, error) {
	if !strings.Contains(rawURL, "/comments/") {
		return "", fmt.Errorf("%w: not a post url", domain.ErrInvalidInput)
	}
	return l.item.ID, nil
}

func (l fakeLookup) FetchItem(context.Context, string) (domain.Item, error) {
	return l.item, nil
}

func newTestAnalyzer(store *memStore, reasoning ports.ReasoningClassifier, lookup ports.ItemLookup) *Analyzer {
	cls := classifier.New(fakeFast{}, reasoning, 0.6, nil)
	return NewAnalyzer(AnalyzerDeps{
		Classifier: cls,
		Predictor:  NewPredictor(cls, store, nil, 5, nil),
		Reasoning:  reasoning,
		Lookup:     lookup,
		Items:      store,
		MinPosts:   5,
	})
}

func TestAnalyzeTextValidation(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(newMemStore(), nil, nil)
	ctx := context.Background()

	_, err := a.AnalyzeText(ctx, TextRequest{Title: "too short"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = a.AnalyzeText(ctx, TextRequest{Title: strings.Repeat("a", 501)})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = a.AnalyzeText(ctx, TextRequest{Title: "A perfectly fine title", Content: strings.Repeat("b", 5001)})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = a.AnalyzeText(ctx, TextRequest{Title: "A perfectly fine title", SourceURL: "http://"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnalyzeTextFallsBackWithoutReasoning(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(newMemStore(), nil, nil)
	res, err := a.AnalyzeText(context.Background(), TextRequest{
		Title:     "Shocking secret the government hides",
		SourceURL: "https://www.Example.com/story",
	})
	require.NoError(t, err)
	require.Equal(t, domain.KindBasic, res.Kind)
	require.Equal(t, domain.LabelFake, res.Prediction.Result().Label)
	require.Equal(t, "example.com", res.SourceDomain)
	require.NotEmpty(t, res.Explanation)
	require.NotEmpty(t, res.Recommendation)
	require.Greater(t, res.RiskScore, 0.0)
}

func TestAnalyzeTextTwoStage(t *testing.T) {
	t.Parallel()

	a := newTestAnalyzer(newMemStore(), fakeReasoning{}, nil)
	res, err := a.AnalyzeText(context.Background(), TextRequest{Title: "Council approves the new budget"})
	require.NoError(t, err)
	require.Equal(t, domain.KindEnhanced, res.Kind)
	// fast confidence 0.55 is below the cut, so the reasoning label wins
	require.Equal(t, domain.LabelFake, res.Prediction.Result().Label)
	require.Equal(t, "The claim has no source.", res.Explanation)

	quick, err := a.AnalyzeText(context.Background(), TextRequest{Title: "Council approves the new budget", Quick: true})
	require.NoError(t, err)
	require.Equal(t, domain.KindBasic, quick.Kind)
	require.Empty(t, quick.Explanation)
}

func TestAnalyzeURL(t *testing.T) {
	t.Parallel()

	post := item("abc123", crawlNow, "Shocking miracle cure")
	post.Domain = "hoax-news.com"
	a := newTestAnalyzer(newMemStore(), nil, fakeLookup{item: post})

	res, err := a.AnalyzeURL(context.Background(), "https://www.reddit.com/r/news/comments/abc123/x/")
	require.NoError(t, err)
	require.NotNil(t, res.Item)
	require.Equal(t, "abc123", res.Item.ID)
	require.Equal(t, "hoax-news.com", res.SourceDomain)

	_, err = a.AnalyzeURL(context.Background(), "https://example.com/")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = newTestAnalyzer(newMemStore(), nil, nil).AnalyzeURL(context.Background(), "x")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPredictItemAlreadyPredicted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore(item("a", crawlNow, "Shocking claim spreads"))
	a := newTestAnalyzer(store, nil, nil)

	first, err := a.PredictItem(ctx, "a", false, false)
	require.NoError(t, err)
	require.Equal(t, domain.LabelFake, first.Prediction.Result().Label)

	again, err := a.PredictItem(ctx, "a", false, false)
	require.ErrorIs(t, err, domain.ErrAlreadyPredicted)
	require.Equal(t, first.Prediction, again.Prediction)

	forced, err := a.PredictItem(ctx, "a", true, false)
	require.NoError(t, err)
	require.NotNil(t, forced.Prediction)

	_, err = a.PredictItem(ctx, "missing", false, false)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSchedulerStopWaitsForRunningCrawl(t *testing.T) {
	t.Parallel()

	source := &fakeSource{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(nil, newTestCrawler(newMemStore(), source, fakeFast{}), nil, "", nil)

	done := make(chan struct{})
	go func() {
		s.Trigger(context.Background())
		close(done)
	}()
	<-source.entered

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)

	close(source.release)
	<-done
	require.NoError(t, s.Stop(context.Background()))
}
