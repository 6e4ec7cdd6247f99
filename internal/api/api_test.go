package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"FakeNewsScanner/internal/analytics"
	"FakeNewsScanner/internal/classifier"
	"FakeNewsScanner/internal/config"
	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/infrastructure/storage"
	"FakeNewsScanner/internal/logging"
	"FakeNewsScanner/internal/usecase"
)

const testKey = "secret"

type stubFast struct{}

func (stubFast) Classify(_ context.Context, text string) (domain.FastResult, error) {
	if strings.Contains(strings.ToLower(text), "shocking") {
		return domain.FastResult{Label: domain.LabelFake, Confidence: 0.92, Model: "stub"}, nil
	}
	return domain.FastResult{Label: domain.LabelReal, Confidence: 0.81, Model: "stub"}, nil
}

type stubSource struct {
	items []domain.Item
}

func (stubSource) Scopes() []string { return []string{"news"} }

func (stubSource) Community(scope string) string { return scope }

func (s stubSource) Scan(context.Context, string, time.Time, time.Time, int) iter.Seq2[domain.Item, error] {
	return func(yield func(domain.Item, error) bool) {
		for _, item := range s.items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

type statusOnly struct {
	Status string `json:"status"`
}

type testEnv struct {
	handler http.Handler
	store   *storage.Store
	batch   *usecase.BatchPredictor
}

func newTestEnv(t *testing.T, source stubSource) testEnv {
	t.Helper()

	ctx := context.Background()
	store, err := storage.Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.Discard()
	policy := config.Default().Policy
	cls := classifier.New(stubFast{}, nil, policy.LowConfidence, logger)
	svc := analytics.New(store, nil, policy, logger)
	predictor := usecase.NewPredictor(cls, store, svc, policy.MinPosts, logger)
	crawlCfg := config.Default().Crawl
	crawlCfg.PredictConcurrency = 1

	crawler := usecase.NewCrawler(usecase.CrawlerDeps{
		Source:     source,
		Items:      store,
		Watermarks: store,
		Predictor:  predictor,
		Config:     crawlCfg,
		Logger:     logger,
	})
	batch := usecase.NewBatchPredictor(store, predictor, 2, logger)

	handler := Routes(Deps{
		Items:      store,
		Watermarks: store,
		Store:      store,
		Analytics:  svc,
		Analyzer: usecase.NewAnalyzer(usecase.AnalyzerDeps{
			Classifier: cls,
			Predictor:  predictor,
			Items:      store,
			Scorer:     svc,
			MinPosts:   policy.MinPosts,
			Logger:     logger,
		}),
		Batch:     batch,
		Scheduler: usecase.NewScheduler(nil, crawler, nil, "", logger),
		APIKey:    testKey,
		Logger:    logger,
	})
	return testEnv{handler: handler, store: store, batch: batch}
}

func (e testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, payload)
	if method == http.MethodPost {
		req.Header.Set(apiKeyHeader, testKey)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func seed(t *testing.T, store *storage.Store, n int) []domain.Item {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	items := make([]domain.Item, 0, n)
	for i := range n {
		items = append(items, domain.Item{
			ID:        fmt.Sprintf("item%d", i),
			Title:     fmt.Sprintf("Shocking headline number %d", i),
			Community: "news",
			Domain:    "example.com",
			URL:       "https://example.com/" + fmt.Sprint(i),
			CreatedAt: now.Add(-time.Duration(i+1) * time.Hour),
			CrawledAt: now,
		})
	}
	inserted, err := store.InsertItems(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, inserted, n)
	return items
}

func TestMapHTTPStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{domain.ErrInvalidDomain, http.StatusBadRequest},
		{domain.ErrInsufficientText, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrAlreadyPredicted, http.StatusConflict},
		{fmt.Errorf("fast classifier: %w", domain.ErrClassifierUnavailable), http.StatusBadGateway},
		{domain.ErrReasoningUnavailable, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, MapHTTPStatus(tc.err), tc.err.Error())
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubSource{})
	seed(t, env.store, 2)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[healthResponse](t, rec)
	require.Equal(t, "healthy", health.Status)
	require.True(t, health.Database.Connected)
	require.Equal(t, 2, health.Database.Items)
	require.Equal(t, usecase.StateIdle, health.Scheduler.State)

	require.NoError(t, env.store.Close())
	rec = env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "unhealthy", decode[healthResponse](t, rec).Status)
}

func TestAPIKeyGuardsPostOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubSource{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/crawler/run", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/crawler/run", nil)
	req.Header.Set(apiKeyHeader, "wrong")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/crawler/status", nil).Code)
}

func TestAnalyzeText(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubSource{})

	rec := env.do(t, http.MethodPost, "/api/v1/analyze/text", usecase.TextRequest{
		Title:     "Shocking cure doctors will not tell you about",
		SourceURL: "https://example.com/a",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Kind         domain.PredictionKind `json:"kind"`
		SourceDomain string                `json:"source_domain"`
		Explanation  string                `json:"explanation"`
		Prediction   struct {
			Label domain.Label `json:"label"`
		} `json:"prediction"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, domain.KindBasic, body.Kind)
	require.Equal(t, domain.LabelFake, body.Prediction.Label)
	require.Equal(t, "example.com", body.SourceDomain)
	require.NotEmpty(t, body.Explanation)

	rec = env.do(t, http.MethodPost, "/api/v1/analyze/text", usecase.TextRequest{Title: "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decode[errorBody](t, rec).Error, "title")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/text", strings.NewReader("{not json"))
	req.Header.Set(apiKeyHeader, testKey)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/analyze/url", analyzeURLRequest{URL: "https://www.reddit.com/r/news/comments/abc/x/"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListItemsPaginates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubSource{})
	items := seed(t, env.store, 3)

	rec := env.do(t, http.MethodGet, "/api/v1/items?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		NextCursor *string `json:"next_cursor"`
	}](t, rec)
	require.Len(t, page.Items, 2)
	require.Equal(t, items[0].ID, page.Items[0].ID)
	require.NotNil(t, page.NextCursor)

	rec = env.do(t, http.MethodGet, "/api/v1/items?limit=2&cursor="+url.QueryEscape(*page.NextCursor), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rest := decode[struct {
		Items      []json.RawMessage `json:"items"`
		NextCursor *string           `json:"next_cursor"`
	}](t, rec)
	require.Len(t, rest.Items, 1)
	require.Nil(t, rest.NextCursor)

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/items?label=maybe", nil).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/items?limit=101", nil).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/items?cursor=%25%25", nil).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/items/missing", nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v1/items/"+items[1].ID, nil).Code)
}

func TestPredictItemConflict(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubSource{})
	items := seed(t, env.store, 1)
	target := "/api/v1/items/" + items[0].ID + "/predict"

	rec := env.do(t, http.MethodPost, target, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "predicted", decode[statusOnly](t, rec).Status)

	rec = env.do(t, http.MethodPost, target, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "already_predicted", decode[statusOnly](t, rec).Status)

	rec = env.do(t, http.MethodPost, target+"?force=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, target+"?force=maybe", nil).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/items/nope/predict", nil).Code)
}

func TestAnalyticsValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, stubSource{})

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/credibility/exa..mple.com", nil).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/credibility/example.com?min_posts=0", nil).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/trends?days=0", nil).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/trends?days=366", nil).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/risk?days=31", nil).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/credibility/top?limit=0", nil).Code)

	rec := env.do(t, http.MethodGet, "/api/v1/credibility/www.Example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cred := decode[domain.DomainCredibility](t, rec)
	require.Equal(t, "example.com", cred.Domain)
	require.Nil(t, cred.Score)
	require.Equal(t, domain.TierUnknown, cred.RiskTier)

	for _, target := range []string{
		"/api/v1/stats",
		"/api/v1/trends?days=7&community=news",
		"/api/v1/trends/topics",
		"/api/v1/risk",
		"/api/v1/report?days=30",
		"/api/v1/credibility/top",
		"/api/v1/credibility/warnings",
	} {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, target, nil).Code, target)
	}
}

func TestCrawlerRunAndBatch(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC().Truncate(time.Second)
	env := newTestEnv(t, stubSource{items: []domain.Item{
		{ID: "c1", Title: "Shocking leak", Community: "news", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "c2", Title: "Budget passes", Community: "news", CreatedAt: now.Add(-time.Hour)},
	}})

	rec := env.do(t, http.MethodGet, "/api/v1/predictions/batch", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/crawler/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[domain.RunSummary](t, rec)
	require.Equal(t, domain.SummaryCompleted, summary.Status)
	require.Equal(t, 2, summary.Inserted)
	require.Equal(t, 1, summary.Fake)

	rec = env.do(t, http.MethodGet, "/api/v1/crawler/status", nil)
	status := decode[usecase.CrawlerStatus](t, rec)
	require.Equal(t, usecase.StateIdle, status.State)
	require.NotNil(t, status.LastRun)

	rec = env.do(t, http.MethodGet, "/api/v1/crawler/watermarks", nil)
	marks := decode[struct {
		Watermarks []domain.CrawlWatermark `json:"watermarks"`
	}](t, rec)
	require.Len(t, marks.Watermarks, 1)
	require.Equal(t, "news", marks.Watermarks[0].Scope)

	seed(t, env.store, 2)
	rec = env.do(t, http.MethodPost, "/api/v1/predictions/batch?limit=10", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.batch.Wait()

	rec = env.do(t, http.MethodGet, "/api/v1/predictions/batch", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode[batchResponse](t, rec)
	require.Equal(t, "completed", job.Status)
	require.Equal(t, 2, job.Job.Successful)

	rec = env.do(t, http.MethodGet, "/api/v1/stats", nil)
	stats := decode[statsResponse](t, rec)
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 4, stats.Predicted)
	require.Equal(t, 100.0, stats.Coverage)
}
