package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"FakeNewsScanner/internal/analytics"
	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
	"FakeNewsScanner/internal/usecase"
)

const maxBodyBytes = 1 << 20

// Deps collects the use cases behind the HTTP surface.
type Deps struct {
	Items      ports.ItemRepository
	Watermarks ports.WatermarkRepository
	Store      ports.AnalyticsRepository
	Analytics  *analytics.Service
	Analyzer   *usecase.Analyzer
	Batch      *usecase.BatchPredictor
	Scheduler  *usecase.Scheduler
	APIKey     string
	Logger     *slog.Logger
}

// Handler serves the read endpoints and the crawl/prediction triggers.
type Handler struct {
	items      ports.ItemRepository
	watermarks ports.WatermarkRepository
	store      ports.AnalyticsRepository
	analytics  *analytics.Service
	analyzer   *usecase.Analyzer
	batch      *usecase.BatchPredictor
	scheduler  *usecase.Scheduler
	logger     *slog.Logger
	now        func() time.Time
}

type healthResponse struct {
	Status    string          `json:"status"`
	Database  databaseHealth  `json:"database"`
	Scheduler schedulerHealth `json:"scheduler"`
	Timestamp time.Time       `json:"timestamp"`
}

type databaseHealth struct {
	Connected bool   `json:"connected"`
	Items     int    `json:"items"`
	Error     string `json:"error,omitempty"`
}

type schedulerHealth struct {
	State   usecase.State `json:"state"`
	Enabled bool          `json:"enabled"`
	NextRun *time.Time    `json:"next_run"`
}

type statsResponse struct {
	Total          int                   `json:"total_posts"`
	Predicted      int                   `json:"predicted"`
	Unpredicted    int                   `json:"unpredicted"`
	Coverage       float64               `json:"coverage_percentage"`
	Fake           domain.LabelSummary   `json:"fake"`
	Real           domain.LabelSummary   `json:"real"`
	FakePercentage float64               `json:"fake_percentage"`
	RealPercentage float64               `json:"real_percentage"`
	Crawler        usecase.CrawlerStatus `json:"crawler"`
	Timestamp      time.Time             `json:"timestamp"`
}

type itemResponse struct {
	*usecase.ItemView
	Body           string                `json:"body,omitempty"`
	Links          []string              `json:"links,omitempty"`
	UpvoteRatio    float64               `json:"upvote_ratio"`
	Flair          string                `json:"flair,omitempty"`
	CrawledAt      time.Time             `json:"crawled_at"`
	PredictionKind domain.PredictionKind `json:"prediction_kind,omitempty"`
	Prediction     domain.Prediction     `json:"prediction,omitempty"`
}

type itemsResponse struct {
	Items      []itemResponse `json:"items"`
	NextCursor *string        `json:"next_cursor,omitempty"`
}

type analyzeURLRequest struct {
	URL string `json:"url"`
}

type predictResponse struct {
	Status string           `json:"status"`
	Result usecase.Analysis `json:"result"`
}

type batchResponse struct {
	Status string              `json:"status"`
	Job    usecase.BatchStatus `json:"job"`
}

// NewHandler builds the handler set.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		items:      deps.Items,
		watermarks: deps.Watermarks,
		store:      deps.Store,
		analytics:  deps.Analytics,
		analyzer:   deps.Analyzer,
		batch:      deps.Batch,
		scheduler:  deps.Scheduler,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Health reports store connectivity and scheduler state; 503 when the store
// cannot be reached.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "healthy", Timestamp: h.now()}

	status := h.scheduler.Status()
	resp.Scheduler = schedulerHealth{State: status.State, Enabled: status.Enabled, NextRun: status.NextRun}

	err := h.store.Ping(ctx)
	if err == nil {
		resp.Database.Items, err = h.items.CountItems(ctx, "")
	}
	if err != nil {
		h.logger.Warn("health check failed", "error", err)
		resp.Status = "unhealthy"
		resp.Database.Error = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Database.Connected = true
	respondJSON(w, http.StatusOK, resp)
}

// Stats returns prediction coverage and label totals.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp := statsResponse{
		Total:       summary.Total,
		Predicted:   summary.Predicted,
		Unpredicted: summary.Total - summary.Predicted,
		Coverage:    percent(summary.Predicted, summary.Total),
		Fake:        summary.Fake,
		Real:        summary.Real,
		Crawler:     h.scheduler.Status(),
		Timestamp:   h.now(),
	}
	resp.FakePercentage = percent(summary.Fake.Count, summary.Predicted)
	resp.RealPercentage = percent(summary.Real.Count, summary.Predicted)
	respondJSON(w, http.StatusOK, resp)
}

// SourceCredibility scores one domain.
func (h *Handler) SourceCredibility(w http.ResponseWriter, r *http.Request) {
	minPosts, err := intQuery(r, "min_posts", h.analytics.Policy().MinPosts, 1, math.MaxInt32)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	cred, err := h.analytics.SourceCredibility(r.Context(), r.PathValue("domain"), minPosts)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, cred)
}

// TopCredible lists the most credible domains.
func (h *Handler) TopCredible(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 10, 1, 100)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	minPosts, err := intQuery(r, "min_posts", h.analytics.Policy().TopCredibleMinimum, 1, math.MaxInt32)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	sources, err := h.analytics.TopCredible(r.Context(), limit, minPosts)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sources": sources, "count": len(sources), "min_posts": minPosts})
}

// Warnings lists domains with a notable fake share.
func (h *Handler) Warnings(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 10, 1, 100)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	minPosts, err := intQuery(r, "min_posts", h.analytics.Policy().WarningMinimum, 1, math.MaxInt32)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	sources, err := h.analytics.Warnings(r.Context(), limit, minPosts)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sources": sources, "count": len(sources), "min_posts": minPosts})
}

// Trend compares the last N days with the N days before.
func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", 7, 1, 365)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	trend, err := h.analytics.Trend(r.Context(), days, r.URL.Query().Get("community"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, trend)
}

// TrendingTopics lists keywords frequent among confident fake predictions.
func (h *Handler) TrendingTopics(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", 7, 1, 365)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	top, err := intQuery(r, "top", 20, 1, 100)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	topics, err := h.analytics.TrendingTopics(r.Context(), days, top)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"days": days, "topics": topics})
}

// Risk returns the combined risk score with its factors.
func (h *Handler) Risk(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", 7, 1, 30)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	risk, err := h.analytics.Risk(r.Context(), days, r.URL.Query().Get("community"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, risk)
}

// Report assembles the comprehensive report.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	days, err := intQuery(r, "days", 30, 1, 365)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	report, err := h.analytics.Report(r.Context(), days)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// AnalyzeText classifies free text.
func (h *Handler) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req usecase.TextRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.analyzer.AnalyzeText(r.Context(), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// AnalyzeURL classifies a platform post by URL.
func (h *Handler) AnalyzeURL(w http.ResponseWriter, r *http.Request) {
	var req analyzeURLRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondError(w, h.logger, fmt.Errorf("%w: url is required", domain.ErrInvalidInput))
		return
	}

	result, err := h.analyzer.AnalyzeURL(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// TriggerCrawl runs a crawl and returns its summary. A crawl in progress
// yields a skipped summary rather than an error.
func (h *Handler) TriggerCrawl(w http.ResponseWriter, r *http.Request) {
	summary := h.scheduler.Trigger(context.WithoutCancel(r.Context()))
	respondJSON(w, http.StatusOK, summary)
}

// CrawlerStatus reports the run-state flag with last and next runs.
func (h *Handler) CrawlerStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.Status())
}

// Watermarks lists every scope's boundary with its last run.
func (h *Handler) Watermarks(w http.ResponseWriter, r *http.Request) {
	marks, err := h.watermarks.ListWatermarks(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"watermarks": marks})
}

// StartBatch launches background prediction of unpredicted items.
func (h *Handler) StartBatch(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 1000, 1, 10000)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	job, started := h.batch.Start(r.Context(), limit)
	if !started {
		respondJSON(w, http.StatusOK, batchResponse{Status: domain.ReasonRunning, Job: job})
		return
	}
	respondJSON(w, http.StatusAccepted, batchResponse{Status: "started", Job: job})
}

// BatchStatus reports the current or last batch job.
func (h *Handler) BatchStatus(w http.ResponseWriter, _ *http.Request) {
	job, ok := h.batch.Status()
	if !ok {
		respondError(w, h.logger, fmt.Errorf("batch job: %w", domain.ErrNotFound))
		return
	}
	status := "completed"
	if job.Running {
		status = "running"
	}
	respondJSON(w, http.StatusOK, batchResponse{Status: status, Job: job})
}

// PredictItem classifies one stored item.
func (h *Handler) PredictItem(w http.ResponseWriter, r *http.Request) {
	force, err := boolQuery(r, "force")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	enhanced, err := boolQuery(r, "enhanced")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.analyzer.PredictItem(r.Context(), r.PathValue("id"), force, enhanced)
	switch {
	case errors.Is(err, domain.ErrAlreadyPredicted):
		respondJSON(w, http.StatusConflict, predictResponse{Status: "already_predicted", Result: result})
	case err != nil:
		respondError(w, h.logger, err)
	default:
		respondJSON(w, http.StatusOK, predictResponse{Status: "predicted", Result: result})
	}
}

// ListItems pages through stored items newest first.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intQuery(r, "limit", 50, 1, 100)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	filter := ports.ItemFilter{Community: q.Get("community"), Limit: limit}
	if raw := q.Get("label"); raw != "" {
		label := domain.Label(strings.ToUpper(raw))
		switch label {
		case domain.LabelFake, domain.LabelReal, domain.LabelUncertain:
			filter.Label = label
		default:
			respondError(w, h.logger, fmt.Errorf("%w: label %q", domain.ErrInvalidInput, raw))
			return
		}
	}
	if raw := q.Get("cursor"); raw != "" {
		cursor, err := domain.DecodeCursor(raw)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		filter.Before = &cursor
	}

	items, err := h.items.ListItems(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	resp := itemsResponse{Items: make([]itemResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, newItemResponse(item))
	}
	if len(items) == limit {
		last := items[len(items)-1]
		next := domain.EncodeCursor(domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		resp.NextCursor = &next
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetItem returns one stored item.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newItemResponse(item))
}

func newItemResponse(item domain.Item) itemResponse {
	resp := itemResponse{
		ItemView:    usecase.NewItemView(item),
		Body:        item.Body,
		Links:       item.Links,
		UpvoteRatio: item.UpvoteRatio,
		Flair:       item.Flair,
		CrawledAt:   item.CrawledAt,
	}
	if item.HasPrediction() {
		resp.PredictionKind = item.Prediction.Kind()
		resp.Prediction = item.Prediction
	}
	return resp
}

func intQuery(r *http.Request, name string, def, minimum, maximum int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minimum || v > maximum {
		return 0, fmt.Errorf("%w: %s must be an integer between %d and %d", domain.ErrInvalidInput, name, minimum, maximum)
	}
	return v, nil
}

func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", domain.ErrInvalidInput, name)
	}
	return v, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
