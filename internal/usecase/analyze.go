package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"FakeNewsScanner/internal/classifier"
	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
)

const (
	minTitleLength   = 10
	maxTitleLength   = 500
	maxContentLength = 5000
)

// TextRequest is an on-demand analysis of free text.
type TextRequest struct {
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
	Quick     bool   `json:"quick,omitempty"`
}

// Analysis is the on-demand result with its human-facing extras.
type Analysis struct {
	Prediction        domain.Prediction         `json:"prediction"`
	Kind              domain.PredictionKind     `json:"kind"`
	RiskScore         float64                   `json:"risk_score"`
	Recommendation    string                    `json:"recommendation"`
	Explanation       string                    `json:"explanation,omitempty"`
	SourceDomain      string                    `json:"source_domain,omitempty"`
	SourceCredibility *domain.DomainCredibility `json:"source_credibility,omitempty"`
	Item              *ItemView                 `json:"item,omitempty"`
	AnalyzedAt        time.Time                 `json:"analyzed_at"`
}

// ItemView is the item metadata returned next to an analysis.
type ItemView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Community   string    `json:"community"`
	Author      string    `json:"author"`
	Domain      string    `json:"domain,omitempty"`
	URL         string    `json:"url"`
	Permalink   string    `json:"permalink"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewItemView projects an item for responses.
func NewItemView(item domain.Item) *ItemView {
	return &ItemView{
		ID:          item.ID,
		Title:       item.Title,
		Community:   item.Community,
		Author:      item.Author,
		Domain:      item.Domain,
		URL:         item.URL,
		Permalink:   item.Permalink,
		Score:       item.Score,
		NumComments: item.NumComments,
		CreatedAt:   item.CreatedAt,
	}
}

// AnalyzerDeps wires the on-demand analysis.
type AnalyzerDeps struct {
	Classifier *classifier.Classifier
	Predictor  *Predictor
	Reasoning  ports.ReasoningClassifier
	Lookup     ports.ItemLookup
	Items      ports.ItemRepository
	Scorer     SourceScorer
	MinPosts   int
	Logger     *slog.Logger
}

// Analyzer serves user-triggered classification, which runs both stages.
type Analyzer struct {
	classifier *classifier.Classifier
	predictor  *Predictor
	reasoning  ports.ReasoningClassifier
	lookup     ports.ItemLookup
	items      ports.ItemRepository
	scorer     SourceScorer
	minPosts   int
	logger     *slog.Logger
}

// NewAnalyzer constructs the analyzer.
func NewAnalyzer(deps AnalyzerDeps) *Analyzer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Analyzer{
		classifier: deps.Classifier,
		predictor:  deps.Predictor,
		reasoning:  deps.Reasoning,
		lookup:     deps.Lookup,
		items:      deps.Items,
		scorer:     deps.Scorer,
		minPosts:   deps.MinPosts,
		logger:     logger,
	}
}

// AnalyzeText classifies free text without storing it.
func (a *Analyzer) AnalyzeText(ctx context.Context, req TextRequest) (Analysis, error) {
	title := strings.TrimSpace(req.Title)
	content := strings.TrimSpace(req.Content)
	if n := utf8.RuneCountInString(title); n < minTitleLength || n > maxTitleLength {
		return Analysis{}, fmt.Errorf("%w: title must be %d-%d characters", domain.ErrInvalidInput, minTitleLength, maxTitleLength)
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return Analysis{}, fmt.Errorf("%w: content must be at most %d characters", domain.ErrInvalidInput, maxContentLength)
	}

	signals := classifier.Signals{Title: title, Body: content, HasBody: req.Content != ""}
	var result Analysis
	if req.SourceURL != "" {
		host, err := hostOf(req.SourceURL)
		if err != nil {
			return Analysis{}, err
		}
		signals.Domain = host
		signals.Links = []string{req.SourceURL}
		result.SourceDomain = host
		if cred, ok := a.credibility(ctx, host); ok {
			result.SourceCredibility = &cred
			signals.SourceScore = cred.Score
		}
	}

	mode := classifier.TwoStage
	if req.Quick {
		mode = classifier.FastOnly
	}
	pred, err := a.classifier.Classify(ctx, signals, mode)
	if err != nil {
		return Analysis{}, err
	}

	a.fill(&result, pred)
	if !req.Quick {
		result.Explanation = a.explain(ctx, domain.ClassifierText(title, content), pred)
	}
	return result, nil
}

// AnalyzeURL fetches a platform post, classifies it with both stages and
// returns it with its metadata. Stored copies of the post are not modified.
func (a *Analyzer) AnalyzeURL(ctx context.Context, rawURL string) (Analysis, error) {
	if a.lookup == nil {
		return Analysis{}, fmt.Errorf("%w: url analysis is not configured", domain.ErrInvalidInput)
	}
	id, err := a.lookup.PostID(rawURL)
	if err != nil {
		return Analysis{}, err
	}
	item, err := a.lookup.FetchItem(ctx, id)
	if err != nil {
		return Analysis{}, err
	}

	var result Analysis
	signals := a.predictor.Signals(ctx, item, false)
	if item.Domain != "" {
		result.SourceDomain = item.Domain
		if cred, ok := a.credibility(ctx, item.Domain); ok {
			result.SourceCredibility = &cred
			signals.SourceScore = cred.Score
		}
	}

	pred, err := a.classifier.Classify(ctx, signals, classifier.TwoStage)
	if err != nil {
		return Analysis{}, err
	}
	a.fill(&result, pred)
	result.Item = NewItemView(item)
	result.Explanation = a.explain(ctx, item.Text(), pred)
	return result, nil
}

// PredictItem classifies a stored item. enhanced selects both stages.
// Without force an existing prediction yields domain.ErrAlreadyPredicted and
// the stored prediction is returned unchanged.
func (a *Analyzer) PredictItem(ctx context.Context, id string, force, enhanced bool) (Analysis, error) {
	item, err := a.items.GetItem(ctx, id)
	if err != nil {
		return Analysis{}, err
	}

	mode := classifier.FastOnly
	if enhanced {
		mode = classifier.TwoStage
	}
	pred, err := a.predictor.Predict(ctx, item, mode, force)

	var result Analysis
	result.Item = NewItemView(item)
	if pred != nil {
		a.fill(&result, pred)
	}
	if err != nil && !errors.Is(err, domain.ErrAlreadyPredicted) {
		return Analysis{}, err
	}
	return result, err
}

func (a *Analyzer) fill(result *Analysis, pred domain.Prediction) {
	v := pred.Result()
	result.Prediction = pred
	result.Kind = pred.Kind()
	result.RiskScore = classifier.RiskScore(v)
	result.Recommendation = classifier.Recommendation(v)
	result.AnalyzedAt = v.PredictedAt
}

func (a *Analyzer) explain(ctx context.Context, text string, pred domain.Prediction) string {
	fast := pred.Result().Fast
	if a.reasoning == nil {
		return classifier.FallbackExplanation(fast)
	}
	explanation, err := a.reasoning.Explain(ctx, text, fast)
	if err != nil || strings.TrimSpace(explanation) == "" {
		a.logger.Warn("explanation unavailable, using fallback", "error", err)
		return classifier.FallbackExplanation(fast)
	}
	return explanation
}

func (a *Analyzer) credibility(ctx context.Context, host string) (domain.DomainCredibility, bool) {
	if a.scorer == nil {
		return domain.DomainCredibility{}, false
	}
	cred, err := a.scorer.SourceCredibility(ctx, host, a.minPosts)
	if err != nil {
		a.logger.Debug("source credibility unavailable", "domain", host, "error", err)
		return domain.DomainCredibility{}, false
	}
	return cred, true
}

func hostOf(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: source url %q", domain.ErrInvalidInput, raw)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), nil
}
