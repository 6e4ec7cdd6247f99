package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"FakeNewsScanner/internal/classifier"
	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
)

// SourceScorer looks up domain credibility for the LOW_CREDIBILITY_SOURCE
// indicator.
type SourceScorer interface {
	SourceCredibility(ctx context.Context, rawDomain string, minPosts int) (domain.DomainCredibility, error)
}

// Predictor classifies items and stores the result.
type Predictor struct {
	classifier  *classifier.Classifier
	predictions ports.PredictionRepository
	scorer      SourceScorer
	minPosts    int
	logger      *slog.Logger
	now         func() time.Time
}

// PredictStats counts the outcome of a PredictAll call.
type PredictStats struct {
	Predicted int
	Fake      int
	Failed    int
}

// NewPredictor wires the classifier with the prediction store. scorer may be
// nil.
func NewPredictor(cls *classifier.Classifier, predictions ports.PredictionRepository, scorer SourceScorer, minPosts int, logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Predictor{
		classifier:  cls,
		predictions: predictions,
		scorer:      scorer,
		minPosts:    minPosts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HasReasoning reports whether TwoStage requests reach a reasoning model.
func (p *Predictor) HasReasoning() bool {
	return p.classifier.HasReasoning()
}

// Signals builds heuristic inputs; the credibility lookup runs only when
// withSource is set.
func (p *Predictor) Signals(ctx context.Context, item domain.Item, withSource bool) classifier.Signals {
	s := classifier.SignalsFromItem(item, p.now())
	if withSource {
		s.SourceScore = p.sourceScore(ctx, item.Domain)
	}
	return s
}

func (p *Predictor) sourceScore(ctx context.Context, host string) *float64 {
	if p.scorer == nil || host == "" {
		return nil
	}
	c, err := p.scorer.SourceCredibility(ctx, host, p.minPosts)
	if err != nil {
		p.logger.Debug("source credibility unavailable", "domain", host, "error", err)
		return nil
	}
	return c.Score
}

// Predict classifies a stored item. An existing prediction is kept and
// reported as domain.ErrAlreadyPredicted unless force is set.
func (p *Predictor) Predict(ctx context.Context, item domain.Item, mode classifier.Mode, force bool) (domain.Prediction, error) {
	if item.HasPrediction() && !force {
		return item.Prediction, fmt.Errorf("item %s: %w", item.ID, domain.ErrAlreadyPredicted)
	}

	pred, err := p.classifier.Classify(ctx, p.Signals(ctx, item, mode == classifier.TwoStage), mode)
	if err != nil {
		return nil, fmt.Errorf("classify item %s: %w", item.ID, err)
	}
	if err := p.predictions.SavePrediction(ctx, item.ID, pred, force); err != nil {
		return nil, err
	}
	return pred, nil
}

// PredictAll classifies items with at most concurrency calls in flight.
// Failures are counted and never stop the remaining items. progress, when
// set, is called after each item.
func (p *Predictor) PredictAll(ctx context.Context, items []domain.Item, mode classifier.Mode, concurrency int, progress func(ok bool)) PredictStats {
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		mu    sync.Mutex
		stats PredictStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, item := range items {
		g.Go(func() error {
			pred, err := p.Predict(gctx, item, mode, false)

			mu.Lock()
			switch {
			case err != nil:
				stats.Failed++
				p.logger.Warn("prediction failed", "item", item.ID, "error", err)
			default:
				stats.Predicted++
				if pred.Result().Label == domain.LabelFake {
					stats.Fake++
				}
			}
			mu.Unlock()

			if progress != nil {
				progress(err == nil)
			}
			return nil
		})
	}
	_ = g.Wait()
	return stats
}
