// Package classifier runs the two-stage fake-news classification and fuses
// both stages into one verdict.
package classifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"FakeNewsScanner/internal/domain"
	"FakeNewsScanner/internal/ports"
)

// Mode selects which stages run.
type Mode int

const (
	// FastOnly is the background/batch policy.
	FastOnly Mode = iota
	// TwoStage is the on-demand policy.
	TwoStage
)

// Classifier orchestrates the fast and reasoning stages.
type Classifier struct {
	fast          ports.FastClassifier
	reasoning     ports.ReasoningClassifier
	lowConfidence float64
	logger        *slog.Logger
	now           func() time.Time
}

// New wires the stages. reasoning may be nil, in which case every prediction
// is basic.
func New(fast ports.FastClassifier, reasoning ports.ReasoningClassifier, lowConfidence float64, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Classifier{
		fast:          fast,
		reasoning:     reasoning,
		lowConfidence: lowConfidence,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// HasReasoning reports whether a second stage is configured.
func (c *Classifier) HasReasoning() bool {
	return c.reasoning != nil
}

// Classify runs Step 1 and, in TwoStage mode, Step 2. A Step 1 failure fails
// the whole call; a Step 2 failure degrades to a basic prediction that
// records the reason.
func (c *Classifier) Classify(ctx context.Context, s Signals, mode Mode) (domain.Prediction, error) {
	if c.fast == nil {
		return nil, fmt.Errorf("fast classifier: %w", domain.ErrClassifierUnavailable)
	}
	if s.Now.IsZero() {
		s.Now = c.now()
	}

	text := domain.ClassifierText(s.Title, s.Body)
	fast, err := c.fast.Classify(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("fast classifier: %w", err)
	}

	verdict := domain.Verdict{
		Label:           fast.Label,
		Confidence:      fast.Confidence,
		Fast:            fast,
		Indicators:      Indicators(s),
		PredictedAt:     c.now(),
		WorkflowVersion: domain.WorkflowBasic,
	}

	if mode == FastOnly || c.reasoning == nil {
		return domain.BasicPrediction{Verdict: verdict}, nil
	}

	reasoned, err := c.reasoning.Classify(ctx, text)
	if err != nil {
		c.logger.Warn("reasoning stage failed, keeping fast verdict", "error", err)
		return domain.BasicPrediction{Verdict: verdict, ReasoningError: err.Error()}, nil
	}

	verdict.Label, verdict.Confidence = Fuse(fast, reasoned, c.lowConfidence)
	verdict.WorkflowVersion = domain.WorkflowEnhanced
	return domain.EnhancedPrediction{Verdict: verdict, Reasoning: reasoned}, nil
}

// Fuse keeps the fast verdict unless its confidence is below lowConfidence
// and the reasoning stage committed to fake or real.
func Fuse(fast domain.FastResult, reasoning domain.ReasoningResult, lowConfidence float64) (domain.Label, float64) {
	if fast.Confidence < lowConfidence {
		switch reasoning.Label {
		case domain.LabelFake, domain.LabelReal:
			return reasoning.Label, reasoning.Confidence
		}
	}
	return fast.Label, fast.Confidence
}
