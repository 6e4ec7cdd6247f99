package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"FakeNewsScanner/internal/domain"
)

type fakeFast struct {
	result domain.FastResult
	err    error
}

func (f fakeFast) Classify(context.Context, string) (domain.FastResult, error) {
	return f.result, f.err
}

type fakeReasoning struct {
	result domain.ReasoningResult
	err    error
	calls  int
}

func (f *fakeReasoning) Classify(context.Context, string) (domain.ReasoningResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeReasoning) Explain(context.Context, string, domain.FastResult) (string, error) {
	return "", errors.New("not used")
}

var headline = Signals{Title: "Senate approves infrastructure bill after long debate", Domain: "apnews.com"}

func TestLowConfidenceFastDefersToReasoning(t *testing.T) {
	t.Parallel()

	fast := fakeFast{result: domain.FastResult{Label: domain.LabelReal, Confidence: 0.55}}
	reasoning := &fakeReasoning{result: domain.ReasoningResult{Label: domain.LabelFake, Confidence: 0.8}}

	pred, err := New(fast, reasoning, 0.6, nil).Classify(context.Background(), headline, TwoStage)
	require.NoError(t, err)

	enhanced, ok := pred.(domain.EnhancedPrediction)
	require.True(t, ok)
	require.Equal(t, domain.LabelFake, enhanced.Label)
	require.InDelta(t, 0.8, enhanced.Confidence, 1e-9)
	require.Equal(t, domain.LabelReal, enhanced.Fast.Label)
	require.Equal(t, domain.WorkflowEnhanced, enhanced.WorkflowVersion)
}

func TestConfidentFastWinsOverReasoning(t *testing.T) {
	t.Parallel()

	fast := fakeFast{result: domain.FastResult{Label: domain.LabelReal, Confidence: 0.9}}
	reasoning := &fakeReasoning{result: domain.ReasoningResult{Label: domain.LabelFake, Confidence: 0.99}}

	pred, err := New(fast, reasoning, 0.6, nil).Classify(context.Background(), headline, TwoStage)
	require.NoError(t, err)
	require.Equal(t, domain.LabelReal, pred.Result().Label)
	require.InDelta(t, 0.9, pred.Result().Confidence, 1e-9)
	require.Equal(t, domain.KindEnhanced, pred.Kind())
}

func TestUncertainReasoningNeverOverrides(t *testing.T) {
	t.Parallel()

	label, conf := Fuse(
		domain.FastResult{Label: domain.LabelFake, Confidence: 0.51},
		domain.ReasoningResult{Label: domain.LabelUncertain, Confidence: 0.9},
		0.6,
	)
	require.Equal(t, domain.LabelFake, label)
	require.InDelta(t, 0.51, conf, 1e-9)
}

func TestReasoningFailureDegradesToBasic(t *testing.T) {
	t.Parallel()

	fast := fakeFast{result: domain.FastResult{Label: domain.LabelFake, Confidence: 0.92}}
	reasoning := &fakeReasoning{err: domain.ErrReasoningUnavailable}

	pred, err := New(fast, reasoning, 0.6, nil).Classify(context.Background(), headline, TwoStage)
	require.NoError(t, err)

	basic, ok := pred.(domain.BasicPrediction)
	require.True(t, ok)
	require.Equal(t, domain.LabelFake, basic.Label)
	require.InDelta(t, 0.92, basic.Confidence, 1e-9)
	require.Contains(t, basic.ReasoningError, "reasoning classifier unavailable")
}

func TestFastOnlySkipsReasoning(t *testing.T) {
	t.Parallel()

	fast := fakeFast{result: domain.FastResult{Label: domain.LabelReal, Confidence: 0.4}}
	reasoning := &fakeReasoning{result: domain.ReasoningResult{Label: domain.LabelFake, Confidence: 1}}

	pred, err := New(fast, reasoning, 0.6, nil).Classify(context.Background(), headline, FastOnly)
	require.NoError(t, err)
	require.Equal(t, domain.KindBasic, pred.Kind())
	require.Equal(t, domain.LabelReal, pred.Result().Label)
	require.Zero(t, reasoning.calls)
}

func TestFastFailureFailsClassification(t *testing.T) {
	t.Parallel()

	fast := fakeFast{err: errors.Join(domain.ErrClassifierUnavailable, context.DeadlineExceeded)}
	reasoning := &fakeReasoning{result: domain.ReasoningResult{Label: domain.LabelFake}}

	_, err := New(fast, reasoning, 0.6, nil).Classify(context.Background(), headline, TwoStage)
	require.ErrorIs(t, err, domain.ErrClassifierUnavailable)
	require.ErrorContains(t, err, "deadline exceeded")
	require.Zero(t, reasoning.calls)
}

func TestIndicators(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	score := 30.0
	got := Indicators(Signals{
		Title:           "SHOCKING!!! THEY NEVER TOLD YOU THIS?",
		Body:            "wake up people",
		HasBody:         true,
		Domain:          "daily-hoax.net",
		AuthorCreatedAt: &created,
		SourceScore:     &score,
		Now:             created.Add(3 * 24 * time.Hour),
	})

	types := map[string]domain.Severity{}
	for _, ind := range got {
		types[ind.Type] = ind.Severity
	}

	require.Equal(t, domain.SeverityMedium, types[IndicatorClickbait])
	require.Equal(t, domain.SeverityMedium, types[IndicatorSensational])
	require.Equal(t, domain.SeverityLow, types[IndicatorAbsolutist])
	require.Equal(t, domain.SeverityLow, types[IndicatorExcessiveCaps])
	require.Equal(t, domain.SeverityLow, types[IndicatorPunctuation])
	require.Equal(t, domain.SeverityHigh, types[IndicatorSuspiciousDomain])
	require.Equal(t, domain.SeverityHigh, types[IndicatorLowCredibility])
	require.Equal(t, domain.SeverityMedium, types[IndicatorNewAccount])
	require.NotContains(t, types, IndicatorNoAttribution)
	require.NotContains(t, types, IndicatorInsufficient)
}

func TestIndicatorsMissingAttribution(t *testing.T) {
	t.Parallel()

	got := Indicators(Signals{Title: "Local mayor resigns over budget dispute", Body: " ", HasBody: true})
	types := map[string]bool{}
	for _, ind := range got {
		types[ind.Type] = true
	}
	require.True(t, types[IndicatorNoAttribution])
	require.True(t, types[IndicatorInsufficient])

	got = Indicators(Signals{Title: "Mayor resigns, according to city hall", HasBody: false})
	for _, ind := range got {
		require.NotEqual(t, IndicatorNoAttribution, ind.Type)
	}
}

func TestRiskScoreAndRecommendation(t *testing.T) {
	t.Parallel()

	v := domain.Verdict{
		Label:      domain.LabelFake,
		Confidence: 0.9,
		Indicators: []domain.RiskIndicator{
			{Severity: domain.SeverityHigh},
			{Severity: domain.SeverityMedium},
			{Severity: domain.SeverityLow},
		},
	}
	require.InDelta(t, 80, RiskScore(v), 1e-9)
	require.Contains(t, Recommendation(v), "Highly likely")

	v.Indicators = append(v.Indicators, domain.RiskIndicator{Severity: domain.SeverityHigh}, domain.RiskIndicator{Severity: domain.SeverityHigh})
	require.InDelta(t, 100, RiskScore(v), 1e-9)

	genuine := domain.Verdict{Label: domain.LabelReal, Confidence: 0.8}
	require.Zero(t, RiskScore(genuine))
	require.Contains(t, Recommendation(genuine), "No suspicious signs")
}

func TestFallbackExplanation(t *testing.T) {
	t.Parallel()

	text := FallbackExplanation(domain.FastResult{Label: domain.LabelFake, Confidence: 0.9})
	require.Contains(t, text, "likely misleading")
	require.Contains(t, text, "90%")
}
