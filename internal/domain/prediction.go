package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Label is the verdict vocabulary shared by both classifier stages.
type Label string

const (
	LabelFake      Label = "FAKE"
	LabelReal      Label = "REAL"
	LabelUncertain Label = "UNCERTAIN"
)

// Severity orders risk indicators and factor impacts.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

const (
	WorkflowBasic    = "1.0"
	WorkflowEnhanced = "2.0"
)

// Probabilities is the class breakdown of the fast classifier.
type Probabilities struct {
	Fake float64 `json:"fake"`
	Real float64 `json:"real"`
}

// FastResult is the Step 1 output.
type FastResult struct {
	Label         Label         `json:"label"`
	Confidence    float64       `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
	Model         string        `json:"model"`
	Mode          string        `json:"mode"`
}

// ReasoningResult is the Step 2 output.
type ReasoningResult struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Model      string  `json:"model"`
}

// RiskIndicator is a heuristic text signal.
type RiskIndicator struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Verdict is the part every prediction variant shares.
type Verdict struct {
	Label           Label           `json:"label"`
	Confidence      float64         `json:"confidence"`
	Fast            FastResult      `json:"fast"`
	Indicators      []RiskIndicator `json:"risk_indicators"`
	PredictedAt     time.Time       `json:"predicted_at"`
	WorkflowVersion string          `json:"workflow_version"`
}

// PredictionKind discriminates the Prediction variants.
type PredictionKind string

const (
	KindBasic    PredictionKind = "basic"
	KindEnhanced PredictionKind = "enhanced"
)

// Prediction is either a BasicPrediction or an EnhancedPrediction.
type Prediction interface {
	Kind() PredictionKind
	Result() Verdict
}

// BasicPrediction carries only the fast signal. ReasoningError is set when
// the reasoning stage was attempted and failed.
type BasicPrediction struct {
	Verdict
	ReasoningError string `json:"reasoning_error,omitempty"`
}

func (BasicPrediction) Kind() PredictionKind { return KindBasic }

func (p BasicPrediction) Result() Verdict { return p.Verdict }

// EnhancedPrediction carries both stages.
type EnhancedPrediction struct {
	Verdict
	Reasoning ReasoningResult `json:"reasoning"`
}

func (EnhancedPrediction) Kind() PredictionKind { return KindEnhanced }

func (p EnhancedPrediction) Result() Verdict { return p.Verdict }

type predictionEnvelope struct {
	Kind PredictionKind  `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalPrediction encodes a prediction with its kind tag.
func MarshalPrediction(p Prediction) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal prediction: nil")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction: %w", err)
	}
	return json.Marshal(predictionEnvelope{Kind: p.Kind(), Data: data})
}

// UnmarshalPrediction decodes the output of MarshalPrediction.
func UnmarshalPrediction(raw []byte) (Prediction, error) {
	var env predictionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal prediction envelope: %w", err)
	}

	switch env.Kind {
	case KindBasic:
		var p BasicPrediction
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal basic prediction: %w", err)
		}
		return p, nil
	case KindEnhanced:
		var p EnhancedPrediction
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal enhanced prediction: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown prediction kind %q", env.Kind)
	}
}
