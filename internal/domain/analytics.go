package domain

import "time"

// RiskTier is the credibility-derived risk of fakeness, ordered LOW < VERY_HIGH.
type RiskTier string

const (
	TierLow      RiskTier = "LOW"
	TierMedium   RiskTier = "MEDIUM"
	TierHigh     RiskTier = "HIGH"
	TierVeryHigh RiskTier = "VERY_HIGH"
	TierUnknown  RiskTier = "UNKNOWN"
)

// DomainCounts is the raw per-domain aggregate read from the store.
type DomainCounts struct {
	Domain            string  `db:"domain"`
	Total             int     `db:"total"`
	Fake              int     `db:"fake_count"`
	Real              int     `db:"real_count"`
	AvgFakeConfidence float64 `db:"avg_fake_confidence"`
	AvgRealConfidence float64 `db:"avg_real_confidence"`
}

// Breakdown is the per-domain statistics block.
type Breakdown struct {
	Total             int     `json:"total"`
	Fake              int     `json:"fake"`
	Real              int     `json:"real"`
	FakeRatio         float64 `json:"fake_ratio"`
	FakePercentage    float64 `json:"fake_percentage"`
	RealPercentage    float64 `json:"real_percentage"`
	AvgFakeConfidence float64 `json:"avg_fake_confidence"`
	AvgRealConfidence float64 `json:"avg_real_confidence"`
}

// DomainCredibility is derived per domain. Score is nil when the sample is
// below the requested minimum.
type DomainCredibility struct {
	Domain         string    `json:"domain"`
	Score          *float64  `json:"credibility_score"`
	RiskTier       RiskTier  `json:"risk_level"`
	Breakdown      Breakdown `json:"breakdown"`
	MinPosts       int       `json:"min_posts"`
	Recommendation string    `json:"recommendation"`
}

// WarningSource is a domain that published a notable share of fake items.
type WarningSource struct {
	Domain         string   `json:"domain"`
	Total          int      `json:"total_posts"`
	Fake           int      `json:"fake_posts"`
	FakePercentage float64  `json:"fake_percentage"`
	RiskTier       RiskTier `json:"risk_level"`
}

// Direction classifies a period-over-period change.
type Direction string

const (
	DirectionIncreasing Direction = "INCREASING"
	DirectionDecreasing Direction = "DECREASING"
	DirectionStable     Direction = "STABLE"
)

// LabeledPoint is one predicted item reduced to what trend bucketing needs.
type LabeledPoint struct {
	CreatedAt time.Time
	Label     Label
}

// DayCount is one day bucket.
type DayCount struct {
	Day   string `json:"date"`
	Fake  int    `json:"fake"`
	Real  int    `json:"real"`
	Total int    `json:"total"`
}

// PeriodStats summarizes one side of the comparison.
type PeriodStats struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Total          int       `json:"total"`
	Fake           int       `json:"fake"`
	Real           int       `json:"real"`
	FakePercentage float64   `json:"fake_percentage"`
}

// TrendWindow compares the current N days with the N days before them.
type TrendWindow struct {
	Days             int         `json:"days"`
	Community        string      `json:"community,omitempty"`
	Current          PeriodStats `json:"current_period"`
	Previous         PeriodStats `json:"previous_period"`
	ChangePercentage float64     `json:"change_percentage"`
	Direction        Direction   `json:"trend"`
	PeakDay          *DayCount   `json:"peak_day"`
	Daily            []DayCount  `json:"daily"`
	DailyAvgFake     float64     `json:"daily_avg_fake"`
	Interpretation   string      `json:"interpretation"`
}

// RiskLevel is the four-tier assessment output.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskFactor is one auditable input to a risk score.
type RiskFactor struct {
	Name         string   `json:"factor"`
	Value        float64  `json:"value"`
	Contribution float64  `json:"contribution"`
	Impact       Severity `json:"impact"`
	Description  string   `json:"description"`
}

// RiskAssessment is the combined score with its factors.
type RiskAssessment struct {
	Days           int          `json:"days"`
	Community      string       `json:"community,omitempty"`
	Score          float64      `json:"risk_score"`
	Level          RiskLevel    `json:"risk_level"`
	Factors        []RiskFactor `json:"factors"`
	Recommendation string       `json:"recommendation"`
	AssessedAt     time.Time    `json:"assessed_at"`
}

// TrendingTopic is a keyword frequent among confident fake predictions.
type TrendingTopic struct {
	Keyword       string   `json:"keyword"`
	Frequency     int      `json:"frequency"`
	TrendingScore float64  `json:"trending_score"`
	SampleTitles  []string `json:"sample_titles"`
}

// LabelSummary is the per-label average block of store statistics.
type LabelSummary struct {
	Count         int     `db:"count" json:"count"`
	AvgConfidence float64 `db:"avg_confidence" json:"avg_confidence"`
	AvgScore      float64 `db:"avg_score" json:"avg_score"`
	AvgComments   float64 `db:"avg_comments" json:"avg_comments"`
}

// StoreSummary is the whole-store count block.
type StoreSummary struct {
	Total     int          `json:"total_posts"`
	Predicted int          `json:"predicted"`
	Fake      LabelSummary `json:"fake"`
	Real      LabelSummary `json:"real"`
}
