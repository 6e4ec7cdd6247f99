package domain

import "time"

// CrawlMode selects the fetch window policy.
type CrawlMode string

const (
	ModeHistorical  CrawlMode = "historical"
	ModeIncremental CrawlMode = "incremental"
)

// RunStatus is the outcome of one crawl attempt.
type RunStatus string

const (
	RunSucceeded RunStatus = "success"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// CrawlRun records what a single source crawl did.
type CrawlRun struct {
	ID           string        `json:"id"`
	Scope        string        `json:"scope"`
	Mode         CrawlMode     `json:"mode"`
	WindowStart  time.Time     `json:"window_start"`
	WindowEnd    time.Time     `json:"window_end"`
	Fetched      int           `json:"fetched"`
	Inserted     int           `json:"inserted"`
	Duplicates   int           `json:"duplicates"`
	OutOfWindow  int           `json:"out_of_window"`
	Predicted    int           `json:"predicted"`
	FakeDetected int           `json:"fake_detected"`
	Errors       int           `json:"errors"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Status       RunStatus     `json:"status"`
	Error        string        `json:"error,omitempty"`
}

// CrawlWatermark is the persisted per-scope crawl boundary.
type CrawlWatermark struct {
	Scope   string    `json:"scope"`
	LastRun time.Time `json:"last_run"`
	Run     CrawlRun  `json:"run"`
}

// RunSummary aggregates one scheduler trigger across every source.
type RunSummary struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Sources    []CrawlRun    `json:"sources,omitempty"`
	Fetched    int           `json:"fetched"`
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Predicted  int           `json:"predicted"`
	Fake       int           `json:"fake_detected"`
	Errors     int           `json:"errors"`
}

const (
	SummaryCompleted = "completed"
	SummarySkipped   = "skipped"
	ReasonRunning    = "already_running"
)

// Add folds a source run into the totals.
func (s *RunSummary) Add(run CrawlRun) {
	s.Sources = append(s.Sources, run)
	s.Fetched += run.Fetched
	s.Inserted += run.Inserted
	s.Duplicates += run.Duplicates
	s.Predicted += run.Predicted
	s.Fake += run.FakeDetected
	s.Errors += run.Errors
}
