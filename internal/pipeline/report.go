package pipeline

import (
	"time"

	"faqforge/internal/generation"
)

// Failure reasons attached to batch-level failures.
const (
	ReasonTransientExhausted = "transient_exhausted"
	ReasonMalformedResponse  = "malformed_response"
	ReasonAborted            = "aborted"
)

// BatchFailure records one batch that resolved without contributing records.
type BatchFailure struct {
	Category string `json:"category"`
	Batch    int    `json:"batch"`
	Reason   string `json:"reason"`
	Attempts int    `json:"attempts"`
	Detail   string `json:"detail,omitempty"`
}

// CategoryOutcome summarizes requested vs obtained counts for one category.
type CategoryOutcome struct {
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Obtained  int    `json:"obtained"`
}

// AggregateReport is the outcome of one pipeline run: accepted raw records
// (pre-validation), per-category counts, and classified batch failures. A
// partially-completed run always reports what was produced, what was
// skipped, and why.
type AggregateReport struct {
	RunID       string              `json:"run_id"`
	Environment string              `json:"environment,omitempty"`
	Records     []generation.Record `json:"-"`
	Categories  []CategoryOutcome   `json:"categories"`
	Failures    []BatchFailure      `json:"failures"`
	Aborted     bool                `json:"aborted"`
	AbortReason string              `json:"abort_reason,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
}

// TotalRequested sums the requested counts over all categories.
func (r *AggregateReport) TotalRequested() int {
	n := 0
	for _, c := range r.Categories {
		n += c.Requested
	}
	return n
}

// TotalObtained sums the obtained counts over all categories.
func (r *AggregateReport) TotalObtained() int {
	n := 0
	for _, c := range r.Categories {
		n += c.Obtained
	}
	return n
}

// categoryResult is one category's shard of the report. Each category has a
// single writer; shards are merged only after all workers finish, so partial
// writes to a category never interleave.
type categoryResult struct {
	outcome  CategoryOutcome
	records  []generation.Record
	failures []BatchFailure
}
