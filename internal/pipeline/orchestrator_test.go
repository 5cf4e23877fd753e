package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faqforge/internal/generation"
)

type stubCall struct {
	Prompt   string
	Expected int
}

// stubClient scripts Generate responses by call number.
type stubClient struct {
	mu     sync.Mutex
	calls  []stubCall
	script func(call int, prompt string, expected int) ([]generation.Record, error)
}

func (s *stubClient) Generate(ctx context.Context, prompt string, expected int) ([]generation.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	call := len(s.calls)
	s.calls = append(s.calls, stubCall{Prompt: prompt, Expected: expected})
	s.mu.Unlock()
	return s.script(call, prompt, expected)
}

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubClient) callList() []stubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stubCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// stubPrompts renders a deterministic prompt encoding its inputs.
type stubPrompts struct{}

func (stubPrompts) Render(name string, params map[string]interface{}) (string, error) {
	if name == "missing" {
		return "", fmt.Errorf("prompt template not found: %s", name)
	}
	return fmt.Sprintf("%s|%v|%v|%v/%v",
		name, params["category"], params["count"], params["batch"], params["total_batches"]), nil
}

func makeRecords(n int) []generation.Record {
	out := make([]generation.Record, n)
	for i := range out {
		out[i] = generation.Record{
			Question: fmt.Sprintf("Question %d?", i),
			Answer:   fmt.Sprintf("Answer %d.", i),
			Keywords: []string{"kw"},
		}
	}
	return out
}

func testOptions() Options {
	return Options{
		BatchSize:   10,
		Delay:       time.Millisecond,
		MaxAttempts: 3,
		Parallelism: 1,
		Template:    "batch_generate",
		Fallback:    "batch_generate_simple",
	}
}

func succeedAll(call int, prompt string, expected int) ([]generation.Record, error) {
	return makeRecords(expected), nil
}

func TestRun_ZeroCountMakesNoCalls(t *testing.T) {
	client := &stubClient{script: succeedAll}
	o := New(client, stubPrompts{}, testOptions())

	report, err := o.Run(context.Background(), []Category{{Name: "Empty", Count: 0}})
	require.NoError(t, err)

	assert.Zero(t, client.callCount())
	require.Len(t, report.Categories, 1)
	assert.Equal(t, CategoryOutcome{Name: "Empty", Requested: 0, Obtained: 0}, report.Categories[0])
}

func TestRun_SplitsIntoBatches(t *testing.T) {
	client := &stubClient{script: succeedAll}
	o := New(client, stubPrompts{}, testOptions())

	report, err := o.Run(context.Background(), []Category{{Name: "Loans", Count: 25}})
	require.NoError(t, err)

	calls := client.callList()
	require.Len(t, calls, 3)
	assert.Equal(t, 10, calls[0].Expected)
	assert.Equal(t, 10, calls[1].Expected)
	assert.Equal(t, 5, calls[2].Expected)

	// Batch numbering flows into the rendered prompt, in order.
	assert.Contains(t, calls[0].Prompt, "|1/3")
	assert.Contains(t, calls[1].Prompt, "|2/3")
	assert.Contains(t, calls[2].Prompt, "|3/3")

	assert.Equal(t, 25, report.TotalObtained())
	assert.Len(t, report.Records, 25)
	assert.Empty(t, report.Failures)
}

func TestRun_StampsCategoryLabels(t *testing.T) {
	client := &stubClient{script: succeedAll}
	o := New(client, stubPrompts{}, testOptions())

	report, err := o.Run(context.Background(), []Category{{Name: "Investments", Count: 2}})
	require.NoError(t, err)

	require.Len(t, report.Records, 2)
	for _, rec := range report.Records {
		assert.Equal(t, "Investments", rec.Category)
		assert.Equal(t, "Investments", rec.Subcategory)
	}
}

func TestRun_TransientRetriesThenSucceeds(t *testing.T) {
	client := &stubClient{script: func(call int, prompt string, expected int) ([]generation.Record, error) {
		if call < 2 {
			return nil, &generation.TransientError{Op: "rate limit", Err: errors.New("429")}
		}
		return makeRecords(expected), nil
	}}
	o := New(client, stubPrompts{}, testOptions())

	report, err := o.Run(context.Background(), []Category{{Name: "Cards", Count: 5}})
	require.NoError(t, err)

	assert.Equal(t, 3, client.callCount())
	assert.Equal(t, 5, report.TotalObtained())
	assert.Empty(t, report.Failures)
}

func TestRun_ExhaustedBatchContributesZeroAndRunContinues(t *testing.T) {
	// First batch always transient; second batch succeeds.
	client := &stubClient{script: func(call int, prompt string, expected int) ([]generation.Record, error) {
		if strings.Contains(prompt, "|1/2") {
			return nil, &generation.TransientError{Op: "rate limit", Err: errors.New("429")}
		}
		return makeRecords(expected), nil
	}}
	o := New(client, stubPrompts{}, testOptions())

	report, err := o.Run(context.Background(), []Category{{Name: "Mortgages", Count: 15}})
	require.NoError(t, err)

	require.Len(t, report.Categories, 1)
	assert.Equal(t, 15, report.Categories[0].Requested)
	assert.Equal(t, 5, report.Categories[0].Obtained, "failed batch contributes zero, later batch still runs")

	require.Len(t, report.Failures, 1)
	failure := report.Failures[0]
	assert.Equal(t, ReasonTransientExhausted, failure.Reason)
	assert.Equal(t, 1, failure.Batch)
	assert.Equal(t, 3, failure.Attempts)
}

func TestRun_MalformedRetriesOnceWithFallbackPrompt(t *testing.T) {
	client := &stubClient{script: func(call int, prompt string, expected int) ([]generation.Record, error) {
		if call == 0 {
			return nil, &generation.MalformedResponseError{Err: errors.New("bad json")}
		}
		return makeRecords(expected), nil
	}}
	o := New(client, stubPrompts{}, testOptions())

	report, err := o.Run(context.Background(), []Category{{Name: "Savings", Count: 5}})
	require.NoError(t, err)

	calls := client.callList()
	require.Len(t, calls, 2)
	assert.True(t, strings.HasPrefix(calls[0].Prompt, "batch_generate|"))
	assert.True(t, strings.HasPrefix(calls[1].Prompt, "batch_generate_simple|"),
		"retry after a malformed response must use the simplified prompt")
	assert.Equal(t, 5, report.TotalObtained())
}

func TestRun_MalformedTwiceFailsBatch(t *testing.T) {
	client := &stubClient{script: func(call int, prompt string, expected int) ([]generation.Record, error) {
		return nil, &generation.MalformedResponseError{Err: errors.New("bad json")}
	}}
	o := New(client, stubPrompts{}, testOptions())

	report, err := o.Run(context.Background(), []Category{{Name: "Savings", Count: 5}})
	require.NoError(t, err)

	assert.Equal(t, 2, client.callCount(), "malformed responses get exactly one fallback retry")
	require.Len(t, report.Failures, 1)
	assert.Equal(t, ReasonMalformedResponse, report.Failures[0].Reason)
	assert.Zero(t, report.TotalObtained())
}

func TestRun_FatalAuthAbortsKeepingPartialResults(t *testing.T) {
	// Category A: batch 1 succeeds, batch 2 hits a fatal credential error.
	// Category B: must never run.
	client := &stubClient{script: func(call int, prompt string, expected int) ([]generation.Record, error) {
		if strings.Contains(prompt, "|A|") && strings.Contains(prompt, "|2/2") {
			return nil, &generation.FatalAuthError{Status: 401, Message: "bad key"}
		}
		return makeRecords(expected), nil
	}}
	o := New(client, stubPrompts{}, testOptions())

	report, err := o.Run(context.Background(), []Category{
		{Name: "A", Count: 15},
		{Name: "B", Count: 10},
	})
	require.Error(t, err)
	assert.True(t, generation.IsFatalAuth(err))

	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.NotEmpty(t, report.AbortReason)

	// Batch 1 of A survived; nothing from batch 2 or category B.
	assert.Len(t, report.Records, 10)
	for _, rec := range report.Records {
		assert.Equal(t, "A", rec.Category)
	}
	require.Len(t, report.Failures, 1)
	assert.Equal(t, ReasonAborted, report.Failures[0].Reason)

	for _, call := range client.callList() {
		assert.NotContains(t, call.Prompt, "|B|", "category B must not start after the abort")
	}
}

func TestRun_ParallelCategoriesKeepPerCategoryOrder(t *testing.T) {
	client := &stubClient{script: succeedAll}
	opts := testOptions()
	opts.Parallelism = 3

	o := New(client, stubPrompts{}, opts)

	report, err := o.Run(context.Background(), []Category{
		{Name: "A", Count: 12},
		{Name: "B", Count: 8},
		{Name: "C", Count: 20},
	})
	require.NoError(t, err)

	assert.Equal(t, 40, report.TotalObtained())

	// Merged in input order, one contiguous block per category.
	require.Len(t, report.Categories, 3)
	assert.Equal(t, "A", report.Categories[0].Name)
	assert.Equal(t, "B", report.Categories[1].Name)
	assert.Equal(t, "C", report.Categories[2].Name)

	var seen []string
	for _, rec := range report.Records {
		if len(seen) == 0 || seen[len(seen)-1] != rec.Category {
			seen = append(seen, rec.Category)
		}
	}
	assert.Equal(t, []string{"A", "B", "C"}, seen, "records from different categories must not interleave")

	// Within each category, batch order is strict.
	var aBatches []string
	for _, call := range client.callList() {
		if strings.Contains(call.Prompt, "|A|") {
			aBatches = append(aBatches, call.Prompt[strings.LastIndex(call.Prompt, "|"):])
		}
	}
	assert.Equal(t, []string{"|1/2", "|2/2"}, aBatches)
}

func TestRun_MissingTemplateAbortsRun(t *testing.T) {
	client := &stubClient{script: succeedAll}
	opts := testOptions()
	opts.Template = "missing"

	o := New(client, stubPrompts{}, opts)

	report, err := o.Run(context.Background(), []Category{{Name: "A", Count: 5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.True(t, report.Aborted)
	assert.Zero(t, client.callCount())
}

func TestBatchStateString(t *testing.T) {
	assert.Equal(t, "pending", BatchPending.String())
	assert.Equal(t, "retry_scheduled", BatchRetryScheduled.String())
	assert.Equal(t, "exhausted", BatchExhausted.String())
	assert.Equal(t, "aborted", BatchAborted.String())
}
