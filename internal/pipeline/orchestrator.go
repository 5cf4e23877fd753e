// Package pipeline drives batched, rate-limited generation across
// categories. Work is split into batches no larger than the configured batch
// size; batches within a category run strictly in order with a fixed
// inter-batch delay, while independent categories may run in parallel
// workers. Transient failures are retried with a fixed delay up to a capped
// attempt count; a credential failure aborts the whole run, keeping all
// partial results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"faqforge/internal/config"
	"faqforge/internal/generation"
)

// Category is one named generation target. A count of zero produces no
// generation calls.
type Category struct {
	Name  string
	Count int
}

// CategoriesFromConfig reads the categories mapping (name -> count) from the
// resolved configuration. Order follows the sorted key order for
// reproducible runs.
func CategoriesFromConfig(doc *config.Document) ([]Category, error) {
	raw, err := doc.Map("categories")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	categories := make([]Category, 0, len(names))
	for _, name := range names {
		count := 0
		switch n := raw[name].(type) {
		case int:
			count = n
		case float64:
			count = int(n)
		default:
			return nil, fmt.Errorf("category %s: count must be a number, got %T", name, raw[name])
		}
		if count < 0 {
			return nil, fmt.Errorf("category %s: count must be >= 0, got %d", name, count)
		}
		categories = append(categories, Category{Name: name, Count: count})
	}
	return categories, nil
}

// Options configure the orchestrator.
type Options struct {
	// BatchSize caps records requested per generation call.
	BatchSize int
	// Delay is the fixed pause between batches within a category and
	// before each retry.
	Delay time.Duration
	// MaxAttempts caps attempts per batch on transient failures.
	MaxAttempts int
	// Parallelism bounds concurrent category workers; 1 serializes.
	Parallelism int
	// Template names the prompt used per batch; Fallback names the
	// simplified variant used once after a malformed response.
	Template string
	Fallback string
	Logger   *zap.Logger
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:   10,
		Delay:       2 * time.Second,
		MaxAttempts: 3,
		Parallelism: 1,
		Template:    "batch_generate",
		Fallback:    "batch_generate_simple",
	}
}

// OptionsFromConfig reads orchestration settings from the generation.*
// section, falling back to defaults for absent keys.
func OptionsFromConfig(doc *config.Document) Options {
	def := DefaultOptions()
	return Options{
		BatchSize:   doc.IntDefault("generation.batch_size", def.BatchSize),
		Delay:       doc.DurationDefault("generation.rate_limit_delay", def.Delay),
		MaxAttempts: doc.IntDefault("generation.max_attempts", def.MaxAttempts),
		Parallelism: doc.IntDefault("generation.parallelism", def.Parallelism),
		Template:    doc.StringDefault("generation.template", def.Template),
		Fallback:    doc.StringDefault("generation.fallback_template", def.Fallback),
	}
}

// promptRenderer is the slice of the prompt engine the orchestrator needs.
type promptRenderer interface {
	Render(name string, params map[string]interface{}) (string, error)
}

// Orchestrator runs the generation pipeline against a Client.
type Orchestrator struct {
	client  generation.Client
	prompts promptRenderer
	opts    Options
	logger  *zap.Logger
}

// New creates an Orchestrator. Zero or negative option values fall back to
// defaults.
func New(client generation.Client, prompts promptRenderer, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = def.Parallelism
	}
	if opts.Template == "" {
		opts.Template = def.Template
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		client:  client,
		prompts: prompts,
		opts:    opts,
		logger:  opts.Logger,
	}
}

// abortState records the first fatal error and cancels the run. Later
// fatals are ignored; the first one wins.
type abortState struct {
	once   sync.Once
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (a *abortState) trigger(err error) {
	a.once.Do(func() {
		a.mu.Lock()
		a.err = err
		a.mu.Unlock()
		a.cancel()
	})
}

func (a *abortState) reason() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Run executes the pipeline over the given categories and returns the
// aggregate report. The report is never nil: an aborted run returns the
// partial results accumulated so far together with the abort error.
func (o *Orchestrator) Run(ctx context.Context, categories []Category) (*AggregateReport, error) {
	report := &AggregateReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	abort := &abortState{cancel: cancel}

	o.logger.Info("pipeline run starting",
		zap.String("run_id", report.RunID),
		zap.Int("categories", len(categories)),
		zap.Int("batch_size", o.opts.BatchSize),
		zap.Int("parallelism", o.opts.Parallelism))

	shards := make([]*categoryResult, len(categories))
	var g errgroup.Group
	g.SetLimit(o.opts.Parallelism)
	for i, cat := range categories {
		g.Go(func() error {
			shards[i] = o.runCategory(runCtx, cat, abort)
			return nil
		})
	}
	_ = g.Wait()

	// One writer per category; merge the shards in input order so a
	// category's records are never interleaved with another's mid-slice.
	for _, shard := range shards {
		if shard == nil {
			continue
		}
		report.Records = append(report.Records, shard.records...)
		report.Categories = append(report.Categories, shard.outcome)
		report.Failures = append(report.Failures, shard.failures...)
	}
	report.FinishedAt = time.Now().UTC()

	if err := abort.reason(); err != nil {
		report.Aborted = true
		report.AbortReason = err.Error()
		o.logger.Error("pipeline run aborted",
			zap.String("run_id", report.RunID),
			zap.Int("records", len(report.Records)),
			zap.Error(err))
		return report, err
	}

	o.logger.Info("pipeline run complete",
		zap.String("run_id", report.RunID),
		zap.Int("requested", report.TotalRequested()),
		zap.Int("obtained", report.TotalObtained()),
		zap.Int("failures", len(report.Failures)))
	return report, nil
}

// runCategory executes all batches for one category, strictly in order.
func (o *Orchestrator) runCategory(ctx context.Context, cat Category, abort *abortState) *categoryResult {
	result := &categoryResult{
		outcome: CategoryOutcome{Name: cat.Name, Requested: cat.Count},
	}
	if cat.Count <= 0 {
		return result
	}

	totalBatches := (cat.Count + o.opts.BatchSize - 1) / o.opts.BatchSize
	remaining := cat.Count

	for index := 1; index <= totalBatches; index++ {
		if ctx.Err() != nil {
			return result
		}

		target := remaining
		if target > o.opts.BatchSize {
			target = o.opts.BatchSize
		}
		remaining -= target

		batch := &batchRun{
			category: cat.Name,
			index:    index,
			total:    totalBatches,
			target:   target,
			state:    BatchPending,
		}
		records, failure := o.runBatch(ctx, batch, abort)

		result.records = append(result.records, records...)
		result.outcome.Obtained += len(records)
		if failure != nil {
			result.failures = append(result.failures, *failure)
		}
		if batch.state == BatchAborted {
			return result
		}

		// Fixed rate-limit pause between batches, skipped after the last.
		if index < totalBatches {
			if err := sleepCtx(ctx, o.opts.Delay); err != nil {
				return result
			}
		}
	}

	return result
}

// runBatch advances one batch through its state machine until it resolves.
// A resolved batch either contributes records (Succeeded) or a classified
// failure (Exhausted); Aborted batches stop the whole category.
func (o *Orchestrator) runBatch(ctx context.Context, b *batchRun, abort *abortState) ([]generation.Record, *BatchFailure) {
	promptText, err := o.renderPrompt(o.opts.Template, b)
	if err != nil {
		// Authoring mistake: abort the run with the template name in the
		// error rather than retrying.
		b.state = BatchAborted
		abort.trigger(err)
		return nil, &BatchFailure{
			Category: b.category, Batch: b.index,
			Reason: ReasonAborted, Attempts: b.attempts, Detail: err.Error(),
		}
	}

	var lastErr error
	for {
		if ctx.Err() != nil {
			b.state = BatchAborted
			return nil, nil
		}

		b.state = BatchAttempting
		b.attempts++

		records, genErr := o.client.Generate(ctx, promptText, b.target)
		if genErr == nil {
			b.state = BatchSucceeded
			o.logger.Debug("batch succeeded",
				zap.String("category", b.category),
				zap.Int("batch", b.index),
				zap.Int("attempts", b.attempts),
				zap.Int("records", len(records)))
			return o.stamp(records, b.category), nil
		}
		lastErr = genErr

		switch {
		case generation.IsFatalAuth(genErr):
			b.state = BatchAborted
			abort.trigger(genErr)
			return nil, &BatchFailure{
				Category: b.category, Batch: b.index,
				Reason: ReasonAborted, Attempts: b.attempts, Detail: genErr.Error(),
			}

		case generation.IsMalformed(genErr):
			if !b.usedFallback && o.opts.Fallback != "" {
				// One retry with the simplified prompt variant.
				b.usedFallback = true
				fallback, ferr := o.renderPrompt(o.opts.Fallback, b)
				if ferr == nil {
					promptText = fallback
					b.state = BatchRetryScheduled
					o.logger.Warn("malformed response, retrying with fallback prompt",
						zap.String("category", b.category),
						zap.Int("batch", b.index))
					if err := sleepCtx(ctx, o.opts.Delay); err != nil {
						b.state = BatchAborted
						return nil, nil
					}
					continue
				}
				o.logger.Warn("fallback template unavailable",
					zap.String("template", o.opts.Fallback),
					zap.Error(ferr))
			}
			b.state = BatchExhausted
			return nil, &BatchFailure{
				Category: b.category, Batch: b.index,
				Reason: ReasonMalformedResponse, Attempts: b.attempts, Detail: lastErr.Error(),
			}

		case generation.IsTransient(genErr):
			if b.attempts < o.opts.MaxAttempts {
				b.state = BatchRetryScheduled
				o.logger.Warn("transient failure, retrying",
					zap.String("category", b.category),
					zap.Int("batch", b.index),
					zap.Int("attempt", b.attempts),
					zap.Error(genErr))
				if err := sleepCtx(ctx, o.opts.Delay); err != nil {
					b.state = BatchAborted
					return nil, nil
				}
				continue
			}
			b.state = BatchExhausted
			o.logger.Warn("batch exhausted retries",
				zap.String("category", b.category),
				zap.Int("batch", b.index),
				zap.Int("attempts", b.attempts))
			return nil, &BatchFailure{
				Category: b.category, Batch: b.index,
				Reason: ReasonTransientExhausted, Attempts: b.attempts, Detail: lastErr.Error(),
			}

		case errors.Is(genErr, context.Canceled), errors.Is(genErr, context.DeadlineExceeded):
			b.state = BatchAborted
			return nil, nil

		default:
			// Unclassified failures get the transient treatment: bounded
			// retries, then zero contribution.
			if b.attempts < o.opts.MaxAttempts {
				b.state = BatchRetryScheduled
				if err := sleepCtx(ctx, o.opts.Delay); err != nil {
					b.state = BatchAborted
					return nil, nil
				}
				continue
			}
			b.state = BatchExhausted
			return nil, &BatchFailure{
				Category: b.category, Batch: b.index,
				Reason: ReasonTransientExhausted, Attempts: b.attempts, Detail: lastErr.Error(),
			}
		}
	}
}

func (o *Orchestrator) renderPrompt(template string, b *batchRun) (string, error) {
	return o.prompts.Render(template, map[string]interface{}{
		"category":      b.category,
		"count":         b.target,
		"batch":         b.index,
		"total_batches": b.total,
	})
}

// stamp sets the category labels the model cannot know.
func (o *Orchestrator) stamp(records []generation.Record, category string) []generation.Record {
	for i := range records {
		records[i].Category = category
		if records[i].Subcategory == "" {
			records[i].Subcategory = category
		}
	}
	return records
}

// sleepCtx pauses for d, returning early with the context error on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
