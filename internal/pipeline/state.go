package pipeline

// BatchState tracks one batch through its lifecycle. Transitions:
// Pending -> Attempting -> {Succeeded | RetryScheduled -> Attempting |
// Exhausted}, with Aborted reachable from any state when a fatal credential
// failure stops the run.
type BatchState int

const (
	BatchPending BatchState = iota
	BatchAttempting
	BatchRetryScheduled
	BatchSucceeded
	BatchExhausted
	BatchAborted
)

func (s BatchState) String() string {
	switch s {
	case BatchPending:
		return "pending"
	case BatchAttempting:
		return "attempting"
	case BatchRetryScheduled:
		return "retry_scheduled"
	case BatchSucceeded:
		return "succeeded"
	case BatchExhausted:
		return "exhausted"
	case BatchAborted:
		return "aborted"
	}
	return "unknown"
}

// batchRun is the unit of work: one category, one sub-count, one generation
// attempt cycle with its retry history. It is summarized into the aggregate
// report once resolved.
type batchRun struct {
	category     string
	index        int // 1-based batch number within the category
	total        int // total batches for the category
	target       int // records requested from this batch
	state        BatchState
	attempts     int
	usedFallback bool
}
