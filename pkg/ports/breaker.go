package ports

import "context"

// Breaker is a failure-isolation policy wrapped around outbound submissions.
// Execute runs fn and records its outcome; while the policy is open, fn is
// not invoked and Execute fails fast.
type Breaker interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// MetricsSink receives call-outcome records. Implementations must be
// fire-and-forget: Record never blocks the caller and never returns an error.
type MetricsSink interface {
	Record(outcome CallOutcome)
}

// CallOutcome is one completed tool call as reported to the metrics sink.
type CallOutcome struct {
	Provider   string
	ToolName   string
	Success    bool
	DurationMs int64
}
