package metrics

import "time"

// ResultLabel enumerates tool-run result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Job outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeDiverged = "diverged"
	OutcomeFailed   = "failed"
)

// Recorder defines observability hooks for job and tool metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder (allowing optional injection).
type Recorder interface {
	IncToolRun(tool string, result ResultLabel)
	ObservePrimaryRuns(n int)
	ObserveJobDuration(d time.Duration)
	IncJobOutcome(outcome string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncToolRun(string, ResultLabel)   {}
func (NoopRecorder) ObservePrimaryRuns(int)           {}
func (NoopRecorder) ObserveJobDuration(time.Duration) {}
func (NoopRecorder) IncJobOutcome(string)             {}
