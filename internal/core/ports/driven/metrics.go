package driven

import "time"

// MetricsRecorder records pipeline metrics.
type MetricsRecorder interface {
	// JobFinished counts a job reaching a terminal status.
	JobFinished(status string)

	// StageDuration observes how long a pipeline stage took.
	StageDuration(stage string, d time.Duration)

	// DraftFallbacks counts slides that received fallback copy.
	DraftFallbacks(n int)

	// CompletionCall counts a completion request by outcome ("ok", "error", "malformed").
	CompletionCall(outcome string)
}
