package domain

// PipelineResult is what TaskPipeline.Run returns to its caller (in-process
// worker loop or the Worker Endpoint handler). It never carries a Go error
// across the pipeline boundary for business failures — see §7.
type PipelineResult struct {
	// Terminal is true when the task reached completed or failed. False
	// means the task was reset to pending for a retry and the caller must
	// not notify the Progress Aggregator.
	Terminal bool
	Status   TaskStatus
	Kind     FailureKind
	Message  string

	// RetryCount is the task's retry_count after a reset for retry (Status
	// pending), used by the caller to compute this attempt's backoff delay
	// before redelivery. It is zero for every other outcome.
	RetryCount int
}
