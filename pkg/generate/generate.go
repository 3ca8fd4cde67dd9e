// Package generate defines the contract for asynchronous presentation
// generation services. A service accepts plain text, returns a job id, and
// reports job progress until a terminal status.
package generate

import "context"

// JobID identifies one generation job at the remote service.
type JobID string

// Status is the service-reported job state. The poller layers its own
// client-side timeout on top of these; the service itself only ever reports
// running, succeeded, or failed.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further polling is meaningful.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// JobState is one poll observation: the status plus, on success, the locator
// (URL) of the finished presentation.
type JobState struct {
	Status Status
	Result string
}

// Service is an asynchronous generation backend.
type Service interface {
	// Submit sends content for generation and returns the job id. An error
	// means the service rejected the request; submission is never retried.
	Submit(ctx context.Context, content string) (JobID, error)

	// Poll fetches the current state of a job. Transient transport errors
	// are the caller's problem to absorb.
	Poll(ctx context.Context, id JobID) (JobState, error)
}
