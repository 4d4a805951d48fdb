package constants

// JobStatus is the canonical status of a recognition job.
type JobStatus string

// Stable values (logged and compared as-is).
const (
	JobStatusRunning   JobStatus = "RUNNING"   // submitted, result not ready
	JobStatusSucceeded JobStatus = "SUCCEEDED" // terminal: pages available
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
)

// Terminal reports whether no further transition can happen from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}
