// Package domain holds the core entities of the batch image-generation job
// engine: jobs, tasks, and the image (plus its owned sub-records) a
// successful task produces.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a Job, per §3 of the spec.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is a durable record of a batch submission. The Dispatcher only creates
// it; afterwards only the Progress Aggregator writes its counters, while its
// status also moves pending -> running on the first task claim and to
// cancelled on operator cancellation.
type Job struct {
	ID             uuid.UUID
	Status         JobStatus
	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

// ProgressPercentage derives the job's completion percentage. It is never
// stored — always computed from the counters.
func (j Job) ProgressPercentage() float64 {
	if j.TotalTasks == 0 {
		return 0
	}
	pct := float64(j.CompletedTasks+j.FailedTasks) / float64(j.TotalTasks) * 100
	return float64(int(pct*10+0.5)) / 10
}

// IsTerminal reports whether the job has reached a sink state.
func (j Job) IsTerminal() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}
