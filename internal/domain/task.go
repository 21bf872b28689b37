package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a Task, per §3 and §4.2.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// FailureKind classifies a terminal task failure. Not a type hierarchy —
// a flat classification per §7.
type FailureKind string

const (
	FailureValidation        FailureKind = "validation"
	FailureProviderTransient FailureKind = "provider_transient"
	FailureProviderTerminal  FailureKind = "provider_terminal"
	FailureInfrastructure    FailureKind = "infrastructure"
	FailureCancelled         FailureKind = "cancelled"
	FailureTimeout           FailureKind = "timeout"
)

// Retryable reports whether a failure of this kind may be retried by pipeline
// policy, independent of the remaining retry budget.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureProviderTransient, FailureInfrastructure:
		return true
	default:
		return false
	}
}

// Style is a closed enum of generation styles. Unknown styles are rejected
// at submit time.
type Style string

const (
	StyleProductPhotography Style = "product_photography"
	StyleLifestyle          Style = "lifestyle"
	StyleFlatLay            Style = "flat_lay"
	StyleStudioWhite        Style = "studio_white"
	StyleOutdoor            Style = "outdoor"
)

// ValidStyle reports whether s is one of the closed set of styles.
func ValidStyle(s Style) bool {
	switch s {
	case StyleProductPhotography, StyleLifestyle, StyleFlatLay, StyleStudioWhite, StyleOutdoor:
		return true
	default:
		return false
	}
}

// Task is the unit of work for a single prompt+index. It traverses the
// pipeline once per retry attempt; its id is the idempotence key.
type Task struct {
	ID            uuid.UUID
	JobID         uuid.UUID
	Prompt        string
	Style         Style
	Status        TaskStatus
	ImageID       *uuid.UUID
	ErrorMessage  *string
	FailureKind   *FailureKind
	RetryCount    int
	MaxRetries    int
	LockedBy      *string
	ClaimToken    *uuid.UUID
	LockExpiresAt *time.Time
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// LeaseFresh reports whether the task's current claim is still within its
// lease window, i.e. another worker's claim should not be stolen yet.
func (t Task) LeaseFresh(now time.Time) bool {
	return t.LockExpiresAt != nil && t.LockExpiresAt.After(now)
}
