package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/yourorg/imageforge/internal/domain"
)

// recordOutcomeSQL is the Progress Aggregator's single atomic
// read-modify-write (§4.3). It must never be split into a read followed by
// a write — under concurrent task completions on the same job that would
// lose updates. The CASE expressions derive both the new status and
// completed_at from the post-increment counters in the same statement that
// performs the increment.
//
// A job already cancelled stays cancelled: outcomes are still recorded
// (counters still move) but the status column is pinned.
const recordOutcomeSQL = `
UPDATE job SET
	completed_tasks = completed_tasks + $2,
	failed_tasks    = failed_tasks + $3,
	status = CASE
		WHEN status = 'cancelled' THEN 'cancelled'
		WHEN (completed_tasks + $2 + failed_tasks + $3) >= total_tasks AND (failed_tasks + $3) > 0 THEN 'failed'
		WHEN (completed_tasks + $2 + failed_tasks + $3) >= total_tasks THEN 'completed'
		ELSE 'running'
	END,
	completed_at = CASE
		WHEN status <> 'cancelled' AND (completed_tasks + $2 + failed_tasks + $3) >= total_tasks THEN NOW()
		ELSE completed_at
	END,
	updated_at = NOW()
WHERE id = $1
RETURNING status, completed_tasks, failed_tasks, total_tasks, completed_at`

// MarkJobRunning flips a job from pending to running the first time any of
// its tasks starts (§3: "status = running once at least one task has
// started"). It is a no-op once the job has left pending, so callers can
// call it unconditionally after every successful task claim without
// re-checking job state themselves.
func (g *Gateway) MarkJobRunning(ctx context.Context, jobID uuid.UUID) error {
	_, err := g.Pool.Exec(ctx, `
		UPDATE job SET status = 'running', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, jobID)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return nil
}

// RecordOutcome implements the Progress Aggregator's sole write path for
// job counters (§4.3). Invoked exactly once per terminal task outcome.
func (g *Gateway) RecordOutcome(ctx context.Context, jobID uuid.UUID, success bool) (domain.Job, error) {
	completedDelta, failedDelta := 0, 0
	if success {
		completedDelta = 1
	} else {
		failedDelta = 1
	}

	var j domain.Job
	j.ID = jobID
	err := g.Pool.QueryRow(ctx, recordOutcomeSQL, jobID, completedDelta, failedDelta).
		Scan(&j.Status, &j.CompletedTasks, &j.FailedTasks, &j.TotalTasks, &j.CompletedAt)
	if err != nil {
		return domain.Job{}, fmt.Errorf("record outcome: %w", err)
	}
	return j, nil
}
