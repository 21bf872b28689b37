package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourorg/imageforge/internal/domain"
)

// claimSQL atomically claims one task for this worker, adapted from the
// teacher's FOR UPDATE SKIP LOCKED job-claim query (internal/worker/claim.go)
// but scoped to a single known task id rather than picking the next
// available one — the Task Pipeline is invoked with a specific task id by
// the dispatcher's channel or the worker endpoint's payload, never by
// polling a queue of rows itself (§4.2 step 1).
//
// A task already running on another worker is only stolen once its lease
// has expired (lock_expires_at < NOW()); a fresh claim aborts instead.
const claimSQL = `
UPDATE task SET
	status          = 'running',
	locked_by       = $2,
	claim_token     = $3,
	lock_expires_at = NOW() + ($4 * interval '1 second'),
	started_at      = COALESCE(started_at, NOW())
WHERE id = $1
  AND (status = 'pending' OR (status = 'running' AND lock_expires_at < NOW()))
RETURNING id, job_id, prompt, style, status, image_id, error_message, failure_kind,
          retry_count, max_retries, locked_by, claim_token, lock_expires_at,
          created_at, started_at, completed_at`

// ClaimStatus reports how ClaimTask resolved.
type ClaimStatus string

const (
	ClaimOK       ClaimStatus = "claimed"
	ClaimBusy     ClaimStatus = "busy"     // another worker holds a fresh lease
	ClaimTerminal ClaimStatus = "terminal" // task already completed or failed
	ClaimNotFound ClaimStatus = "not_found"
)

// ClaimTask implements §4.2 step 1 (Claim). If the task is already terminal
// it is returned as-is with ClaimTerminal so the caller can return the
// stored outcome as a no-op instead of re-running the pipeline.
func (g *Gateway) ClaimTask(ctx context.Context, taskID uuid.UUID, workerID string, claimToken uuid.UUID, leaseSeconds int) (domain.Task, ClaimStatus, error) {
	row := g.Pool.QueryRow(ctx, claimSQL, taskID, workerID, claimToken, leaseSeconds)
	t, err := scanTask(row)
	if err == nil {
		return t, ClaimOK, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, "", fmt.Errorf("claim task: %w", err)
	}

	// No row was updated: find out why (terminal, busy, or missing) so the
	// pipeline can react correctly instead of treating every miss the same.
	existing, getErr := g.GetTask(ctx, taskID)
	if getErr != nil {
		return domain.Task{}, ClaimNotFound, nil
	}
	switch existing.Status {
	case domain.TaskCompleted, domain.TaskFailed:
		return existing, ClaimTerminal, nil
	case domain.TaskRunning:
		return existing, ClaimBusy, nil
	default:
		return existing, ClaimBusy, nil
	}
}

// GetTask reads a single task by id.
func (g *Gateway) GetTask(ctx context.Context, taskID uuid.UUID) (domain.Task, error) {
	row := g.Pool.QueryRow(ctx, `
		SELECT id, job_id, prompt, style, status, image_id, error_message, failure_kind,
		       retry_count, max_retries, locked_by, claim_token, lock_expires_at,
		       created_at, started_at, completed_at
		FROM task WHERE id = $1`, taskID)
	t, err := scanTask(row)
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ResetForRetry implements the retryable branch of §4.2 step 7: increments
// retry_count, clears the lock, and moves the task back to pending so the
// caller can re-enqueue (external mode) or re-insert into the channel
// (in-process mode). Fenced on claimToken so a lease-expired steal cannot
// clobber a still-live worker's retry.
func (g *Gateway) ResetForRetry(ctx context.Context, taskID uuid.UUID, claimToken uuid.UUID, kind domain.FailureKind, message string) (bool, error) {
	tag, err := g.Pool.Exec(ctx, `
		UPDATE task SET
			status          = 'pending',
			retry_count     = retry_count + 1,
			error_message   = $3,
			failure_kind    = $4,
			locked_by       = NULL,
			claim_token     = NULL,
			lock_expires_at = NULL
		WHERE id = $1 AND claim_token = $2 AND status = 'running'`,
		taskID, claimToken, message, kind)
	if err != nil {
		return false, fmt.Errorf("reset task for retry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FailTask implements the terminal-failure branch of §4.2 step 7.
func (g *Gateway) FailTask(ctx context.Context, taskID uuid.UUID, claimToken uuid.UUID, kind domain.FailureKind, message string) (bool, error) {
	tag, err := g.Pool.Exec(ctx, `
		UPDATE task SET
			status          = 'failed',
			error_message   = $3,
			failure_kind    = $4,
			completed_at    = NOW(),
			locked_by       = NULL,
			claim_token     = NULL,
			lock_expires_at = NULL
		WHERE id = $1 AND claim_token = $2 AND status = 'running'`,
		taskID, claimToken, message, kind)
	if err != nil {
		return false, fmt.Errorf("fail task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteTask implements the success branch of §4.2 step 7: stamps the
// task completed and records the produced image id. Fenced on claimToken
// for the same reason as ResetForRetry/FailTask.
func (g *Gateway) CompleteTask(ctx context.Context, taskID uuid.UUID, claimToken uuid.UUID, imageID uuid.UUID) (bool, error) {
	tag, err := g.Pool.Exec(ctx, `
		UPDATE task SET
			status          = 'completed',
			image_id        = $3,
			completed_at    = NOW(),
			locked_by       = NULL,
			claim_token     = NULL,
			lock_expires_at = NULL
		WHERE id = $1 AND claim_token = $2 AND status = 'running'`,
		taskID, claimToken, imageID)
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExtendLease refreshes lock_expires_at for a task this worker still holds,
// mirroring the teacher's extendLease query (internal/worker/execute.go)
// fenced on claim_token instead of current_execution_id. Returns false once
// the lease has already been stolen, telling the caller's extender
// goroutine to stop.
func (g *Gateway) ExtendLease(ctx context.Context, taskID uuid.UUID, claimToken uuid.UUID, leaseSeconds int) (bool, error) {
	tag, err := g.Pool.Exec(ctx, `
		UPDATE task SET lock_expires_at = NOW() + ($3 * interval '1 second')
		WHERE id = $1 AND claim_token = $2 AND status = 'running'`,
		taskID, claimToken, leaseSeconds)
	if err != nil {
		return false, fmt.Errorf("extend task lease: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.JobID, &t.Prompt, &t.Style, &t.Status, &t.ImageID,
		&t.ErrorMessage, &t.FailureKind, &t.RetryCount, &t.MaxRetries,
		&t.LockedBy, &t.ClaimToken, &t.LockExpiresAt,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt)
	return t, err
}

