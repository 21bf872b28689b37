package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ReclaimExpiredLeases resets tasks whose lease has expired and were never
// re-claimed by another worker back to pending, complementing ClaimTask's
// opportunistic steal: a task only gets stolen on the *next* claim attempt,
// so one that nobody ever attempts again (a crashed in-process pool, a
// dropped external-queue message) would otherwise sit running forever.
// Grounded on the teacher's reapOrphanedJobs query (internal/worker/reaper.go),
// scoped to task's simpler single-lease-owner model instead of jobs' exec-log
// bookkeeping.
func (g *Gateway) ReclaimExpiredLeases(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := g.Pool.Query(ctx, `
		WITH stuck AS (
			SELECT id FROM task
			WHERE status = 'running' AND lock_expires_at < NOW()
			ORDER BY lock_expires_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE task SET
			status          = 'pending',
			locked_by       = NULL,
			claim_token     = NULL,
			lock_expires_at = NULL
		FROM stuck
		WHERE task.id = stuck.id
		RETURNING task.id`, limit)
	if err != nil {
		return nil, fmt.Errorf("reclaim expired leases: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reclaimed task: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStalePending returns pending task ids older than the given window,
// belonging to a non-cancelled job — candidates for the reconciler named in
// §4.1 ("If any enqueue fails, log and leave the task in pending; a
// reconciler (operator concern) may re-enqueue").
func (g *Gateway) ListStalePending(ctx context.Context, olderThanSeconds int, limit int) ([]uuid.UUID, error) {
	rows, err := g.Pool.Query(ctx, `
		SELECT t.id FROM task t
		JOIN job j ON j.id = t.job_id
		WHERE t.status = 'pending'
		  AND t.created_at < NOW() - ($1 * interval '1 second')
		  AND j.status <> 'cancelled'
		ORDER BY t.created_at ASC
		LIMIT $2`, olderThanSeconds, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending tasks: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale task: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
