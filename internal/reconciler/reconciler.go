// Package reconciler is the operator-concern background loop §4.1 and §5
// allude to without specifying: recovering tasks whose lease expired with
// no one left to steal them, and re-enqueueing tasks that a failed enqueue
// call left stranded in pending. Grounded on the teacher's reaper election
// (internal/worker/reaper.go): a Postgres advisory lock picks exactly one
// winner across however many processes are running, so the reconcile work
// itself never races.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourorg/imageforge/internal/store"
)

// reconcilerLockKey is the advisory lock key reconciler instances compete
// for. Distinct from the teacher's reaper lock key so the two could in
// principle coexist in a shared database.
const reconcilerLockKey = int64(0x494d4647)

// Reenqueuer is the narrow slice of Dispatcher the reconciler needs —
// pushing a task id back onto whichever delivery path is configured.
type Reenqueuer interface {
	Reenqueue(ctx context.Context, taskID uuid.UUID, retryCount int)
}

// Run competes for the advisory lock and, on the winner, ticks the
// reconcile loop until ctx is canceled. Non-winners retry the election
// every 10 seconds, the same cadence the teacher's RunReaper uses.
func Run(ctx context.Context, pool *pgxpool.Pool, gateway *store.Gateway, reenqueuer Reenqueuer, logger *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := pool.Acquire(ctx)
		if err != nil {
			logger.Error("reconciler: acquire connection failed", "err", err)
			time.Sleep(5 * time.Second)
			continue
		}

		var won bool
		err = conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, reconcilerLockKey).Scan(&won)
		if err != nil || !won {
			conn.Release()
			time.Sleep(10 * time.Second)
			continue
		}

		logger.Info("reconciler: won election")
		loop(ctx, gateway, reenqueuer, logger)
		conn.Release()
	}
}

func loop(ctx context.Context, gateway *store.Gateway, reenqueuer Reenqueuer, logger *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimExpiredLeases(ctx, gateway, reenqueuer, logger)
			reenqueueStalePending(ctx, gateway, reenqueuer, logger)
		}
	}
}

func reclaimExpiredLeases(ctx context.Context, gateway *store.Gateway, reenqueuer Reenqueuer, logger *slog.Logger) {
	ids, err := gateway.ReclaimExpiredLeases(ctx, 500)
	if err != nil {
		logger.Error("reconciler: reclaim expired leases failed", "err", err)
		return
	}
	for _, id := range ids {
		reenqueuer.Reenqueue(ctx, id, 0)
	}
	if len(ids) > 0 {
		logger.Info("reconciler: reclaimed expired leases", "count", len(ids))
	}
}

func reenqueueStalePending(ctx context.Context, gateway *store.Gateway, reenqueuer Reenqueuer, logger *slog.Logger) {
	ids, err := gateway.ListStalePending(ctx, 60, 500)
	if err != nil {
		logger.Error("reconciler: list stale pending failed", "err", err)
		return
	}
	for _, id := range ids {
		reenqueuer.Reenqueue(ctx, id, 0)
	}
	if len(ids) > 0 {
		logger.Info("reconciler: re-enqueued stale pending tasks", "count", len(ids))
	}
}
