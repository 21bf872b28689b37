package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/imageforge/internal/store"
)

// extendLease refreshes a task's lock_expires_at at leaseSeconds/3 intervals,
// the same cadence the teacher's worker package uses for job leases
// (internal/worker/execute.go extendLease), so two extension opportunities
// happen before the lease would otherwise expire. Stops on its own once the
// lease has been stolen; it only logs a warning and does not notify the caller.
func extendLease(ctx context.Context, st *store.Gateway, taskID, claimToken uuid.UUID, leaseSeconds int, stop <-chan struct{}, logger *slog.Logger) {
	interval := time.Duration(leaseSeconds) * time.Second / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := st.ExtendLease(ctx, taskID, claimToken, leaseSeconds)
			if err != nil {
				logger.Warn("lease extension failed", "task_id", taskID, "err", err)
				continue
			}
			if !held {
				logger.Warn("lease extension fenced; task claim was stolen", "task_id", taskID)
				return
			}
		}
	}
}
