// Package ratelimit gates external-queue dispatch, grounded on the teacher's
// AIMD inflight-SET design (internal/ratelimit/inflight.go): a Redis SET
// tracks in-flight work so release is idempotent, and a counter bucket caps
// throughput. The teacher's limit is adaptively tuned elsewhere; here
// queue.max_concurrent_dispatches and queue.max_dispatches_per_second are
// fixed operator-supplied config (§6), so there is no AIMD controller to
// port — only the SET/counter mechanics survive.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a fixed concurrent-dispatch ceiling and a fixed
// per-second dispatch-rate ceiling for one external queue (§6
// queue.max_concurrent_dispatches, queue.max_dispatches_per_second).
type Limiter struct {
	rc            *redis.Client
	queue         string
	maxConcurrent int64
	maxPerSecond  int64
}

func NewLimiter(rc *redis.Client, queue string, maxConcurrent, maxPerSecond int64) *Limiter {
	return &Limiter{rc: rc, queue: queue, maxConcurrent: maxConcurrent, maxPerSecond: maxPerSecond}
}

// Allow reports whether the queue has capacity for one more dispatch right
// now, under both ceilings. There is a documented TOCTOU window between
// this check and the caller's ClaimDispatch — bounded overshoot is
// acceptable, same tradeoff the teacher documents for its AIMD limiter.
func (l *Limiter) Allow(ctx context.Context) (bool, error) {
	inflight, err := l.rc.SCard(ctx, DispatchInflightKey(l.queue)).Result()
	if err != nil {
		return false, err
	}
	if l.maxConcurrent > 0 && inflight >= l.maxConcurrent {
		return false, nil
	}

	if l.maxPerSecond <= 0 {
		return true, nil
	}
	key := DispatchRateKey(l.queue, time.Now().Unix())
	count, err := l.rc.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		l.rc.Expire(ctx, key, 2*time.Second)
	}
	return count <= l.maxPerSecond, nil
}

// ClaimDispatch records taskID as in flight. Call only after Allow
// returns true, before the task is forwarded to the Worker Endpoint.
func (l *Limiter) ClaimDispatch(ctx context.Context, taskID string) error {
	return l.rc.SAdd(ctx, DispatchInflightKey(l.queue), taskID).Err()
}

// ReleaseDispatch removes taskID from the in-flight set. Safe to call more
// than once; SREM on a missing member is a no-op. The dispatcher's asynq
// handler calls this once its forward to the Worker Endpoint returns,
// freeing the concurrency slot.
func (l *Limiter) ReleaseDispatch(ctx context.Context, taskID string) error {
	return l.rc.SRem(ctx, DispatchInflightKey(l.queue), taskID).Err()
}
