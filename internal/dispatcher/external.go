package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// taskMessage is the JSON body of a process_task asynq task, matching the
// worker callback format named in §6.
type taskMessage struct {
	TaskID     string `json:"task_id"`
	RetryCount int    `json:"retry_count"`
}

// enqueueExternal posts {task_id, retry_count} to the configured asynq
// queue (§4.1 enqueue mode 1). asynq is the transport; dispatch rate and
// concurrency enforcement happen in the consumer side (HandleDispatch)
// against the Limiter, matching §5's "the queue enforces max concurrent
// dispatches and per-second dispatch rate". delay holds a retried task's
// §9 backoff off the queue via asynq.ProcessIn; it is 0 for first dispatch.
func (d *Dispatcher) enqueueExternal(ctx context.Context, taskID uuid.UUID, retryCount int, delay time.Duration) error {
	payload, err := json.Marshal(taskMessage{TaskID: taskID.String(), RetryCount: retryCount})
	if err != nil {
		return fmt.Errorf("encode task message: %w", err)
	}
	task := asynq.NewTask(TaskQueueName, payload)
	opts := []asynq.Option{asynq.Queue(d.cfg.QueueName), asynq.TaskID(taskID.String())}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	// asynq.TaskID pins the message id to the task id, the same idempotency
	// pattern the teacher's generic queue.Enqueue enforces with its
	// (queue, idempotency_key) unique constraint: a reconciler re-enqueue of
	// a task that is already queued is a harmless no-op instead of a
	// duplicate dispatch.
	_, err = d.asynqClient.EnqueueContext(ctx, task, opts...)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("asynq enqueue: %w", err)
	}
	return nil
}

// HandleDispatch is the asynq consumer-side handler (registered on the
// asynq server run by cmd/worker in external mode). It does not run the
// pipeline itself: per §4.5 the actual work happens behind the Worker
// Endpoint HTTP handler, so this forwards the message there, respecting the
// configured dispatch-rate/concurrency ceilings first (§5).
func (d *Dispatcher) HandleDispatch(ctx context.Context, task *asynq.Task) error {
	var msg taskMessage
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		return fmt.Errorf("malformed process_task payload: %w", err)
	}

	if d.limiter != nil {
		for {
			allowed, err := d.limiter.Allow(ctx)
			if err != nil {
				return fmt.Errorf("dispatch limiter: %w", err)
			}
			if allowed {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
		_ = d.limiter.ClaimDispatch(ctx, msg.TaskID)
		defer func() { _ = d.limiter.ReleaseDispatch(ctx, msg.TaskID) }()
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("re-encode task message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.QueueWorkerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build worker endpoint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", d.cfg.WebhookSecret)

	client := &http.Client{Timeout: d.cfg.TaskBudget() + 30*time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("worker endpoint request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		// Per §4.5, a 5xx means the pipeline could not even be entered;
		// returning an error here lets asynq's own retry policy take over.
		return fmt.Errorf("worker endpoint returned %d", resp.StatusCode)
	}
	return nil
}
