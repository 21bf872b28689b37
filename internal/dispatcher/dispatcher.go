// Package dispatcher implements the Dispatcher (§4.1): validates and
// persists a batch submission transactionally, then drives task delivery
// under one of two interchangeable enqueue modes that share the same
// Task Pipeline.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/yourorg/imageforge/internal/config"
	"github.com/yourorg/imageforge/internal/domain"
	"github.com/yourorg/imageforge/internal/pipeline"
	"github.com/yourorg/imageforge/internal/ratelimit"
	"github.com/yourorg/imageforge/internal/store"
)

// ValidationError wraps a submit-time validation failure so the HTTP layer
// can map it to 400, per §6 "Validation errors -> 400 with a structured
// {detail}".
type ValidationError struct{ Detail string }

func (e *ValidationError) Error() string { return e.Detail }

// TaskQueueName is the asynq task type name used for the process-task
// message (§6 "Task-queue message format").
const TaskQueueName = "process_task"

// Dispatcher owns task delivery for one running process. It never runs
// pipeline work itself (§4.1) — in-process mode hands tasks to its own
// worker pool, external mode hands them to asynq.
type Dispatcher struct {
	store  *store.Gateway
	cfg    config.Config
	logger *slog.Logger

	queue *unboundedQueue // in-process mode only

	asynqClient *asynq.Client  // external mode only
	limiter     *ratelimit.Limiter
}

// New builds a Dispatcher. asynqClient and limiter may be nil in in-process
// mode; queue delivery is wired up separately by StartWorkers (in-process)
// or by registering HandleDispatch on the asynq server's mux (external,
// done by cmd/worker).
func New(st *store.Gateway, cfg config.Config, logger *slog.Logger, asynqClient *asynq.Client, limiter *ratelimit.Limiter) *Dispatcher {
	return &Dispatcher{
		store:       st,
		cfg:         cfg,
		logger:      logger,
		queue:       newUnboundedQueue(),
		asynqClient: asynqClient,
		limiter:     limiter,
	}
}

// Submit implements §4.1's contract. Validation happens entirely before any
// persistence; once CreateJobWithTasks commits, every task is enqueued
// exactly once.
func (d *Dispatcher) Submit(ctx context.Context, rawPrompts []string, style domain.Style, countPerPrompt int) (domain.Job, []domain.Task, error) {
	prompts := make([]string, 0, len(rawPrompts))
	for _, p := range rawPrompts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			return domain.Job{}, nil, &ValidationError{Detail: "prompts must not be empty"}
		}
		prompts = append(prompts, trimmed)
	}
	if len(prompts) == 0 {
		return domain.Job{}, nil, &ValidationError{Detail: "at least one prompt is required"}
	}
	if style == "" {
		style = domain.StyleProductPhotography
	}
	if !domain.ValidStyle(style) {
		return domain.Job{}, nil, &ValidationError{Detail: fmt.Sprintf("unknown style %q", style)}
	}
	if countPerPrompt < 1 {
		return domain.Job{}, nil, &ValidationError{Detail: fmt.Sprintf("count_per_prompt must be >= 1, got %d", countPerPrompt)}
	}

	maxRetries := d.cfg.MaxRetries
	job, tasks, err := d.store.CreateJobWithTasks(ctx, prompts, style, countPerPrompt, maxRetries)
	if err != nil {
		return domain.Job{}, nil, fmt.Errorf("create job: %w", err)
	}

	for _, t := range tasks {
		d.enqueue(ctx, t.ID, 0)
	}

	return job, tasks, nil
}

// enqueue delivers one task id under the configured mode with no delay — the
// initial dispatch path (§4.1), where retryCount is always 0. Per §4.1, an
// enqueue failure in external mode is logged and the task is left pending
// for an operator reconciler rather than failing the whole submission.
func (d *Dispatcher) enqueue(ctx context.Context, taskID uuid.UUID, retryCount int) {
	d.enqueueAfter(ctx, taskID, retryCount, 0)
}

// enqueueAfter is enqueue's delayed form, used to apply §9's bounded
// exponential backoff before a retried task is redelivered.
func (d *Dispatcher) enqueueAfter(ctx context.Context, taskID uuid.UUID, retryCount int, delay time.Duration) {
	switch d.cfg.Mode {
	case config.ModeInProcess:
		d.queue.PushAfter(taskEnvelope{taskID: taskID.String(), retryCount: retryCount}, delay)
	case config.ModeExternal:
		if err := d.enqueueExternal(ctx, taskID, retryCount, delay); err != nil {
			d.logger.Error("external enqueue failed; task left pending", "task_id", taskID, "err", err)
		}
	}
}

// Reenqueue is called by the pipeline's caller (the in-process worker or the
// Worker Endpoint handler) after a retryable failure resets a task back to
// pending, so the same delivery path picks it up again (§4.2 step 7), held
// off for this attempt's backoff delay.
func (d *Dispatcher) Reenqueue(ctx context.Context, taskID uuid.UUID, retryCount int) {
	d.enqueueAfter(ctx, taskID, retryCount, d.cfg.RetryBackoff(retryCount))
}

// RunPipeline is the single call both delivery modes make into the shared
// Task Pipeline, re-enqueueing on a retryable outcome.
func RunPipeline(ctx context.Context, d *Dispatcher, p *pipeline.Pipeline, taskID uuid.UUID, workerID string) {
	result, err := p.Run(ctx, taskID, workerID)
	if err != nil {
		d.logger.Error("pipeline run error", "task_id", taskID, "err", err)
		return
	}
	if !result.Terminal && result.Status == domain.TaskPending {
		d.Reenqueue(ctx, taskID, result.RetryCount)
	}
}
