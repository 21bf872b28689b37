package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/google/uuid"
	"github.com/yourorg/imageforge/internal/domain"
)

// CreateJobWithTasks creates one Job and its Task rows in a single
// transaction, per §4.1: failure before commit leaves no partial job.
func (g *Gateway) CreateJobWithTasks(ctx context.Context, prompts []string, style domain.Style, countPerPrompt, maxRetries int) (domain.Job, []domain.Task, error) {
	tx, err := g.Pool.Begin(ctx)
	if err != nil {
		return domain.Job{}, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	total := len(prompts) * countPerPrompt
	jobID := uuid.New()

	var job domain.Job
	err = tx.QueryRow(ctx, `
		INSERT INTO job (id, status, total_tasks, completed_tasks, failed_tasks, created_at, updated_at)
		VALUES ($1, 'pending', $2, 0, 0, NOW(), NOW())
		RETURNING id, status, total_tasks, completed_tasks, failed_tasks, created_at, updated_at, completed_at`,
		jobID, total,
	).Scan(&job.ID, &job.Status, &job.TotalTasks, &job.CompletedTasks, &job.FailedTasks,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt)
	if err != nil {
		return domain.Job{}, nil, fmt.Errorf("insert job: %w", err)
	}

	tasks := make([]domain.Task, 0, total)
	for _, prompt := range prompts {
		for i := 0; i < countPerPrompt; i++ {
			taskID := uuid.New()
			var t domain.Task
			err := tx.QueryRow(ctx, `
				INSERT INTO task (id, job_id, prompt, style, status, retry_count, max_retries, created_at)
				VALUES ($1, $2, $3, $4, 'pending', 0, $5, NOW())
				RETURNING id, job_id, prompt, style, status, retry_count, max_retries, created_at`,
				taskID, jobID, prompt, style, maxRetries,
			).Scan(&t.ID, &t.JobID, &t.Prompt, &t.Style, &t.Status, &t.RetryCount, &t.MaxRetries, &t.CreatedAt)
			if err != nil {
				return domain.Job{}, nil, fmt.Errorf("insert task: %w", err)
			}
			tasks = append(tasks, t)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Job{}, nil, fmt.Errorf("commit tx: %w", err)
	}

	return job, tasks, nil
}

// GetJob reads a single job by id.
func (g *Gateway) GetJob(ctx context.Context, jobID uuid.UUID) (domain.Job, error) {
	var j domain.Job
	err := g.Pool.QueryRow(ctx, `
		SELECT id, status, total_tasks, completed_tasks, failed_tasks, created_at, updated_at, completed_at
		FROM job WHERE id = $1`, jobID,
	).Scan(&j.ID, &j.Status, &j.TotalTasks, &j.CompletedTasks, &j.FailedTasks,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, ErrNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListTasksForJob returns every task belonging to a job, in creation order.
// Used by the job-detail projection (§4.4, §7).
func (g *Gateway) ListTasksForJob(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	rows, err := g.Pool.Query(ctx, `
		SELECT id, job_id, prompt, style, status, image_id, error_message, failure_kind,
		       retry_count, max_retries, created_at, started_at, completed_at
		FROM task WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.JobID, &t.Prompt, &t.Style, &t.Status, &t.ImageID,
			&t.ErrorMessage, &t.FailureKind, &t.RetryCount, &t.MaxRetries,
			&t.CreatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CancelJob moves a job in pending|running to cancelled, per §4.3. In-flight
// tasks are left to complete; their outcomes are still recorded but cannot
// move the job out of cancelled (RecordOutcome enforces that separately).
func (g *Gateway) CancelJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	tag, err := g.Pool.Exec(ctx, `
		UPDATE job SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'running')`, jobID)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
