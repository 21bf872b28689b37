package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yourorg/imageforge/internal/dispatcher"
	"github.com/yourorg/imageforge/internal/domain"
	"github.com/yourorg/imageforge/internal/store"
)

type submitRequest struct {
	Prompts        []string `json:"prompts"`
	Style          string   `json:"style"`
	CountPerPrompt *int     `json:"count_per_prompt"`
}

type jobDescriptor struct {
	ID             uuid.UUID  `json:"id"`
	Status         string     `json:"status"`
	TotalTasks     int        `json:"total_tasks"`
	CompletedTasks int        `json:"completed_tasks"`
	FailedTasks    int        `json:"failed_tasks"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

func toDescriptor(j domain.Job) jobDescriptor {
	return jobDescriptor{
		ID:             j.ID,
		Status:         string(j.Status),
		TotalTasks:     j.TotalTasks,
		CompletedTasks: j.CompletedTasks,
		FailedTasks:    j.FailedTasks,
		CreatedAt:      j.CreatedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// SubmitJob implements §6 "Submit": POST /admin/jobs.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.errorResponse(w, http.StatusBadRequest, "malformed request body")
		return
	}

	// count_per_prompt is optional (§6: "count_per_prompt?: int≥1"); omitted
	// defaults to 1, but an explicit value is passed through for Submit to
	// enforce the ≥1 precondition rather than silently clamped here.
	count := 1
	if req.CountPerPrompt != nil {
		count = *req.CountPerPrompt
	}

	job, _, err := a.Dispatcher.Submit(r.Context(), req.Prompts, domain.Style(req.Style), count)
	if err != nil {
		var verr *dispatcher.ValidationError
		if errors.As(err, &verr) {
			a.errorResponse(w, http.StatusBadRequest, verr.Detail)
			return
		}
		a.Logger.Error("submit failed", "err", err)
		a.errorResponse(w, http.StatusInternalServerError, "submit failed")
		return
	}

	a.json(w, http.StatusCreated, toDescriptor(job))
}

// GetJobStatus implements §4.4/§6 "Status": GET /admin/jobs/{id}/status.
func (a *App) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.errorResponse(w, http.StatusBadRequest, "malformed job id")
		return
	}

	job, err := a.Store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.errorResponse(w, http.StatusNotFound, "job not found")
			return
		}
		a.Logger.Error("get job failed", "job_id", jobID, "err", err)
		a.errorResponse(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	a.json(w, http.StatusOK, struct {
		jobDescriptor
		ProgressPercentage float64 `json:"progress_percentage"`
	}{
		jobDescriptor:      toDescriptor(job),
		ProgressPercentage: job.ProgressPercentage(),
	})
}

type taskView struct {
	ID           uuid.UUID  `json:"id"`
	Prompt       string     `json:"prompt"`
	Style        string     `json:"style"`
	Status       string     `json:"status"`
	ImageID      *uuid.UUID `json:"image_id,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	FailureKind  *string    `json:"failure_kind,omitempty"`
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// GetJobDetail implements the job-detail endpoint added in this
// implementation's expansion of §6: the per-task breakdown behind the
// aggregate status projection.
func (a *App) GetJobDetail(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.errorResponse(w, http.StatusBadRequest, "malformed job id")
		return
	}

	job, err := a.Store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.errorResponse(w, http.StatusNotFound, "job not found")
			return
		}
		a.Logger.Error("get job failed", "job_id", jobID, "err", err)
		a.errorResponse(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	tasks, err := a.Store.ListTasksForJob(r.Context(), jobID)
	if err != nil {
		a.Logger.Error("list tasks failed", "job_id", jobID, "err", err)
		a.errorResponse(w, http.StatusInternalServerError, "failed to load tasks")
		return
	}

	views := make([]taskView, len(tasks))
	for i, t := range tasks {
		var kind *string
		if t.FailureKind != nil {
			s := string(*t.FailureKind)
			kind = &s
		}
		views[i] = taskView{
			ID: t.ID, Prompt: t.Prompt, Style: string(t.Style), Status: string(t.Status),
			ImageID: t.ImageID, ErrorMessage: t.ErrorMessage, FailureKind: kind,
			RetryCount: t.RetryCount, CreatedAt: t.CreatedAt, StartedAt: t.StartedAt, CompletedAt: t.CompletedAt,
		}
	}

	a.json(w, http.StatusOK, struct {
		jobDescriptor
		Tasks []taskView `json:"tasks"`
	}{jobDescriptor: toDescriptor(job), Tasks: views})
}

// CancelJob implements §4.3's optional operator cancellation action.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.errorResponse(w, http.StatusBadRequest, "malformed job id")
		return
	}

	ok, err := a.Store.CancelJob(r.Context(), jobID)
	if err != nil {
		a.Logger.Error("cancel job failed", "job_id", jobID, "err", err)
		a.errorResponse(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	if !ok {
		a.errorResponse(w, http.StatusConflict, "job is not cancellable")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type processTaskRequest struct {
	TaskID     string `json:"task_id"`
	RetryCount int    `json:"retry_count"`
}

// ProcessTask implements the Worker Endpoint (§4.5): both external-queue
// dispatch and the in-process pool's HTTP-free path end up invoking
// Pipeline.Run with the same semantics; this handler is only exercised in
// external mode, where the asynq consumer forwards here over HTTP.
func (a *App) ProcessTask(w http.ResponseWriter, r *http.Request) {
	// §6: the worker callback always requires the shared secret; config.Load
	// refuses to start a process with no WEBHOOK_SECRET configured, so this
	// check can never be a no-op.
	if r.Header.Get("X-Webhook-Secret") != a.Config.WebhookSecret {
		a.errorResponse(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	var req processTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.errorResponse(w, http.StatusBadRequest, "malformed request body")
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		a.errorResponse(w, http.StatusBadRequest, "malformed task id")
		return
	}

	result, err := a.Pipeline.Run(r.Context(), taskID, "worker-endpoint")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.errorResponse(w, http.StatusNotFound, "task not found")
			return
		}
		// §4.5: a 5xx here means the pipeline could not even be entered;
		// the external queue's own retry policy takes over.
		a.Logger.Error("pipeline could not be entered", "task_id", taskID, "err", err)
		a.errorResponse(w, http.StatusInternalServerError, "pipeline unavailable")
		return
	}

	if !result.Terminal && result.Status == domain.TaskPending {
		a.Dispatcher.Reenqueue(r.Context(), taskID, result.RetryCount)
	}

	a.json(w, http.StatusOK, map[string]any{
		"task_id": taskID,
		"status":  result.Status,
	})
}
