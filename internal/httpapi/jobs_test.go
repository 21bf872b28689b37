package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/imageforge/internal/config"
	"github.com/yourorg/imageforge/internal/dispatcher"
	"github.com/yourorg/imageforge/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func TestToDescriptorProjectsJobFields(t *testing.T) {
	now := time.Now()
	job := domain.Job{
		ID: uuid.New(), Status: domain.JobRunning, TotalTasks: 4,
		CompletedTasks: 2, FailedTasks: 1, CreatedAt: now,
	}
	d := toDescriptor(job)
	require.Equal(t, job.ID, d.ID)
	require.Equal(t, "running", d.Status)
	require.Equal(t, 4, d.TotalTasks)
	require.Equal(t, 2, d.CompletedTasks)
	require.Equal(t, 1, d.FailedTasks)
	require.Nil(t, d.CompletedAt)
}

// SubmitJob's validation-error mapping is reachable with a nil store since
// Dispatcher.Submit rejects malformed input before any persistence call.
func TestSubmitJobMapsValidationErrorTo400(t *testing.T) {
	disp := dispatcher.New(nil, config.Config{}, discardLogger(), nil, nil)
	app := &App{Dispatcher: disp, Logger: discardLogger()}

	body, _ := json.Marshal(map[string]any{"prompts": []string{"   "}})
	req := httptest.NewRequest("POST", "/admin/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	app.SubmitJob(rec, req)
	require.Equal(t, 400, rec.Code)
}

func TestSubmitJobRejectsCountPerPromptBelowOne(t *testing.T) {
	disp := dispatcher.New(nil, config.Config{}, discardLogger(), nil, nil)
	app := &App{Dispatcher: disp, Logger: discardLogger()}

	body, _ := json.Marshal(map[string]any{"prompts": []string{"a prompt"}, "count_per_prompt": 0})
	req := httptest.NewRequest("POST", "/admin/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	app.SubmitJob(rec, req)
	require.Equal(t, 400, rec.Code)
}

func TestSubmitJobRejectsMalformedBody(t *testing.T) {
	app := &App{Logger: discardLogger()}
	req := httptest.NewRequest("POST", "/admin/jobs", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	app.SubmitJob(rec, req)
	require.Equal(t, 400, rec.Code)
}

func TestProcessTaskRejectsWrongWebhookSecret(t *testing.T) {
	app := &App{Config: config.Config{WebhookSecret: "correct"}, Logger: discardLogger()}
	req := httptest.NewRequest("POST", "/admin/worker/process-task", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("X-Webhook-Secret", "wrong")
	rec := httptest.NewRecorder()

	app.ProcessTask(rec, req)
	require.Equal(t, 401, rec.Code)
}

func TestProcessTaskRejectsMissingWebhookSecretHeader(t *testing.T) {
	app := &App{Config: config.Config{WebhookSecret: "correct"}, Logger: discardLogger()}
	req := httptest.NewRequest("POST", "/admin/worker/process-task", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	app.ProcessTask(rec, req)
	require.Equal(t, 401, rec.Code)
}

func TestProcessTaskRejectsMalformedTaskID(t *testing.T) {
	app := &App{Logger: discardLogger()}
	body, _ := json.Marshal(map[string]any{"task_id": "not-a-uuid"})
	req := httptest.NewRequest("POST", "/admin/worker/process-task", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	app.ProcessTask(rec, req)
	require.Equal(t, 400, rec.Code)
}
