// Package pipeline implements the Task Pipeline (§4.2): claim, generate,
// derive variants, upload, tag, embed, commit. It is the one piece of
// domain logic both deployment modes share — the in-process worker pool and
// the Worker Endpoint HTTP handler both call Pipeline.Run and nothing else.
//
// Grounded on the teacher's per-job execution driver (internal/worker:
// execute.go, complete.go, claim.go): claim with a lease, run the unit of
// work under a cancelable context with a background lease-extender, then
// transition to a terminal or retry state fenced on the claim token.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/imageforge/internal/config"
	"github.com/yourorg/imageforge/internal/domain"
	"github.com/yourorg/imageforge/internal/imageproc"
	"github.com/yourorg/imageforge/internal/objectstore"
	"github.com/yourorg/imageforge/internal/provider"
	"github.com/yourorg/imageforge/internal/store"
)

// tagConfidenceThreshold filters raw vision tags before persistence. The
// spec names the existence of a threshold (§4.2 edge cases) without fixing
// its value; 0.5 is this implementation's choice, recorded as an open
// question resolution.
const tagConfidenceThreshold = 0.5

// sourceWidth/sourceHeight is the dimension requested from the generation
// adapter. The pipeline decodes the generated image exactly once (§4.2 step
// 3) and derives every preset from it, so generation targets the largest
// preset, full_res, rather than any one downstream size.
var sourceWidth, sourceHeight = domain.PresetDimensions[domain.PresetFullRes][0], domain.PresetDimensions[domain.PresetFullRes][1]

// maxPollAttempts bounds how many times Pipeline polls an asynchronous
// generation adapter before giving up, independent of the task's overall
// wall-clock budget (§4.2 step 2 "bounded attempts, bounded total wall time").
const maxPollAttempts = 120

const pollInterval = 2 * time.Second

// Pipeline runs one task at a time to completion or to a retry/terminal
// outcome. A single Pipeline is shared across all workers of a process; it
// holds no per-task mutable state.
type Pipeline struct {
	store     *store.Gateway
	objects   objectstore.Store
	providers provider.Set
	cfg       config.Config
	logger    *slog.Logger
}

func New(st *store.Gateway, objects objectstore.Store, providers provider.Set, cfg config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{store: st, objects: objects, providers: providers, cfg: cfg, logger: logger}
}

// Run executes §4.2's contract for one task id. It never panics or returns
// an error for ordinary pipeline failures — those are captured, classified,
// and reflected in the returned domain.PipelineResult; the error return is
// reserved for infrastructure failures severe enough that the pipeline
// could not even attempt the task (matching §4.5's "pipeline could not be
// entered" distinction for the Worker Endpoint's 5xx behavior).
func (p *Pipeline) Run(ctx context.Context, taskID uuid.UUID, workerID string) (domain.PipelineResult, error) {
	claimToken := uuid.New()
	leaseSeconds := p.cfg.TaskBudgetSeconds
	if leaseSeconds <= 0 {
		leaseSeconds = 600
	}

	task, claimStatus, err := p.store.ClaimTask(ctx, taskID, workerID, claimToken, leaseSeconds)
	if err != nil {
		return domain.PipelineResult{}, fmt.Errorf("claim task %s: %w", taskID, err)
	}

	switch claimStatus {
	case store.ClaimBusy:
		return domain.PipelineResult{Terminal: false, Status: domain.TaskRunning, Message: "task is being worked by another claim"}, nil
	case store.ClaimNotFound:
		return domain.PipelineResult{}, fmt.Errorf("task %s: %w", taskID, store.ErrNotFound)
	case store.ClaimTerminal:
		return terminalResultFromStored(task), nil
	}

	job, err := p.store.GetJob(ctx, task.JobID)
	if err != nil {
		return domain.PipelineResult{}, fmt.Errorf("load job %s: %w", task.JobID, err)
	}
	if job.Status == domain.JobCancelled {
		return p.failTerminal(ctx, task, claimToken, domain.FailureCancelled, "job was cancelled before this task started")
	}

	if err := p.store.MarkJobRunning(ctx, task.JobID); err != nil {
		p.logger.Warn("mark job running failed", "job_id", task.JobID, "err", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, p.cfg.TaskBudget())
	defer cancel()

	leaseStop := make(chan struct{})
	go extendLease(execCtx, p.store, task.ID, claimToken, leaseSeconds, leaseStop, p.logger)
	defer close(leaseStop)

	result := p.runSteps(execCtx, task, claimToken)

	if execCtx.Err() != nil && result.Kind != domain.FailureCancelled {
		return p.failOrRetry(ctx, task, claimToken, domain.FailureTimeout, "task exceeded its wall-clock budget")
	}
	return result, nil
}

// runSteps drives generate -> variants -> upload -> tag -> embed -> commit.
// Any step's failure short-circuits into the shared retry/terminal branch;
// ctx is execCtx, already bounded by the task budget.
func (p *Pipeline) runSteps(ctx context.Context, task domain.Task, claimToken uuid.UUID) domain.PipelineResult {
	genBytes, cost, err := p.generate(ctx, task)
	if err != nil {
		kind := p.providers.Generation.ClassifyError(err)
		return p.branch(ctx, task, claimToken, kind, err.Error())
	}
	if len(genBytes) == 0 {
		return p.branch(ctx, task, claimToken, domain.FailureProviderTerminal, "provider returned empty image bytes")
	}

	variants, err := imageproc.DeriveAll(genBytes)
	if err != nil {
		return p.branch(ctx, task, claimToken, domain.FailureProviderTerminal, fmt.Sprintf("derive variants: %v", err))
	}

	// The image id is derived from the task id, so every attempt of the same
	// task writes the same image row and the same object-store paths.
	imageID := uuid.NewSHA1(uuid.NameSpaceOID, task.ID[:])
	if err := p.store.CreateImage(ctx, imageID, task.Prompt, task.Style); err != nil {
		return p.branch(ctx, task, claimToken, domain.FailureInfrastructure, fmt.Sprintf("create image: %v", err))
	}
	if cost > 0 {
		_ = p.store.SetGenerationCost(ctx, imageID, cost)
	}
	_ = p.store.SetImageStatus(ctx, imageID, domain.ImageProcessing)

	for _, v := range variants {
		path, err := p.objects.PutVariant(ctx, imageID, v.Preset, v.Bytes)
		if err != nil {
			return p.branchPartial(ctx, task, claimToken, imageID, domain.FailureInfrastructure, fmt.Sprintf("upload variant %s: %v", v.Preset, err))
		}
		dv := domain.Variant{ImageID: imageID, Preset: v.Preset, Path: path, Size: len(v.Bytes), Width: v.Width, Height: v.Height}
		if err := p.store.UpsertVariant(ctx, dv); err != nil {
			return p.branchPartial(ctx, task, claimToken, imageID, domain.FailureInfrastructure, fmt.Sprintf("persist variant %s: %v", v.Preset, err))
		}
	}

	_ = p.store.SetImageStatus(ctx, imageID, domain.ImageTagging)

	visionResult, err := p.providers.Vision.Tag(ctx, genBytes, task.Prompt)
	if err != nil {
		kind := p.providers.Vision.ClassifyError(err)
		return p.branchPartial(ctx, task, claimToken, imageID, kind, err.Error())
	}
	if visionResult.Cost > 0 {
		_ = p.store.SetTaggingCost(ctx, imageID, visionResult.Cost)
	}

	tags := make([]domain.Tag, 0, len(visionResult.Tags))
	for _, rt := range visionResult.Tags {
		if rt.Confidence < tagConfidenceThreshold {
			continue
		}
		tags = append(tags, domain.Tag{ImageID: imageID, Tag: rt.Tag, Confidence: rt.Confidence, Source: domain.TagSourceAuto})
	}
	if err := p.store.ReplaceTags(ctx, imageID, tags); err != nil {
		return p.branchPartial(ctx, task, claimToken, imageID, domain.FailureInfrastructure, fmt.Sprintf("persist tags: %v", err))
	}
	if err := p.store.SetDescription(ctx, domain.Description{ImageID: imageID, Description: visionResult.Description, Analysis: visionResult.Description, Model: "vision-adapter"}); err != nil {
		return p.branchPartial(ctx, task, claimToken, imageID, domain.FailureInfrastructure, fmt.Sprintf("persist description: %v", err))
	}
	if err := p.store.ReplaceColors(ctx, imageID, visionResult.Colors); err != nil {
		return p.branchPartial(ctx, task, claimToken, imageID, domain.FailureInfrastructure, fmt.Sprintf("persist colors: %v", err))
	}

	input := embeddingInput(task.Prompt, visionResult.Description, visionResult.Category, tags)
	vector, err := p.providers.Embedding.Embed(ctx, input)
	if err != nil {
		kind := p.providers.Embedding.ClassifyError(err)
		return p.branchPartial(ctx, task, claimToken, imageID, kind, err.Error())
	}
	if err := p.store.SetEmbedding(ctx, domain.Embedding{ImageID: imageID, Vector: vector, Model: "embedding-adapter"}); err != nil {
		return p.branchPartial(ctx, task, claimToken, imageID, domain.FailureInfrastructure, fmt.Sprintf("persist embedding: %v", err))
	}

	if err := p.store.MarkImageReady(ctx, imageID); err != nil {
		return p.branchPartial(ctx, task, claimToken, imageID, domain.FailureInfrastructure, fmt.Sprintf("mark image ready: %v", err))
	}
	ok, err := p.store.CompleteTask(ctx, task.ID, claimToken, imageID)
	if err != nil {
		return p.branchPartial(ctx, task, claimToken, imageID, domain.FailureInfrastructure, fmt.Sprintf("complete task: %v", err))
	}
	if !ok {
		// Claim was stolen between the last write and here; the stealing
		// worker owns the outcome now, so this invocation reports a no-op.
		return domain.PipelineResult{Terminal: true, Status: domain.TaskCompleted, Message: "task already completed by a concurrent claim"}
	}
	if _, err := p.store.RecordOutcome(ctx, task.JobID, true); err != nil {
		p.logger.Error("record outcome failed", "task_id", task.ID, "err", err)
	}

	return domain.PipelineResult{Terminal: true, Status: domain.TaskCompleted}
}

// generate calls the configured generation adapter, transparently polling
// when it is asynchronous.
func (p *Pipeline) generate(ctx context.Context, task domain.Task) ([]byte, float64, error) {
	result, handle, err := p.providers.Generation.Generate(ctx, task.Prompt, task.Style, sourceWidth, sourceHeight)
	if err != nil {
		return nil, 0, err
	}
	if !p.providers.Generation.IsAsync() || handle == "" {
		return result.Bytes, result.Cost, nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-ticker.C:
		}

		poll, err := p.providers.Generation.Poll(ctx, handle)
		if err != nil {
			return nil, 0, err
		}
		switch poll.Status {
		case provider.PollCompleted:
			return poll.Result.Bytes, poll.Result.Cost, nil
		case provider.PollFailed:
			return nil, 0, fmt.Errorf("generation failed: %s", poll.Message)
		case provider.PollPending:
			continue
		}
	}
	return nil, 0, fmt.Errorf("generation did not complete within %d poll attempts", maxPollAttempts)
}

// branch applies §4.2 step 7's retry/terminal split when no image row has
// been created yet.
func (p *Pipeline) branch(ctx context.Context, task domain.Task, claimToken uuid.UUID, kind domain.FailureKind, message string) domain.PipelineResult {
	return p.resolve(ctx, task, claimToken, nil, kind, message)
}

// branchPartial applies the same split once an image row exists, marking it
// rejected on both the retry and the terminal outcome (§4.2 step 7 "mark the
// partial image for cleanup"); a later attempt of the same task moves that
// image back through processing.
func (p *Pipeline) branchPartial(ctx context.Context, task domain.Task, claimToken uuid.UUID, imageID uuid.UUID, kind domain.FailureKind, message string) domain.PipelineResult {
	return p.resolve(ctx, task, claimToken, &imageID, kind, message)
}

func (p *Pipeline) resolve(ctx context.Context, task domain.Task, claimToken uuid.UUID, imageID *uuid.UUID, kind domain.FailureKind, message string) domain.PipelineResult {
	if kind.Retryable() && task.RetryCount < task.MaxRetries {
		ok, err := p.store.ResetForRetry(ctx, task.ID, claimToken, kind, message)
		if err != nil {
			p.logger.Error("reset for retry failed", "task_id", task.ID, "err", err)
		}
		if imageID != nil {
			_ = p.store.SetImageStatus(ctx, *imageID, domain.ImageRejected)
		}
		if !ok {
			return domain.PipelineResult{Terminal: false, Status: domain.TaskRunning, Message: "claim stolen before retry could be recorded"}
		}
		return domain.PipelineResult{Terminal: false, Status: domain.TaskPending, Kind: kind, Message: message, RetryCount: task.RetryCount + 1}
	}

	ok, err := p.store.FailTask(ctx, task.ID, claimToken, kind, message)
	if err != nil {
		p.logger.Error("fail task failed", "task_id", task.ID, "err", err)
	}
	if imageID != nil {
		_ = p.store.SetImageStatus(ctx, *imageID, domain.ImageRejected)
	}
	if !ok {
		return domain.PipelineResult{Terminal: true, Status: domain.TaskFailed, Kind: kind, Message: "claim stolen before failure could be recorded"}
	}
	if _, err := p.store.RecordOutcome(ctx, task.JobID, false); err != nil {
		p.logger.Error("record outcome failed", "task_id", task.ID, "err", err)
	}
	return domain.PipelineResult{Terminal: true, Status: domain.TaskFailed, Kind: kind, Message: message}
}

// failTerminal fails a task immediately with a non-retryable kind, used for
// the cancelled-job edge case (§4.3 "mark it failed with kind=cancelled, no
// retries") where the usual retry-eligibility check must be skipped outright.
func (p *Pipeline) failTerminal(ctx context.Context, task domain.Task, claimToken uuid.UUID, kind domain.FailureKind, message string) (domain.PipelineResult, error) {
	ok, err := p.store.FailTask(ctx, task.ID, claimToken, kind, message)
	if err != nil {
		return domain.PipelineResult{}, fmt.Errorf("fail cancelled task: %w", err)
	}
	if ok {
		if _, err := p.store.RecordOutcome(ctx, task.JobID, false); err != nil {
			p.logger.Error("record outcome failed", "task_id", task.ID, "err", err)
		}
	}
	return domain.PipelineResult{Terminal: true, Status: domain.TaskFailed, Kind: kind, Message: message}, nil
}

// failOrRetry is used for the task-budget-exceeded path: timeout is
// classified non-retryable per §5, so this always terminates the task.
func (p *Pipeline) failOrRetry(ctx context.Context, task domain.Task, claimToken uuid.UUID, kind domain.FailureKind, message string) (domain.PipelineResult, error) {
	return p.failTerminal(ctx, task, claimToken, kind, message)
}

// embeddingInput builds the deterministic embedding input of §4.2 step 6:
// prompt, description, category, then lexicographically sorted tags.
func embeddingInput(prompt, description, category string, tags []domain.Tag) string {
	sorted := store.SortedTagStrings(tags)
	parts := []string{prompt, description, category}
	parts = append(parts, sorted...)
	return strings.Join(parts, " ")
}

// terminalResultFromStored reconstructs the no-op result §4.2 step 1
// requires when Run is invoked again against an already-terminal task.
func terminalResultFromStored(task domain.Task) domain.PipelineResult {
	kind := domain.FailureKind("")
	if task.FailureKind != nil {
		kind = *task.FailureKind
	}
	message := ""
	if task.ErrorMessage != nil {
		message = *task.ErrorMessage
	}
	return domain.PipelineResult{Terminal: true, Status: task.Status, Kind: kind, Message: message}
}
