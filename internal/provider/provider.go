// Package provider defines the uniform adapter interface over the
// generation, vision-tagging, and embedding providers (§4.6), plus a
// registry mapping configured names to concrete implementations — the
// small-interface-plus-registry pattern the teacher uses for job handlers
// (internal/registry.Registry), generalized from one method signature to
// three.
package provider

import (
	"context"
	"fmt"

	"github.com/yourorg/imageforge/internal/domain"
)

// AsyncHandle identifies an in-flight asynchronous generation job at the
// provider. Opaque to the pipeline.
type AsyncHandle string

// GenerateResult is what a synchronous Generate call returns directly, or
// what Poll returns once an asynchronous job completes.
type GenerateResult struct {
	Bytes []byte
	Cost  float64
}

// PollStatus is the outcome of one Poll call against an async provider job.
type PollStatus string

const (
	PollPending   PollStatus = "pending"
	PollCompleted PollStatus = "completed"
	PollFailed    PollStatus = "failed"
)

// PollResult is returned by GenerationAdapter.Poll.
type PollResult struct {
	Status   PollStatus
	Progress float64
	Result   GenerateResult
	Kind     domain.FailureKind
	Message  string
}

// GenerationAdapter produces raw image bytes for a prompt+style, either
// synchronously or via a poll-until-terminal async handle (§4.2 step 2,
// §4.6, §9 "Asynchronous providers").
type GenerationAdapter interface {
	IsAsync() bool
	Generate(ctx context.Context, prompt string, style domain.Style, width, height int) (GenerateResult, AsyncHandle, error)
	Poll(ctx context.Context, handle AsyncHandle) (PollResult, error)
	ClassifyError(err error) domain.FailureKind
}

// RawTag is one raw (tag, confidence) pair returned by a vision adapter before
// any confidence-threshold filtering or persistence shaping.
type RawTag struct {
	Tag        string
	Confidence float64
}

// VisionResult is what a vision adapter returns for one image (§4.2 step 5).
type VisionResult struct {
	Tags        []RawTag
	Description string
	Category    string
	Confidence  float64
	Colors      []domain.Color
	Cost        float64
}

// VisionAdapter classifies and describes a generated image.
type VisionAdapter interface {
	Tag(ctx context.Context, imageBytes []byte, prompt string) (VisionResult, error)
	ClassifyError(err error) domain.FailureKind
}

// EmbeddingAdapter turns the deterministic embedding input (§4.2 step 6)
// into a fixed-dimension vector.
type EmbeddingAdapter interface {
	Embed(ctx context.Context, input string) ([]float32, error)
	ClassifyError(err error) domain.FailureKind
}

// Set bundles the three adapters the pipeline needs for one task.
type Set struct {
	Generation GenerationAdapter
	Vision     VisionAdapter
	Embedding  EmbeddingAdapter
}

// Registry maps configured provider names to constructed adapters, the way
// internal/registry.Registry maps handler names to Handler funcs.
type Registry struct {
	generation map[string]GenerationAdapter
	vision     map[string]VisionAdapter
	embedding  map[string]EmbeddingAdapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		generation: make(map[string]GenerationAdapter),
		vision:     make(map[string]VisionAdapter),
		embedding:  make(map[string]EmbeddingAdapter),
	}
}

func (r *Registry) RegisterGeneration(name string, a GenerationAdapter) { r.generation[name] = a }
func (r *Registry) RegisterVision(name string, a VisionAdapter)         { r.vision[name] = a }
func (r *Registry) RegisterEmbedding(name string, a EmbeddingAdapter)   { r.embedding[name] = a }

// Resolve looks up the configured generation/vision/embedding adapters by
// name and returns them bundled as a Set.
func (r *Registry) Resolve(generationName, visionName, embeddingName string) (Set, error) {
	g, ok := r.generation[generationName]
	if !ok {
		return Set{}, fmt.Errorf("no generation adapter registered for %q", generationName)
	}
	v, ok := r.vision[visionName]
	if !ok {
		return Set{}, fmt.Errorf("no vision adapter registered for %q", visionName)
	}
	e, ok := r.embedding[embeddingName]
	if !ok {
		return Set{}, fmt.Errorf("no embedding adapter registered for %q", embeddingName)
	}
	return Set{Generation: g, Vision: v, Embedding: e}, nil
}
