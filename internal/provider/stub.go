package provider

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sort"
	"sync/atomic"

	"github.com/yourorg/imageforge/internal/domain"
)

// tinyJPEG returns a minimal valid 1x1 JPEG. The spec's literal test
// scenarios describe the stub generation adapter as returning "a 1-byte
// image" — that phrase describes the reference implementation's mock, not a
// byte literally of length one (no real codec can decode that); here the
// stub returns the smallest image an actual decoder accepts so the rest of
// the pipeline (variant derivation) can run unmodified against it.
func tinyJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

// StubGenerationAdapter is a deterministic synchronous generation adapter
// for tests and local dev (§8 scenarios 1-3 rely on exactly this shape: a
// stub returning a fixed-size image, optionally failing the first N calls).
type StubGenerationAdapter struct {
	// Bytes is returned on every successful call. Defaults to the minimal
	// 1x1 JPEG from tinyJPEG if nil (§8 scenario 1's "1-byte image").
	Bytes []byte
	// FailTransientTimes makes the first N calls per adapter instance fail
	// with a provider_transient error before succeeding (§8 scenario 3).
	FailTransientTimes int32

	calls atomic.Int32
}

func (s *StubGenerationAdapter) IsAsync() bool { return false }

func (s *StubGenerationAdapter) Generate(ctx context.Context, prompt string, style domain.Style, width, height int) (GenerateResult, AsyncHandle, error) {
	n := s.calls.Add(1)
	if n <= s.FailTransientTimes {
		return GenerateResult{}, "", fmt.Errorf("stub generation: transient failure on attempt %d", n)
	}
	b := s.Bytes
	if b == nil {
		b = tinyJPEG()
	}
	return GenerateResult{Bytes: b, Cost: 0.01}, "", nil
}

func (s *StubGenerationAdapter) Poll(ctx context.Context, handle AsyncHandle) (PollResult, error) {
	return PollResult{Status: PollFailed, Kind: domain.FailureProviderTerminal, Message: "stub adapter is synchronous"}, nil
}

func (s *StubGenerationAdapter) ClassifyError(err error) domain.FailureKind {
	return domain.FailureProviderTransient
}

// StubVisionAdapter returns a fixed tag set and description. FailAfter,
// when positive, makes every call from the (FailAfter+1)th onward fail
// terminally — used to simulate §8 scenario 2 (tagger failing terminally on
// the second call).
type StubVisionAdapter struct {
	Tags        []string
	Description string
	Category    string
	Confidence  float64
	FailAfter   int32

	calls atomic.Int32
}

func (s *StubVisionAdapter) Tag(ctx context.Context, imageBytes []byte, prompt string) (VisionResult, error) {
	n := s.calls.Add(1)
	if s.FailAfter > 0 && n > s.FailAfter {
		return VisionResult{}, fmt.Errorf("stub vision: terminal failure on attempt %d", n)
	}

	tags := s.Tags
	if tags == nil {
		tags = []string{"x"}
	}
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)

	raw := make([]RawTag, len(sorted))
	confidence := s.Confidence
	if confidence == 0 {
		confidence = 0.9
	}
	for i, t := range sorted {
		raw[i] = RawTag{Tag: t, Confidence: confidence}
	}

	desc := s.Description
	if desc == "" {
		desc = "a stub product photo"
	}
	category := s.Category
	if category == "" {
		category = "general"
	}

	return VisionResult{
		Tags:        raw,
		Description: desc,
		Category:    category,
		Confidence:  confidence,
		Cost:        0.002,
	}, nil
}

func (s *StubVisionAdapter) ClassifyError(err error) domain.FailureKind {
	return domain.FailureProviderTerminal
}

// StubEmbeddingAdapter returns a fixed-dimension zero vector, per §8
// scenario 1 ("stub embedder returning 1536-dim zero vector").
type StubEmbeddingAdapter struct {
	Dimensions int
}

func (s *StubEmbeddingAdapter) Embed(ctx context.Context, input string) ([]float32, error) {
	dims := s.Dimensions
	if dims == 0 {
		dims = 1536
	}
	return make([]float32, dims), nil
}

func (s *StubEmbeddingAdapter) ClassifyError(err error) domain.FailureKind {
	return domain.FailureProviderTransient
}
