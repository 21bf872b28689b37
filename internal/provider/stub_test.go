package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/imageforge/internal/domain"
)

func TestStubGenerationAdapterFailsThenSucceeds(t *testing.T) {
	adapter := &StubGenerationAdapter{FailTransientTimes: 2}
	ctx := context.Background()

	_, _, err := adapter.Generate(ctx, "a product photo", domain.StyleStudioWhite, 800, 600)
	require.Error(t, err)
	_, _, err = adapter.Generate(ctx, "a product photo", domain.StyleStudioWhite, 800, 600)
	require.Error(t, err)

	result, handle, err := adapter.Generate(ctx, "a product photo", domain.StyleStudioWhite, 800, 600)
	require.NoError(t, err)
	require.Empty(t, handle)
	require.NotEmpty(t, result.Bytes)
}

func TestStubVisionAdapterFailsAfterThreshold(t *testing.T) {
	adapter := &StubVisionAdapter{FailAfter: 1}
	ctx := context.Background()

	_, err := adapter.Tag(ctx, []byte("ignored"), "prompt")
	require.NoError(t, err)

	_, err = adapter.Tag(ctx, []byte("ignored"), "prompt")
	require.Error(t, err)
}

func TestStubVisionAdapterTagsSortedLexicographically(t *testing.T) {
	adapter := &StubVisionAdapter{Tags: []string{"zebra", "apple", "mango"}}
	result, err := adapter.Tag(context.Background(), nil, "prompt")
	require.NoError(t, err)
	require.Len(t, result.Tags, 3)
	require.Equal(t, "apple", result.Tags[0].Tag)
	require.Equal(t, "mango", result.Tags[1].Tag)
	require.Equal(t, "zebra", result.Tags[2].Tag)
}

func TestStubEmbeddingAdapterDefaultDimensions(t *testing.T) {
	adapter := &StubEmbeddingAdapter{}
	vec, err := adapter.Embed(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, vec, 1536)
}

func TestRegistryResolveUnknownNameErrors(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterGeneration("stub", &StubGenerationAdapter{})
	reg.RegisterVision("stub", &StubVisionAdapter{})
	reg.RegisterEmbedding("stub", &StubEmbeddingAdapter{})

	_, err := reg.Resolve("stub", "stub", "stub")
	require.NoError(t, err)

	_, err = reg.Resolve("nope", "stub", "stub")
	require.Error(t, err)
}
