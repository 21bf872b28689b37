package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourorg/imageforge/internal/domain"
)

func TestEmbeddingInputOrdersTagsLexicographically(t *testing.T) {
	tags := []domain.Tag{
		{Tag: "zebra"},
		{Tag: "apple"},
		{Tag: "mango"},
	}
	input := embeddingInput("a product photo", "a description", "furniture", tags)
	require.Equal(t, "a product photo a description furniture apple mango zebra", input)
}

func TestEmbeddingInputDeterministicRegardlessOfInputOrder(t *testing.T) {
	a := embeddingInput("p", "d", "c", []domain.Tag{{Tag: "b"}, {Tag: "a"}})
	b := embeddingInput("p", "d", "c", []domain.Tag{{Tag: "a"}, {Tag: "b"}})
	require.Equal(t, a, b)
}

func TestTerminalResultFromStoredPreservesFailureDetail(t *testing.T) {
	kind := domain.FailureProviderTerminal
	msg := "provider rejected the prompt"
	task := domain.Task{Status: domain.TaskFailed, FailureKind: &kind, ErrorMessage: &msg}

	result := terminalResultFromStored(task)
	require.True(t, result.Terminal)
	require.Equal(t, domain.TaskFailed, result.Status)
	require.Equal(t, kind, result.Kind)
	require.Equal(t, msg, result.Message)
}

func TestTerminalResultFromStoredCompletedTaskHasNoFailureDetail(t *testing.T) {
	task := domain.Task{Status: domain.TaskCompleted}
	result := terminalResultFromStored(task)
	require.True(t, result.Terminal)
	require.Equal(t, domain.TaskCompleted, result.Status)
	require.Empty(t, result.Kind)
	require.Empty(t, result.Message)
}
