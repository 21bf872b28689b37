package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFailureKindRetryable(t *testing.T) {
	require.True(t, FailureProviderTransient.Retryable())
	require.True(t, FailureInfrastructure.Retryable())
	require.False(t, FailureValidation.Retryable())
	require.False(t, FailureProviderTerminal.Retryable())
	require.False(t, FailureCancelled.Retryable())
	require.False(t, FailureTimeout.Retryable())
}

func TestValidStyle(t *testing.T) {
	require.True(t, ValidStyle(StyleProductPhotography))
	require.True(t, ValidStyle(StyleOutdoor))
	require.False(t, ValidStyle(Style("made_up")))
	require.False(t, ValidStyle(Style("")))
}

func TestTaskLeaseFresh(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	require.True(t, Task{LockExpiresAt: &future}.LeaseFresh(now))
	require.False(t, Task{LockExpiresAt: &past}.LeaseFresh(now))
	require.False(t, Task{LockExpiresAt: nil}.LeaseFresh(now))
}
