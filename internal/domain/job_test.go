package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobProgressPercentage(t *testing.T) {
	cases := []struct {
		name    string
		job     Job
		want    float64
	}{
		{"zero total", Job{TotalTasks: 0, CompletedTasks: 0, FailedTasks: 0}, 0},
		{"all completed", Job{TotalTasks: 2, CompletedTasks: 2, FailedTasks: 0}, 100.0},
		{"partial", Job{TotalTasks: 3, CompletedTasks: 1, FailedTasks: 1}, 66.7},
		{"none yet", Job{TotalTasks: 7, CompletedTasks: 0, FailedTasks: 0}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.InDelta(t, c.want, c.job.ProgressPercentage(), 0.05)
		})
	}
}

func TestJobIsTerminal(t *testing.T) {
	require.False(t, Job{Status: JobPending}.IsTerminal())
	require.False(t, Job{Status: JobRunning}.IsTerminal())
	require.True(t, Job{Status: JobCompleted}.IsTerminal())
	require.True(t, Job{Status: JobFailed}.IsTerminal())
	require.True(t, Job{Status: JobCancelled}.IsTerminal())
}
