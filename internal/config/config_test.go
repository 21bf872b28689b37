package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MODE", "WORKER_CONCURRENCY", "MAX_RETRIES", "TASK_BUDGET_SECONDS",
		"DATABASE_URL", "REDIS_URL", "HTTP_ADDR", "WEBHOOK_SECRET", "LOG_LEVEL",
		"PROVIDER_GENERATION", "PROVIDER_VISION", "PROVIDER_EMBEDDING",
		"QUEUE_NAME", "QUEUE_WORKER_URL", "QUEUE_MAX_CONCURRENT_DISPATCHES",
		"QUEUE_MAX_DISPATCHES_PER_SECOND", "OBJECT_STORE_ENDPOINT",
		"OBJECT_STORE_BUCKET", "OBJECT_STORE_ACCESS_KEY", "OBJECT_STORE_SECRET_KEY",
		"OBJECT_STORE_USE_SSL", "RETRY_BACKOFF_BASE_SECONDS", "RETRY_BACKOFF_CAP_SECONDS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBHOOK_SECRET", "devsecret")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ModeInProcess, cfg.Mode)
	require.Equal(t, 5, cfg.WorkerConcurrency)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, 600*time.Second, cfg.TaskBudget())
	require.Equal(t, "stub", cfg.ProviderGeneration)
	require.Equal(t, 1, cfg.RetryBackoffBaseSeconds)
	require.Equal(t, 60, cfg.RetryBackoffCapSeconds)
}

func TestLoadRejectsMissingWebhookSecret(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
}

func TestRetryBackoffGrowsExponentiallyThenCaps(t *testing.T) {
	cfg := Config{RetryBackoffBaseSeconds: 1, RetryBackoffCapSeconds: 10}
	require.Equal(t, 1*time.Second, cfg.RetryBackoff(0))
	require.Equal(t, 2*time.Second, cfg.RetryBackoff(1))
	require.Equal(t, 4*time.Second, cfg.RetryBackoff(2))
	require.Equal(t, 8*time.Second, cfg.RetryBackoff(3))
	require.Equal(t, 10*time.Second, cfg.RetryBackoff(4))
	require.Equal(t, 10*time.Second, cfg.RetryBackoff(10))
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBHOOK_SECRET", "devsecret")
	t.Setenv("MODE", "sideways")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsZeroWorkerConcurrency(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBHOOK_SECRET", "devsecret")
	t.Setenv("WORKER_CONCURRENCY", "0")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNegativeMaxRetries(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBHOOK_SECRET", "devsecret")
	t.Setenv("MAX_RETRIES", "-1")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadHonorsExternalMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEBHOOK_SECRET", "devsecret")
	t.Setenv("MODE", "external")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ModeExternal, cfg.Mode)
}
