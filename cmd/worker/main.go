// cmd/worker runs the external-queue mode's asynq consumer (§4.1 enqueue
// mode 1, §5 "external queue enforces max concurrent dispatches and
// per-second dispatch rate"). It does not run the Task Pipeline directly —
// each dequeued message is forwarded over HTTP to the Worker Endpoint
// exposed by cmd/server, after passing the dispatch-rate limiter.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/imageforge/internal/config"
	"github.com/yourorg/imageforge/internal/dispatcher"
	"github.com/yourorg/imageforge/internal/ratelimit"
	"github.com/yourorg/imageforge/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config failed", "err", err)
		os.Exit(1)
	}
	if cfg.Mode != config.ModeExternal {
		logger.Error("cmd/worker only runs in external mode", "mode", cfg.Mode)
		os.Exit(1)
	}

	if err := worker.EnableParentDeathSignal(); err != nil {
		logger.Warn("failed to enable parent-death signal", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("parse redis url failed", "err", err)
		os.Exit(1)
	}
	rc := redis.NewClient(redisOpts)
	defer rc.Close()
	logger.Info("connecting to redis", "url", cfg.RedisURL)
	if err := rc.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("redis connected")

	limiter := ratelimit.NewLimiter(rc, cfg.QueueName, int64(cfg.QueueMaxConcurrentDispatch), int64(cfg.QueueMaxDispatchesPerSec))
	disp := dispatcher.New(nil, cfg, logger, nil, limiter)

	redisOpt := asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.QueueMaxConcurrentDispatch,
		Queues:      map[string]int{cfg.QueueName: 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(dispatcher.TaskQueueName, disp.HandleDispatch)

	logger.Info("asynq worker ready", "queue", cfg.QueueName, "worker_url", cfg.QueueWorkerURL)
	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Error("asynq server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping asynq server")
	srv.Shutdown()
	logger.Info("shutdown complete")
}
