// cmd/server runs the HTTP surface (§6): job submission, status, detail,
// cancellation, the Worker Endpoint, and health. In in_process mode it also
// owns the fixed-size worker pool, since there is nothing else to run the
// Task Pipeline in that mode.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/imageforge/internal/config"
	"github.com/yourorg/imageforge/internal/dispatcher"
	"github.com/yourorg/imageforge/internal/httpapi"
	"github.com/yourorg/imageforge/internal/migrate"
	"github.com/yourorg/imageforge/internal/objectstore"
	"github.com/yourorg/imageforge/internal/pipeline"
	"github.com/yourorg/imageforge/internal/provider"
	"github.com/yourorg/imageforge/internal/ratelimit"
	"github.com/yourorg/imageforge/internal/reconciler"
	"github.com/yourorg/imageforge/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger.Info("connecting to database", "url", cfg.DatabaseURL)
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect to database failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	if err := migrate.Run(ctx, pool); err != nil {
		logger.Error("run migrations failed", "err", err)
		os.Exit(1)
	}

	gateway := store.New(pool)

	objStore, err := objectstore.New(ctx, cfg.ObjectStoreEndpoint, cfg.ObjectStoreAccessKey,
		cfg.ObjectStoreSecretKey, cfg.ObjectStoreBucket, cfg.ObjectStoreUseSSL)
	if err != nil {
		logger.Error("connect to object store failed", "err", err)
		os.Exit(1)
	}

	providers := buildProviders(cfg)

	var asynqClient *asynq.Client
	var limiter *ratelimit.Limiter
	if cfg.Mode == config.ModeExternal {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("parse redis url failed", "err", err)
			os.Exit(1)
		}
		rc := redis.NewClient(redisOpts)
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			logger.Error("redis ping failed", "err", err)
			os.Exit(1)
		}
		limiter = ratelimit.NewLimiter(rc, cfg.QueueName, int64(cfg.QueueMaxConcurrentDispatch), int64(cfg.QueueMaxDispatchesPerSec))
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
		defer asynqClient.Close()
	}

	disp := dispatcher.New(gateway, cfg, logger, asynqClient, limiter)
	pl := pipeline.New(gateway, objStore, providers, cfg, logger)

	go reconciler.Run(ctx, pool, gateway, disp, logger)

	var wg *sync.WaitGroup
	if cfg.Mode == config.ModeInProcess {
		logger.Info("starting in-process worker pool", "concurrency", cfg.WorkerConcurrency)
		wg = disp.StartWorkers(ctx, pl, cfg.WorkerConcurrency, "inprocess")
	}

	app := &httpapi.App{Store: gateway, Dispatcher: disp, Pipeline: pl, Config: cfg, Logger: logger}
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: httpapi.NewRouter(app)}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	if cfg.Mode == config.ModeInProcess {
		disp.Shutdown()
		wg.Wait()
	}

	logger.Info("shutdown complete")
}

func buildProviders(cfg config.Config) provider.Set {
	registry := provider.NewRegistry()
	registry.RegisterGeneration("stub", &provider.StubGenerationAdapter{})
	registry.RegisterVision("stub", &provider.StubVisionAdapter{})
	registry.RegisterEmbedding("stub", &provider.StubEmbeddingAdapter{})

	set, err := registry.Resolve(cfg.ProviderGeneration, cfg.ProviderVision, cfg.ProviderEmbedding)
	if err == nil {
		return set
	}

	// If any configured name is not one of the built-in stubs, all three
	// adapters are built as HTTP adapters, each using its configured name as
	// the provider base URL (§4.6's adapter contract); a mix of stub and HTTP
	// providers is not supported.
	return provider.Set{
		Generation: provider.NewHTTPGenerationAdapter(cfg.ProviderGeneration, os.Getenv("PROVIDER_GENERATION_API_KEY")),
		Vision:     provider.NewHTTPVisionAdapter(cfg.ProviderVision, os.Getenv("PROVIDER_VISION_API_KEY")),
		Embedding:  provider.NewHTTPEmbeddingAdapter(cfg.ProviderEmbedding, os.Getenv("PROVIDER_EMBEDDING_API_KEY")),
	}
}
