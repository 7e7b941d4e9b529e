package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/kitarena/kitarena/internal/app"
	jobmetrics "github.com/kitarena/kitarena/internal/jobs"
	"github.com/kitarena/kitarena/internal/platform/db"
	"github.com/kitarena/kitarena/internal/shared"
	"github.com/kitarena/kitarena/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	idempotency := shared.NewIdempotencyStore(pool)

	socialHandler := jobs.NewSocialPostHandler(jobs.LogPoster{Logger: logger}, idempotency, metrics, logger)
	cleanupHandler := &jobs.IdempotencyCleanupHandler{
		Store:     idempotency,
		Retention: cfg.IdempotencyRetention,
		Metrics:   metrics,
		Logger:    logger,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSocialPost, Handler: socialHandler.Handle},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: cleanupHandler.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 3 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
