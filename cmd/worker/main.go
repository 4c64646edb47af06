package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/procurehub/procurehub/internal/app"
	jobmetrics "github.com/procurehub/procurehub/internal/jobs"
	"github.com/procurehub/procurehub/internal/platform/cache"
	"github.com/procurehub/procurehub/internal/platform/db"
	"github.com/procurehub/procurehub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	svc := app.NewServices(cfg, logger, pool, redisClient, nil)
	metrics := jobmetrics.NewMetrics(nil)

	notifyJob := jobs.NewRFQNotifyJob(svc.Procurement, logger, metrics)
	reorderJob := jobs.NewReorderScanJob(svc.Procurement, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRFQNotify, Handler: notifyJob.Handle},
			{Type: jobs.TaskReorderScan, Handler: reorderJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReorderScanCron, Task: jobs.NewReorderScanTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.Int("concurrency", cfg.WorkerConcurrency), slog.String("reorder_cron", cfg.ReorderScanCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
