package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tallerpro/tallerpro/internal/alerts"
	"github.com/tallerpro/tallerpro/internal/app"
	"github.com/tallerpro/tallerpro/internal/jobs"
	"github.com/tallerpro/tallerpro/internal/mail"
	"github.com/tallerpro/tallerpro/internal/platform/cache"
	"github.com/tallerpro/tallerpro/internal/platform/db"
	"github.com/tallerpro/tallerpro/internal/settings"
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
		logger.Warn("redis unavailable, settings cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := jobs.NewMetrics(nil)

	sender := mail.NewSender(mail.Config{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	})

	settingsService := settings.NewService(settings.NewRepository(pool), redisClient, cfg.SettingsCacheTTL)
	alertsService := alerts.NewService(alerts.NewRepository(pool), logger)

	poSentJob := jobs.NewPOSentJob(pool, sender, logger, metrics)
	shiftSweepJob := jobs.NewShiftSweepJob(alertsService, settingsService, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypePOSent, Handler: poSentJob.Handle},
			{Type: jobs.TaskTypeShiftSweep, Handler: shiftSweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: jobs.NewShiftSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
