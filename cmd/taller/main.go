package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tallerpro/tallerpro/internal/alerts"
	"github.com/tallerpro/tallerpro/internal/app"
	"github.com/tallerpro/tallerpro/internal/audit"
	"github.com/tallerpro/tallerpro/internal/cashbox"
	"github.com/tallerpro/tallerpro/internal/inventory"
	"github.com/tallerpro/tallerpro/internal/jobs"
	"github.com/tallerpro/tallerpro/internal/locations"
	"github.com/tallerpro/tallerpro/internal/observability"
	"github.com/tallerpro/tallerpro/internal/parts"
	"github.com/tallerpro/tallerpro/internal/payables"
	"github.com/tallerpro/tallerpro/internal/platform/cache"
	"github.com/tallerpro/tallerpro/internal/platform/db"
	"github.com/tallerpro/tallerpro/internal/purchasing"
	"github.com/tallerpro/tallerpro/internal/settings"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	auditService := audit.NewService(audit.NewRepository(pool), logger)

	settingsService := settings.NewService(settings.NewRepository(pool), redisClient, cfg.SettingsCacheTTL)

	locationsService := locations.NewService(locations.NewRepository(pool))

	alertsService := alerts.NewService(alerts.NewRepository(pool), logger)

	partsService := parts.NewService(parts.NewRepository(pool), locationsService, auditService)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), alertsService, auditService, logger)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	purchasingService := purchasing.NewService(
		purchasing.NewRepository(pool), settingsService, alertsService, jobsClient, auditService, logger)

	payablesService := payables.NewService(payables.NewRepository(pool), auditService)

	cashboxService := cashbox.NewService(
		cashbox.NewRepository(pool), settingsService, alertsService, auditService, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LocationsHandler:  locations.NewHandler(locationsService),
		PartsHandler:      parts.NewHandler(partsService),
		InventoryHandler:  inventory.NewHandler(inventoryService),
		AlertsHandler:     alerts.NewHandler(alertsService),
		PurchasingHandler: purchasing.NewHandler(purchasingService),
		PayablesHandler:   payables.NewHandler(payablesService),
		CashboxHandler:    cashbox.NewHandler(cashboxService),
		SettingsHandler:   settings.NewHandler(settingsService),
		AuditHandler:      audit.NewHandler(auditService),
		JobsHandler:       jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
