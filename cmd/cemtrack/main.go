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

	"github.com/cemtrack/cemtrack/internal/admin"
	"github.com/cemtrack/cemtrack/internal/app"
	"github.com/cemtrack/cemtrack/internal/balance"
	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/ledger"
	"github.com/cemtrack/cemtrack/internal/notify"
	"github.com/cemtrack/cemtrack/internal/platform/cache"
	"github.com/cemtrack/cemtrack/internal/platform/db"
	"github.com/cemtrack/cemtrack/internal/reconcile"
	"github.com/cemtrack/cemtrack/internal/report"
	"github.com/cemtrack/cemtrack/internal/snapshot"
	"github.com/cemtrack/cemtrack/internal/unloading"
	"github.com/cemtrack/cemtrack/jobs"
)

func main() {
	if app.InTestMode() {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	adminKey := app.AdminKey(cfg, logger)

	billingRepo := billing.NewRepository(dbpool)
	unloadingRepo := unloading.NewRepository(dbpool)
	balanceRepo := balance.NewRepository(dbpool)
	ledgerRepo := ledger.NewRepository(dbpool)
	snapshotRepo := snapshot.NewRepository(dbpool)

	balanceResolver := balance.NewResolver(balance.ResolverConfig{
		Store:            balanceRepo,
		BilledVehicle:    billingRepo,
		DeliveredVehicle: unloadingRepo,
		BilledDealer:     billingRepo,
		DeliveredDealer:  unloadingRepo,
		Sales:            billingRepo,
		Collections:      ledgerRepo,
		BillingPresence:  billingRepo,
		DeliveryPresence: unloadingRepo,
		Logger:           logger,
	})
	balanceService := balance.NewService(balanceRepo, balanceResolver, logger)

	billingService := billing.NewService(billingRepo)
	deliveryResolver := unloading.NewResolver(billingRepo, logger)
	unloadingService := unloading.NewService(unloadingRepo, billingRepo, balanceRepo, deliveryResolver, logger)

	ledgerService := ledger.NewService(ledgerRepo, billingRepo, balanceResolver, balanceRepo, logger)

	reconcileService := reconcile.NewService(billingRepo, unloadingRepo, balanceService, logger)

	reportCache := report.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := report.NewService(billingRepo, unloadingRepo, balanceService, reconcileService, reportCache, logger)

	// New events reshape every derived report, so writes bump the cache
	// version instead of waiting out the TTL.
	billingService.SetOnChange(reportService.InvalidateCache)
	unloadingService.SetOnChange(reportService.InvalidateCache)
	ledgerService.SetOnChange(reportService.InvalidateCache)

	notifyService := notify.NewService(billingRepo, unloadingRepo, balanceService, ledgerService, logger)

	adminRepo := admin.NewRepository(dbpool)
	adminService := admin.NewService(adminRepo, logger)
	adminService.SetOnChange(reportService.InvalidateCache)

	billingHandler := billing.NewHandler(logger, billingService)
	unloadingHandler := unloading.NewHandler(logger, unloadingService, adminKey)
	balanceHandler := balance.NewHandler(logger, balanceService, adminKey)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, adminKey)
	reconcileHandler := reconcile.NewHandler(logger, reconcileService)
	reportHandler := report.NewHandler(logger, reportService)
	snapshotHandler := snapshot.NewHandler(logger, snapshotRepo, reconcileService, jobClient, adminKey)
	notifyHandler := notify.NewHandler(logger, notifyService)
	adminHandler := admin.NewHandler(logger, adminService, adminKey)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		BillingHandler:   billingHandler,
		UnloadingHandler: unloadingHandler,
		BalanceHandler:   balanceHandler,
		LedgerHandler:    ledgerHandler,
		ReconcileHandler: reconcileHandler,
		ReportHandler:    reportHandler,
		SnapshotHandler:  snapshotHandler,
		NotifyHandler:    notifyHandler,
		AdminHandler:     adminHandler,
		JobHandler:       jobHandler,
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
