package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/cemtrack/cemtrack/internal/app"
	"github.com/cemtrack/cemtrack/internal/balance"
	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/ledger"
	"github.com/cemtrack/cemtrack/internal/notify"
	"github.com/cemtrack/cemtrack/internal/platform/db"
	"github.com/cemtrack/cemtrack/internal/snapshot"
	"github.com/cemtrack/cemtrack/internal/unloading"
	"github.com/cemtrack/cemtrack/jobs"
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

	billingRepo := billing.NewRepository(pool)
	unloadingRepo := unloading.NewRepository(pool)
	balanceRepo := balance.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	snapshotRepo := snapshot.NewRepository(pool)

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
	ledgerService := ledger.NewService(ledgerRepo, billingRepo, balanceResolver, balanceRepo, logger)
	balanceService := balance.NewService(balanceRepo, balanceResolver, logger)
	notifyService := notify.NewService(billingRepo, unloadingRepo, balanceService, ledgerService, logger)

	builder := snapshot.NewBuilder(snapshotRepo, billingRepo, unloadingRepo, balanceRepo, logger)
	snapshotJob := snapshot.NewJob(builder, logger)
	messagesJob := jobs.NewBillingMessagesJob(notifyService, logger)

	snapshotTask, err := snapshot.NewRebuildTask(snapshot.RebuildPayload{})
	if err != nil {
		logger.Error("build snapshot task", slog.Any("error", err))
		os.Exit(1)
	}
	messagesTask, err := jobs.NewBillingMessagesTask(jobs.BillingMessagesPayload{})
	if err != nil {
		logger.Error("build messages task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: snapshot.TaskRebuild, Handler: snapshotJob.Handle},
			{Type: jobs.TaskBillingMessages, Handler: messagesJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SnapshotCron, Task: snapshotTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.BillingMessagesCron, Task: messagesTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
