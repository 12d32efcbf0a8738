package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/obinnaeke/tradelane-backend/internal/calculations"
	"github.com/obinnaeke/tradelane-backend/internal/cart"
	"github.com/obinnaeke/tradelane-backend/internal/checkout"
	"github.com/obinnaeke/tradelane-backend/internal/cron"
	"github.com/obinnaeke/tradelane-backend/internal/inventory"
	"github.com/obinnaeke/tradelane-backend/internal/limits"
	"github.com/obinnaeke/tradelane-backend/internal/orders"
	"github.com/obinnaeke/tradelane-backend/internal/payments"
	"github.com/obinnaeke/tradelane-backend/internal/plans"
	"github.com/obinnaeke/tradelane-backend/internal/products"
	"github.com/obinnaeke/tradelane-backend/internal/subscriptions"
	"github.com/obinnaeke/tradelane-backend/internal/webhooks"
	"github.com/obinnaeke/tradelane-backend/pkg/config"
	"github.com/obinnaeke/tradelane-backend/pkg/db"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
	"github.com/obinnaeke/tradelane-backend/pkg/metrics"
	"github.com/obinnaeke/tradelane-backend/pkg/migrate"
	"github.com/obinnaeke/tradelane-backend/pkg/outbox"
	"github.com/obinnaeke/tradelane-backend/pkg/redis"
)

const lockKeyFormat = "tl:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewSweepMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildRegistry wires the retention and billing jobs. The webhook prune job
// runs through the full webhook service so dedup semantics stay in one place.
func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	gdb := dbClient.DB()
	outboxRepo := outbox.NewRepository(gdb)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	plansSvc, err := plans.NewService(plans.NewRepository(gdb))
	if err != nil {
		return nil, err
	}
	subscriptionsSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:   subscriptions.NewRepository(gdb),
		Plans:  plansSvc,
		Tx:     dbClient,
		Outbox: outboxSvc,
	})
	if err != nil {
		return nil, err
	}

	productsRepo := products.NewRepository(gdb)
	cartRepo := cart.NewRepository(gdb)
	ordersRepo := orders.NewRepository(gdb)
	calcRepo := calculations.NewRepository(gdb)
	limitsSvc, err := limits.NewService(limits.ServiceParams{
		Subscriptions: subscriptionsSvc,
		Products:      productsRepo,
		Orders:        ordersRepo,
		Calculations:  calcRepo,
	})
	if err != nil {
		return nil, err
	}
	inventorySvc, err := inventory.NewService(inventory.NewRepository(gdb), dbClient)
	if err != nil {
		return nil, err
	}
	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:       dbClient,
		Cart:     cartRepo,
		Orders:   ordersRepo,
		Products: productsRepo,
		Ledger:   inventorySvc,
		Limits:   limitsSvc,
		Outbox:   outboxSvc,
	})
	if err != nil {
		return nil, err
	}
	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:          payments.NewRepository(gdb),
		Checkout:      checkoutSvc,
		Subscriptions: subscriptionsSvc,
		Plans:         plansSvc,
		Tx:            dbClient,
		Outbox:        outboxSvc,
		Logger:        logg,
	})
	if err != nil {
		return nil, err
	}
	webhooksSvc, err := webhooks.NewService(webhooks.ServiceParams{
		Repo:     webhooks.NewRepository(gdb),
		Payments: paymentsSvc,
		Secret:   cfg.Processor.WebhookSecret,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	sweepJob, err := cron.NewSubscriptionSweepJob(cron.SubscriptionSweepJobParams{
		Logger:    logg,
		Sweeper:   subscriptionsSvc,
		BatchSize: cfg.Sweep.SubscriptionBatchSize,
	})
	if err != nil {
		return nil, err
	}
	pruneJob, err := cron.NewWebhookPruneJob(cron.WebhookPruneJobParams{
		Logger:    logg,
		Pruner:    webhooksSvc,
		Retention: cfg.Retention.WebhookEventDays,
		BatchSize: cfg.Retention.PruneBatchSize,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(sweepJob, pruneJob, retentionJob), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
