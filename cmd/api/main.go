package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/obinnaeke/tradelane-backend/api/routes"
	"github.com/obinnaeke/tradelane-backend/internal/calculations"
	"github.com/obinnaeke/tradelane-backend/internal/cart"
	"github.com/obinnaeke/tradelane-backend/internal/checkout"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	svcs, err := buildServices(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)
	metricsServer := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(context.Background(), "metrics server stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, httpMetrics, svcs),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (routes.Services, error) {
	gdb := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	productsRepo := products.NewRepository(gdb)
	cartRepo := cart.NewRepository(gdb)
	ordersRepo := orders.NewRepository(gdb)
	calcRepo := calculations.NewRepository(gdb)

	cartSvc, err := cart.NewService(cartRepo, productsRepo)
	if err != nil {
		return routes.Services{}, err
	}
	ordersSvc, err := orders.NewService(ordersRepo)
	if err != nil {
		return routes.Services{}, err
	}
	plansSvc, err := plans.NewService(plans.NewRepository(gdb))
	if err != nil {
		return routes.Services{}, err
	}
	subscriptionsSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:   subscriptions.NewRepository(gdb),
		Plans:  plansSvc,
		Tx:     dbClient,
		Outbox: outboxSvc,
	})
	if err != nil {
		return routes.Services{}, err
	}
	limitsSvc, err := limits.NewService(limits.ServiceParams{
		Subscriptions: subscriptionsSvc,
		Products:      productsRepo,
		Orders:        ordersRepo,
		Calculations:  calcRepo,
	})
	if err != nil {
		return routes.Services{}, err
	}
	inventorySvc, err := inventory.NewService(inventory.NewRepository(gdb), dbClient)
	if err != nil {
		return routes.Services{}, err
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
		return routes.Services{}, err
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
		return routes.Services{}, err
	}
	webhooksSvc, err := webhooks.NewService(webhooks.ServiceParams{
		Repo:     webhooks.NewRepository(gdb),
		Payments: paymentsSvc,
		Secret:   cfg.Processor.WebhookSecret,
		Logger:   logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	calculationsSvc, err := calculations.NewService(calcRepo, limitsSvc)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Cart:          cartSvc,
		Checkout:      checkoutSvc,
		Payments:      paymentsSvc,
		Webhooks:      webhooksSvc,
		Orders:        ordersSvc,
		Inventory:     inventorySvc,
		Plans:         plansSvc,
		Subscriptions: subscriptionsSvc,
		Limits:        limitsSvc,
		Calculations:  calculationsSvc,
	}, nil
}
