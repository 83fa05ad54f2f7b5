package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mvickers/tradepost-backend/internal/catalog"
	"github.com/mvickers/tradepost-backend/internal/commissions"
	"github.com/mvickers/tradepost-backend/internal/discounts"
	"github.com/mvickers/tradepost-backend/internal/fanout"
	"github.com/mvickers/tradepost-backend/internal/notifications"
	"github.com/mvickers/tradepost-backend/internal/orders"
	"github.com/mvickers/tradepost-backend/internal/payments"
	"github.com/mvickers/tradepost-backend/internal/payments/stripe"
	"github.com/mvickers/tradepost-backend/internal/payouts"
	"github.com/mvickers/tradepost-backend/internal/users"
	"github.com/mvickers/tradepost-backend/internal/webhooks/provider"
	"github.com/mvickers/tradepost-backend/pkg/config"
	"github.com/mvickers/tradepost-backend/pkg/db"
	"github.com/mvickers/tradepost-backend/pkg/logger"
	"github.com/mvickers/tradepost-backend/pkg/metrics"
	"github.com/mvickers/tradepost-backend/pkg/outbox"
	"github.com/mvickers/tradepost-backend/pkg/outbox/idempotency"
	"github.com/mvickers/tradepost-backend/pkg/pubsub"
	"github.com/mvickers/tradepost-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	idemManager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build idempotency manager", err)
		os.Exit(1)
	}

	driverManager := payments.NewManager(logg)
	driverManager.Register("stripe", func() (payments.Driver, error) {
		return stripe.New(context.Background(), stripe.Params{
			Config:  cfg.Provider,
			Store:   users.NewRepository(dbClient.DB()),
			Logger:  logg,
			Metrics: metrics.NewProviderMetrics(prometheus.DefaultRegisterer),
		})
	})

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to build orders service", err)
		os.Exit(1)
	}
	discountService, err := discounts.NewService(discounts.NewRepository(dbClient.DB()), ordersRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build discount service", err)
		os.Exit(1)
	}
	commissionService, err := commissions.NewService(commissions.NewRepository(dbClient.DB()), ordersRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build commission service", err)
		os.Exit(1)
	}

	dispatcher, err := fanout.NewDispatcher(fanout.DispatcherParams{
		TransactionRunner: dbClient,
		Outbox:            outboxService,
		Discounts:         discountService,
		Commissions:       commissionService,
		Orders:            ordersRepo,
		Subscription:      pubsubClient.OrdersSubscription(),
		Idempotency:       idemManager,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build fanout dispatcher", err)
		os.Exit(1)
	}

	paymentHandler, err := provider.NewHandler(ordersRepo, ordersService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payment handler", err)
		os.Exit(1)
	}
	paymentConsumer, err := provider.NewConsumer(paymentHandler, pubsubClient.PaymentsSubscription(), idemManager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payment consumer", err)
		os.Exit(1)
	}

	catalogSyncer, err := catalog.NewSyncer(catalog.NewRepository(dbClient.DB()), driverManager, cfg.Provider.Driver, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build catalog syncer", err)
		os.Exit(1)
	}
	catalogConsumer, err := catalog.NewConsumer(catalogSyncer, pubsubClient.CatalogSubscription(), idemManager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build catalog consumer", err)
		os.Exit(1)
	}

	payoutConsumer, err := payouts.NewConsumer(dbClient, outboxService, pubsubClient.PayoutsSubscription(), idemManager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payout consumer", err)
		os.Exit(1)
	}

	notificationConsumer, err := notifications.NewConsumer(
		notifications.NewRepository(dbClient.DB()),
		notifications.NewLogNotifier(logg),
		pubsubClient.NotificationSubscription(),
		idemManager,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build notification consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:               cfg,
		Logger:               logg,
		DB:                   dbClient,
		Redis:                redisClient,
		PubSub:               pubsubClient,
		FanoutDispatcher:     dispatcher,
		PaymentConsumer:      paymentConsumer,
		CatalogConsumer:      catalogConsumer,
		PayoutConsumer:       payoutConsumer,
		NotificationConsumer: notificationConsumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
