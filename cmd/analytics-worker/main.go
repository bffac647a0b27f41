package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/grocerymart-backend/internal/analytics/router"
	"github.com/angelmondragon/grocerymart-backend/internal/analytics/types"
	"github.com/angelmondragon/grocerymart-backend/internal/analytics/worker"
	"github.com/angelmondragon/grocerymart-backend/internal/analytics/writer"
	"github.com/angelmondragon/grocerymart-backend/pkg/bigquery"
	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/registry"
	"github.com/angelmondragon/grocerymart-backend/pkg/pubsub"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
)

// analytics-worker consumes order events from pub/sub and appends them to
// BigQuery, deduplicating redeliveries through redis.
func main() {
	_ = godotenv.Load()
	if err := run(); err != nil {
		os.Exit(1)
	}
}

type closer interface{ Close() error }

func run() (err error) {
	logg := logger.New(logger.Options{ServiceName: "analytics-worker"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		return err
	}
	cfg.Service.Kind = "analytics-worker"
	logg = logger.New(logger.Options{
		ServiceName: cfg.Service.Kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	// Clients close in reverse order of creation.
	var clients []closer
	defer func() {
		var closeErr error
		for i := len(clients) - 1; i >= 0; i-- {
			closeErr = multierr.Append(closeErr, clients[i].Close())
		}
		if closeErr != nil {
			logg.Error(context.Background(), "error closing clients", closeErr)
		}
	}()
	fail := func(what string, cause error) error {
		logg.Error(ctx, "failed to start: "+what, cause)
		return fmt.Errorf("%s: %w", what, cause)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fail("redis", err)
	}
	clients = append(clients, redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.RequireSubscriptions(cfg.PubSub.AnalyticsSubscription))
	if err != nil {
		return fail("pubsub", err)
	}
	clients = append(clients, pubsubClient)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fail("bigquery", err)
	}
	clients = append(clients, bqClient)
	orderEvents := bigquery.TableSpec{
		Name:           cfg.BigQuery.OrderEventsTable,
		Schema:         types.OrderEventSchema,
		PartitionField: "occurred_at",
	}
	if err := bqClient.EnsureTable(ctx, orderEvents); err != nil {
		return fail("bigquery table", err)
	}

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return fail("analytics subscription", errors.New("subscription not configured"))
	}
	dedupe, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fail("idempotency manager", err)
	}
	sink, err := writer.New(bqClient, orderEvents.Name, writer.Backoff{})
	if err != nil {
		return fail("bigquery writer", err)
	}
	handler, err := router.NewRouter(sink, registry.NewPayloadDecoders(), logg, nil)
	if err != nil {
		return fail("event router", err)
	}
	service, err := worker.NewService(subscription, handler, dedupe, logg)
	if err != nil {
		return fail("worker service", err)
	}

	logg.Info(ctx, "analytics worker ready")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker failed", err)
		return err
	}
	logg.Info(ctx, "analytics worker stopped")
	return nil
}
