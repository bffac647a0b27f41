package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/grocerymart-backend/api"
	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/db"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/metrics"
	"github.com/angelmondragon/grocerymart-backend/pkg/migrate"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/registry"
	"github.com/angelmondragon/grocerymart-backend/pkg/pubsub"
)

// outbox-publisher drains outbox_events to pub/sub. With -dlq or -requeue it
// instead inspects or replays dead-lettered events and exits.
func main() {
	listDLQ := flag.Bool("dlq", false, "list dead-lettered events and exit")
	reason := flag.String("dlq-reason", "", "with -dlq, only show this error reason")
	requeue := flag.String("requeue", "", "move the dead-lettered event with this id back into the outbox and exit")
	flag.Parse()

	_ = godotenv.Load()
	if err := run(ops{listDLQ: *listDLQ, reason: *reason, requeue: *requeue}); err != nil {
		os.Exit(1)
	}
}

type ops struct {
	listDLQ bool
	reason  string
	requeue string
}

func run(op ops) error {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		return err
	}
	cfg.Service.Kind = "outbox-publisher"
	logg = logger.New(logger.Options{
		ServiceName: cfg.Service.Kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return err
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		return multierr.Append(err, dbClient.Close())
	}
	if op.listDLQ || op.requeue != "" {
		err := runOps(ctx, outbox.NewDLQRepository(dbClient.DB()), op)
		if err != nil {
			logg.Error(ctx, "dlq command failed", err)
		}
		return multierr.Append(err, dbClient.Close())
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(ctx, "failed to build event registry", err)
		return multierr.Append(err, dbClient.Close())
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.RequireTopics(eventRegistry.Topics()...))
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		return multierr.Append(err, dbClient.Close())
	}
	defer func() {
		if err := multierr.Combine(pubsubClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	conn := dbClient.DB()
	service, err := NewService(ServiceParams{
		Config:        cfg.Outbox,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(conn),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(conn),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox publisher", err)
		return err
	}

	logg.Info(logg.WithField(ctx, "topics", eventRegistry.Topics()), "starting outbox publisher")
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error { return api.ServeMetrics(groupCtx, cfg.Service.MetricsAddr, logg) })
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		return err
	}
	logg.Info(ctx, "outbox publisher stopped")
	return nil
}

func runOps(ctx context.Context, dlq *outbox.DLQRepository, op ops) error {
	if op.requeue != "" {
		eventID, err := uuid.Parse(op.requeue)
		if err != nil {
			return fmt.Errorf("requeue: %w", err)
		}
		found, err := dlq.Requeue(ctx, eventID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("event %s is not in the dlq", eventID)
		}
		fmt.Printf("requeued %s\n", eventID)
		return nil
	}

	var filter outbox.DLQFilter
	if op.reason != "" {
		reason := enums.OutboxDLQErrorReason(op.reason)
		if !reason.IsValid() {
			return fmt.Errorf("unknown dlq reason %q", op.reason)
		}
		filter.Reason = &reason
	}
	entries, err := dlq.List(ctx, filter)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tTYPE\tREASON\tATTEMPTS\tFAILED AT\tERROR")
	for _, e := range entries {
		msg := ""
		if e.ErrorMessage != nil {
			msg = *e.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", e.EventID, e.EventType, e.ErrorReason, e.AttemptCount, e.FailedAt.Format(time.RFC3339), msg)
	}
	return tw.Flush()
}
