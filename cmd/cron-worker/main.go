package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/grocerymart-backend/api"
	"github.com/angelmondragon/grocerymart-backend/internal/cron"
	product "github.com/angelmondragon/grocerymart-backend/internal/products"
	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/db"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/metrics"
	"github.com/angelmondragon/grocerymart-backend/pkg/migrate"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	jobs := flag.String("jobs", "", "comma separated job names to run (default all)")
	flag.Parse()

	if err := run(*once, splitJobs(*jobs)); err != nil {
		os.Exit(1)
	}
}

func run(once bool, jobNames []string) (err error) {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	if loadErr := godotenv.Load(); loadErr != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		return err
	}
	cfg.Service.Kind = "cron-worker"
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
	if err = migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		return multierr.Append(err, dbClient.Close())
	}
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		return multierr.Append(err, dbClient.Close())
	}
	defer func() {
		if closeErr := multierr.Combine(redisClient.Close(), dbClient.Close()); closeErr != nil {
			logg.Error(context.Background(), "error closing clients", closeErr)
		}
	}()

	service, err := buildService(cfg, logg, dbClient, redisClient, jobNames)
	if err != nil {
		logg.Error(ctx, "failed to wire cron service", err)
		return err
	}

	if once {
		report, err := service.RunOnce(ctx)
		if err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			return err
		}
		if len(report.Failed) > 0 {
			err = errors.New("jobs failed: " + strings.Join(report.Failed, ","))
			logg.Error(ctx, "cron cycle finished with failures", err)
			return err
		}
		return nil
	}

	logg.Info(ctx, "starting cron worker")
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error { return api.ServeMetrics(groupCtx, cfg.Service.MetricsAddr, logg) })
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		return err
	}
	logg.Info(ctx, "cron worker stopped")
	return nil
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, jobNames []string) (*cron.Service, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}
	lowStockJob, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:    logg,
		DB:        dbClient,
		Products:  product.NewRepository(conn),
		Outbox:    outbox.NewService(outboxRepo, logg),
		Threshold: cfg.Cron.LowStockThreshold,
	})
	if err != nil {
		return nil, err
	}
	registry, err := cron.NewRegistry(retentionJob, lowStockJob).Select(jobNames...)
	if err != nil {
		return nil, err
	}

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+env), cfg.Cron.LockTTL)
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
}

func splitJobs(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
