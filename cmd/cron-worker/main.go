package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundpost/soundpost-backend/internal/artifacts"
	"github.com/soundpost/soundpost-backend/internal/convert"
	"github.com/soundpost/soundpost-backend/internal/cron"
	"github.com/soundpost/soundpost-backend/internal/media"
	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/db"
	"github.com/soundpost/soundpost-backend/pkg/logger"
	"github.com/soundpost/soundpost-backend/pkg/metrics"
	"github.com/soundpost/soundpost-backend/pkg/migrate"
	"github.com/soundpost/soundpost-backend/pkg/redis"
)

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

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	// Without redis the lock only guards against overlap inside this
	// process, which is fine for a single-instance deployment.
	var lock cron.Lock = cron.LocalLock{}
	if cfg.Redis.Enabled() {
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
		lock, err = cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
	}

	mediaMetrics := metrics.NewMediaMetrics(prometheus.DefaultRegisterer)

	store, err := artifacts.NewStore(cfg.Media.RootDir, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to prepare media root", err)
		os.Exit(1)
	}

	mediaRepo := media.NewRepository(dbClient)
	converter := convert.NewConverter(cfg.Tools, logg, mediaMetrics)
	mediaService := media.NewService(mediaRepo, store, converter, logg)

	orphanJob, err := cron.NewOrphanMediaJob(cron.OrphanMediaJobParams{
		Logger:    logg,
		Medias:    mediaService,
		Retention: cfg.Cron.OrphanRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orphan media job", err)
		os.Exit(1)
	}
	tempFileJob, err := cron.NewTempFileSweepJob(cron.TempFileSweepJobParams{
		Logger:    logg,
		Store:     store,
		Retention: cfg.Cron.TempFileRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create temp file sweep job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(orphanJob, tempFileJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
