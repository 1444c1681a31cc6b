package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundpost/soundpost-backend/api/controllers"
	"github.com/soundpost/soundpost-backend/api/routes"
	"github.com/soundpost/soundpost-backend/internal/artifacts"
	"github.com/soundpost/soundpost-backend/internal/convert"
	"github.com/soundpost/soundpost-backend/internal/media"
	"github.com/soundpost/soundpost-backend/internal/posts"
	"github.com/soundpost/soundpost-backend/internal/transcribe"
	"github.com/soundpost/soundpost-backend/internal/uploads"
	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/db"
	"github.com/soundpost/soundpost-backend/pkg/logger"
	"github.com/soundpost/soundpost-backend/pkg/metrics"
	"github.com/soundpost/soundpost-backend/pkg/migrate"
	"github.com/soundpost/soundpost-backend/pkg/redis"
	"github.com/soundpost/soundpost-backend/pkg/storage/gcs"
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

	health := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    nil,
		"gcs":      nil,
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		health["redis"] = redisClient
	}

	var gcsClient *gcs.Client
	if cfg.GCS.Enabled() {
		gcsClient, err = gcs.NewClient(context.Background(), cfg.GCS, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap gcs", err)
			os.Exit(1)
		}
		health["gcs"] = gcsClient
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

	postsRepo := posts.NewRepository(dbClient)
	var postsService *posts.Service
	if cfg.OpenAI.APIKey != "" {
		transcriberClient, err := transcribe.NewClient(cfg.OpenAI, logg, mediaMetrics)
		if err != nil {
			logg.Error(context.Background(), "failed to create transcription client", err)
			os.Exit(1)
		}
		postsService = posts.NewService(postsRepo, mediaService, transcriberClient, store, logg)
	} else {
		logg.Warn(context.Background(), "no openai api key configured, transcription disabled")
		postsService = posts.NewService(postsRepo, mediaService, nil, store, logg)
	}

	deps := routes.Deps{
		Posts:        postsService,
		Store:        store,
		MediaMetrics: mediaMetrics,
		Health:       health,
	}
	if gcsClient != nil {
		if redisClient != nil {
			deps.Uploads = uploads.NewService(gcsClient, mediaRepo, redisClient, cfg.GCS, logg)
		} else {
			deps.Uploads = uploads.NewService(gcsClient, mediaRepo, nil, cfg.GCS, logg)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, deps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
