package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "meter-reading-backend/config"
	internal_services "meter-reading-backend/internal/services"
	"meter-reading-backend/internal/tasks"
	"meter-reading-backend/middleware"
	"meter-reading-backend/utils"

	// Measures
	measure_repositories "meter-reading-backend/measures/repositories"
	measure_routes "meter-reading-backend/measures/routes"
	measure_services "meter-reading-backend/measures/services"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	// Initialize Zap logger
	config.InitLogger()
	defer config.Logger.Sync()

	// Load environment variables
	config.LoadEnvFile(".env")

	cfg, err := config.Load()
	if err != nil {
		config.Logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := config.ConfigureDatabase(cfg.Database)
	if err != nil {
		config.Logger.Fatal("Failed to configure database", zap.Error(err))
	}

	// Redis is optional: without it the list cache is off and orphaned images are deleted inline
	redisClient, err := config.InitRedisServer(ctx, cfg.Redis)
	if err != nil {
		config.Logger.Warn("Redis unavailable, continuing without list cache and task queue", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	imageStore, err := internal_services.NewImageStore(ctx, cfg.Storage, cfg.BaseURL)
	if err != nil {
		config.Logger.Fatal("Failed to create image store", zap.Error(err))
	}

	geminiService, err := internal_services.NewGeminiService(ctx, cfg.Gemini)
	if err != nil {
		config.Logger.Fatal("Failed to create Gemini service", zap.Error(err))
	}

	var listCache measure_services.ListCache
	var reaper measure_services.OrphanReaper = tasks.NewInlineReaper(imageStore)
	if redisClient != nil {
		listCache = utils.NewMeasureListCache(redisClient, cfg.Redis.ListCacheTTL)

		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		reaper = tasks.NewQueueReaper(asynqClient)
	}

	// Repositories
	measureRepo := measure_repositories.NewMeasureRepository(db)

	// Services
	measureService := measure_services.NewMeasureService(measureRepo, geminiService, imageStore, listCache, reaper)

	app := fiber.New(fiber.Config{
		BodyLimit: cfg.BodyLimitMB * 1024 * 1024,
	})

	middleware.InitRequestLogging(app)
	middleware.InitCors(app, cfg.AllowOrigins)

	// Serve stored images when they live on local disk
	if cfg.Storage.Driver == config.StorageDriverLocal {
		app.Static("/uploads", cfg.Storage.LocalPath)
	}

	// Routes
	measure_routes.MeasureRouterInit(app, db, measureService)

	go func() {
		<-ctx.Done()
		config.Logger.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			config.Logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	// Start the application
	config.Logger.Info("Server starting",
		zap.String("port", cfg.Port),
		zap.String("storageDriver", cfg.Storage.Driver),
		zap.Bool("redis", redisClient != nil),
	)
	if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
		config.Logger.Fatal("Server failed", zap.String("port", cfg.Port), zap.Error(err))
	}
}
