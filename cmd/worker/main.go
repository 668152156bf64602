package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	config "meter-reading-backend/config"
	internal_services "meter-reading-backend/internal/services"
	"meter-reading-backend/internal/tasks"
	measure_repositories "meter-reading-backend/measures/repositories"
	"meter-reading-backend/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// The worker deletes orphaned measure images: queued deletes from the API and a
// scheduled sweep for anything those missed.
func main() {
	config.InitLogger()
	defer config.Logger.Sync()

	config.LoadEnvFile(".env")

	cfg, err := config.Load()
	if err != nil {
		config.Logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConfigureDatabase(cfg.Database)
	if err != nil {
		config.Logger.Fatal("Failed to configure database", zap.Error(err))
	}

	imageStore, err := internal_services.NewImageStore(ctx, cfg.Storage, cfg.BaseURL)
	if err != nil {
		config.Logger.Fatal("Failed to create image store", zap.Error(err))
	}

	if cfg.Sweep.Enabled() {
		sweeper := tasks.NewOrphanSweeper(imageStore, measure_repositories.NewMeasureRepository(db), cfg.Sweep.Grace)
		go func() {
			if err := utils.RunScheduledCleanup(ctx, cfg.Sweep.Schedule, "orphan-image-sweep", sweeper.Run); err != nil {
				config.Logger.Error("Orphan sweep not scheduled", zap.Error(err))
			}
		}()
	}

	if !cfg.Redis.Enabled() {
		config.Logger.Warn("REDIS_ADDRESS not set, only the scheduled sweep will run")
		<-ctx.Done()
		return
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 5,
			Logger:      config.Logger.Sugar(),
		},
	)

	if err := srv.Start(tasks.NewServeMux(imageStore)); err != nil {
		config.Logger.Fatal("Failed to start task worker", zap.Error(err))
	}
	config.Logger.Info("Task worker started", zap.String("redis", cfg.Redis.Addr))

	<-ctx.Done()
	srv.Shutdown()
	config.Logger.Info("Task worker stopped")
}
