package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"Atlas/config"
	"Atlas/internal/cache"
	"Atlas/internal/queue"
	"Atlas/internal/repository"
	"Atlas/pkg/logger"
	"Atlas/storage"
)

func main() {
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := queue.DeclareTopology(); err != nil {
		logger.Logger.Fatal("Failed to declare message topology", zap.Error(err))
	}

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
	)

	h := queue.NewForkedCountHandler(repository.Default(), cache.RedisMessageMarker{})
	if err := queue.StartForkedCountConsumer(ctx, h); err != nil && ctx.Err() == nil {
		logger.Logger.Error("Forked count consumer stopped", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
