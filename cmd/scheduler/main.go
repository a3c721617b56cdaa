package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"Atlas/config"
	"Atlas/internal/schedule"
	"Atlas/pkg/logger"
	"Atlas/pkg/metrics"
	"Atlas/storage/database"
)

func main() {
	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	// 对账只需要数据库
	if err := database.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize database for scheduler", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := database.Close(closeCtx); err != nil {
			logger.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize business metrics", zap.Error(err))
	}

	interval := config.Cfg.ForkCountReconcileInterval
	if config.Cfg.IsDevelopment() {
		interval = time.Minute
	}

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
		zap.Duration("fork_count_interval", interval),
	)

	schedule.GetForkCountScheduler().Run(ctx, interval)

	logger.Logger.Info("Scheduler service shutting down gracefully")
}
