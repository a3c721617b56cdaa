package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"go.uber.org/zap"

	appconfig "Atlas/config"
	"Atlas/internal/middleware"
	"Atlas/internal/queue"
	"Atlas/internal/router"
	"Atlas/pkg/geocoder"
	"Atlas/pkg/llm"
	"Atlas/pkg/logger"
	"Atlas/pkg/metrics"
	"Atlas/pkg/otel"
	"Atlas/pkg/snowflake"
	"Atlas/pkg/token"
	"Atlas/storage"
)

func main() {
	logger.Init()
	defer logger.Sync()

	if err := appconfig.Validate(); err != nil {
		logger.Logger.Fatal("Invalid configuration", zap.Error(err))
	}

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

	cfg := appconfig.Cfg

	var opts []config.Option
	if cfg.OTelEnabled {
		shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.ServiceVersion,
			Environment:    cfg.Environment,
			OTLPEndpoint:   cfg.OTelEndpoint,
			SampleRatio:    cfg.OTelSampleRatio,
		})
		if err != nil {
			logger.Logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
			}
		}()
	}

	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize business metrics", zap.Error(err))
	}

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := queue.DeclareTopology(); err != nil {
		logger.Logger.Fatal("Failed to declare message topology", zap.Error(err))
	}

	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	if err := geocoder.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize geocoder", zap.Error(err))
	}
	// 大模型不可用时退回规则解析
	if err := llm.Init(); err != nil {
		logger.Logger.Warn("Failed to initialize LLM client, falling back to rule parser", zap.Error(err))
	}

	if err := token.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
	} // token 在中间件前初始化，middleware 依赖 token

	if err := middleware.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	logger.Logger.Info("Server starting",
		zap.String("service", cfg.ServiceName),
		zap.String("port", cfg.ServerPort),
		zap.String("environment", cfg.Environment),
	)

	addr := net.JoinHostPort(cfg.ServerHost, cfg.ServerPort)
	opts = append(opts, server.WithHostPorts(addr))

	var tracerMW app.HandlerFunc
	if cfg.OTelEnabled {
		var tracerOpt config.Option
		tracerOpt, tracerMW = middleware.NewServerTracerConfig()
		opts = append(opts, tracerOpt)
	}

	h := server.Default(opts...)
	if tracerMW != nil {
		h.Use(tracerMW)
	}

	router.Register(h)

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
