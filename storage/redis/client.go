package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"Atlas/config"
	"Atlas/pkg/logger"
	redisotel "Atlas/pkg/redis"
)

var (
	client *redis.Client
	once   sync.Once
	err    error
)

func Init() error {
	once.Do(func() {
		cfg := config.Cfg

		client = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			MinIdleConns: 5,
			MaxRetries:   3,
		})

		if cfg.OTelEnabled {
			if mErr := redisotel.InitRedisMetrics(otel.Meter("atlas.redis")); mErr != nil {
				logger.Logger.Warn("Failed to init redis metrics", zap.Error(mErr))
			}
			redisotel.InstrumentClient(client, cfg.ServiceName, cfg.RedisDB)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err = client.Ping(ctx).Err(); err != nil {
			logger.Logger.Error("Failed to ping redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			return
		}

		logger.Logger.Info("Redis initialized successfully", zap.String("addr", cfg.RedisAddr))
	})

	return err
}

func Client() *redis.Client {
	if client == nil {
		panic("Redis client not init")
	}
	return client
}

// Ping 就绪探针使用
func Ping(ctx context.Context) error {
	if client == nil {
		return redis.ErrClosed
	}
	return client.Ping(ctx).Err()
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}

	return client.Close()
}

// Key 拼接带前缀的 key，空段跳过
func Key(parts ...string) string {
	prefix := config.Cfg.RedisPrefix
	if prefix == "" {
		prefix = "atlas"
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	for _, part := range parts {
		if part != "" {
			sb.WriteString(":")
			sb.WriteString(part)
		}
	}

	return sb.String()
}
