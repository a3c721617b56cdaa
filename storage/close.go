package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"Atlas/pkg/logger"
	"Atlas/storage/database"
	"Atlas/storage/mq"
	"Atlas/storage/redis"
)

const closeTimeout = 15 * time.Second

// closers 按顺序关闭：先停消费和发布，导入锁与缓存其次，数据库最后
var closers = []struct {
	name  string
	close func(context.Context) error
}{
	{"rabbitmq", mq.Close},
	{"redis", redis.Close},
	{"postgres", database.Close},
}

// Close 逐个关闭连接，单个失败只记录日志，不影响后面的关闭
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	for _, c := range closers {
		if err := c.close(ctx); err != nil {
			logger.Logger.Error("Failed to close storage backend", zap.String("backend", c.name), zap.Error(err))
			continue
		}
		logger.Logger.Debug("Storage backend closed", zap.String("backend", c.name))
	}
	logger.Logger.Info("Storage connections closed")
}
