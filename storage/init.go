package storage

import (
	"context"

	"Atlas/storage/database"
	"Atlas/storage/mq"
	"Atlas/storage/redis"
)

// Init 统一初始化存储层
func Init() error {
	if err := database.Init(); err != nil {
		return err
	}

	if err := redis.Init(); err != nil {
		return err
	}

	return mq.Init()
}

// Ready 就绪检查：数据库与 Redis 均可达
func Ready(ctx context.Context) error {
	if err := database.Ping(ctx); err != nil {
		return err
	}
	return redis.Ping(ctx)
}
