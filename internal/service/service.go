package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Atlas/internal/model"
	"Atlas/internal/repository"
	"Atlas/pkg/logger"
)

// Locker 按 key 互斥，锁被占用时 ok 为 false
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// ForkPublisher fork 事件发布
type ForkPublisher interface {
	PublishItineraryForked(ctx context.Context, msg model.ItineraryForkedMessage) error
}

// 作者没有昵称时的展示名
const anonymousNickname = "匿名用户"

// nicknames 批量查昵称，查询失败只记日志
func nicknames(ctx context.Context, store repository.Store, ids ...uuid.UUID) map[uuid.UUID]string {
	result, err := store.GetNicknames(ctx, ids)
	if err != nil {
		logger.Logger.Warn("Failed to load nicknames", zap.Int("count", len(ids)), zap.Error(err))
		return map[uuid.UUID]string{}
	}
	return result
}

func displayNickname(names map[uuid.UUID]string, id uuid.UUID) string {
	if n := names[id]; n != "" {
		return n
	}
	return anonymousNickname
}
