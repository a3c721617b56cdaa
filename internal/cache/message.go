package cache

import (
	"context"
	"fmt"
	"time"

	"Atlas/storage/redis"
)

const (
	messageProcessedPrefix = "message:processed"
	processedTTL           = 48 * time.Hour
)

// TryMarkMessageProcessing 原子地标记消息正在处理
// 返回 true 表示首次处理，false 表示重复消息或正在处理
func TryMarkMessageProcessing(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	key := redis.Key(messageProcessedPrefix, messageID)
	if ttl <= 0 {
		ttl = processedTTL
	}

	result, err := redis.Client().SetNX(ctx, key, "processing", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return result, nil
}

// UnmarkMessageProcessing 处理失败时调用，允许重试
func UnmarkMessageProcessing(ctx context.Context, messageID string) error {
	key := redis.Key(messageProcessedPrefix, messageID)
	return redis.Client().Del(ctx, key).Err()
}

// MarkMessageProcessed 处理成功后延长 TTL
func MarkMessageProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	key := redis.Key(messageProcessedPrefix, messageID)
	if ttl <= 0 {
		ttl = processedTTL
	}
	return redis.Client().Set(ctx, key, "completed", ttl).Err()
}

// RedisMessageMarker 把消息幂等标记包装成可注入的依赖
type RedisMessageMarker struct{}

func (RedisMessageMarker) TryMark(ctx context.Context, messageID string) (bool, error) {
	return TryMarkMessageProcessing(ctx, messageID, processedTTL)
}

func (RedisMessageMarker) MarkDone(ctx context.Context, messageID string) error {
	return MarkMessageProcessed(ctx, messageID, processedTTL)
}

func (RedisMessageMarker) Unmark(ctx context.Context, messageID string) error {
	return UnmarkMessageProcessing(ctx, messageID)
}
