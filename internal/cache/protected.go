package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"Atlas/storage/redis"
)

const (
	// 空值缓存标识
	emptyValueFlag = "__EMPTY__"
	// 空值缓存TTL，较短时间避免长期占用
	emptyValueTTL = 5 * time.Minute
	// 过期时间随机抖动上限，防止同一批 key 同时失效
	ttlJitterMax = 10 * time.Minute
)

// ProtectedCache 带空值保护与过期抖动的缓存包装器
type ProtectedCache struct {
	keyPrefix string
	ttl       time.Duration
	emptyTTL  time.Duration
}

// NewProtectedCache 创建受保护的缓存实例
func NewProtectedCache(keyPrefix string, ttl time.Duration) *ProtectedCache {
	return &ProtectedCache{
		keyPrefix: keyPrefix,
		ttl:       ttl,
		emptyTTL:  emptyValueTTL,
	}
}

// Set 设置缓存，value 为 nil 时写入空值标识。带类型的 nil 指针会被序列化为 null，调用方需自行转换
func (pc *ProtectedCache) Set(ctx context.Context, key string, value interface{}) error {
	data, ttl, err := pc.encode(value)
	if err != nil {
		return err
	}
	return redis.Client().Set(ctx, redis.Key(pc.keyPrefix, key), data, ttl).Err()
}

// Get 命中返回 true；命中空值时 dest 保持原样
func (pc *ProtectedCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := redis.Client().Get(ctx, redis.Key(pc.keyPrefix, key)).Result()
	if err != nil {
		if err == goredis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache: %w", err)
	}
	return decodeCached(data, dest)
}

// Delete 删除缓存
func (pc *ProtectedCache) Delete(ctx context.Context, key string) error {
	return redis.Client().Del(ctx, redis.Key(pc.keyPrefix, key)).Err()
}

func (pc *ProtectedCache) encode(value interface{}) (string, time.Duration, error) {
	if value == nil {
		return emptyValueFlag, pc.emptyTTL, nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return string(b), jitter(pc.ttl), nil
}

func decodeCached(data string, dest interface{}) (bool, error) {
	if data == emptyValueFlag {
		return true, nil
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func jitter(ttl time.Duration) time.Duration {
	spread := ttl / 10
	if spread > ttlJitterMax {
		spread = ttlJitterMax
	}
	if spread <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(int64(spread)))
}
