package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"Atlas/storage/redis"
)

// 基于 SetNX 的分布式锁，value 是持有者的 token，释放时校验，避免删掉别人的锁
const (
	lockPrefix = "lock"
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// TryLock 获取成功返回释放函数；锁被占用时 ok 为 false
func TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	fullkey := redis.Key(lockPrefix, key)
	token := uuid.NewString()

	ok, err = redis.Client().SetNX(ctx, fullkey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, redis.Client(), []string{fullkey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

// RedisLocker 把 TryLock 包装成可注入的依赖
type RedisLocker struct{}

func (RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	return TryLock(ctx, key, ttl)
}
