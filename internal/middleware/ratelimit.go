package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"Atlas/config"
	"Atlas/pkg/errors"
	"Atlas/pkg/logger"
	"Atlas/pkg/response"
	"Atlas/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 时间窗口（秒）
	Window int
	// 时间窗口内最大请求数
	MaxRequests int
	// 限流键前缀
	KeyPrefix string
	// 是否按用户ID限流（需要认证）
	ByUserID bool
	// 是否按IP限流
	ByIP bool
	// 阻塞时长（秒），0 表示超限后不额外封禁
	BlockDuration int
	// 错误消息
	ErrorMessage string
}

// DefaultRateLimitConfig 默认限流配置，MaxRequests 启动时取 RATE_LIMIT_RPS
var DefaultRateLimitConfig = RateLimitConfig{
	Window:        60,
	MaxRequests:   100,
	KeyPrefix:     "rate:limit",
	ByUserID:      true,
	ByIP:          true,
	BlockDuration: 300,
	ErrorMessage:  "请求过于频繁，请稍后再试",
}

// AIPreviewRateLimitConfig 文本解析会调用地理编码和大模型，单独收紧
var AIPreviewRateLimitConfig = RateLimitConfig{
	Window:        60,
	MaxRequests:   10,
	KeyPrefix:     "ai:preview:rate",
	ByUserID:      true,
	ByIP:          false,
	BlockDuration: 300,
	ErrorMessage:  "解析请求过于频繁，请稍后再试",
}

var ImportRateLimitConfig = RateLimitConfig{
	Window:       60,
	MaxRequests:  20,
	KeyPrefix:    "ai:import:rate",
	ByUserID:     true,
	ErrorMessage: "导入过于频繁，请稍后再试",
}

// RateLimiter 限流器
type RateLimiter struct {
	config RateLimitConfig
	client func() *redislib.Client
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config: config,
		client: redis.Client,
	}
}

// getKey 生成限流键
func (rl *RateLimiter) getKey(ctx context.Context, c *app.RequestContext) string {
	var identifier string

	if rl.config.ByUserID {
		if userID, exists := GetUserID(ctx, c); exists {
			identifier = "user:" + userID.String()
		}
	}

	if identifier == "" && (rl.config.ByIP || rl.config.ByUserID) {
		identifier = "ip:" + c.ClientIP()
	}

	return redis.Key(rl.config.KeyPrefix, identifier)
}

func (rl *RateLimiter) blockKey(ctx context.Context, c *app.RequestContext) string {
	return rl.getKey(ctx, c) + ":block"
}

// Allow 检查是否允许请求，使用滑动窗口算法
func (rl *RateLimiter) Allow(ctx context.Context, c *app.RequestContext) (bool, int, error) {
	key := rl.getKey(ctx, c)
	now := time.Now()
	windowStart := now.Add(-time.Duration(rl.config.Window) * time.Second)

	// zset 实现滑动窗口，每次请求先清掉窗口外的记录
	pipe := rl.client().Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redislib.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	zcardCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, time.Duration(rl.config.Window+10)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	count := int(zcardCmd.Val())
	return count <= rl.config.MaxRequests, count, nil
}

func (rl *RateLimiter) Block(ctx context.Context, c *app.RequestContext) error {
	if rl.config.BlockDuration <= 0 {
		return nil
	}
	return rl.client().Set(ctx, rl.blockKey(ctx, c), "1", time.Duration(rl.config.BlockDuration)*time.Second).Err()
}

func (rl *RateLimiter) IsBlocked(ctx context.Context, c *app.RequestContext) (bool, error) {
	if rl.config.BlockDuration <= 0 {
		return false, nil
	}
	result, err := rl.client().Exists(ctx, rl.blockKey(ctx, c)).Result()
	return result > 0, err
}

func (rl *RateLimiter) reject(ctx context.Context, c *app.RequestContext) {
	def := errors.TooManyRequests
	if rl.config.ErrorMessage != "" {
		def = def.WithMessage("%s", rl.config.ErrorMessage)
	}
	response.Error(ctx, c, def)
	c.Abort()
}

// RateLimitMiddleware 创建限流中间件；redis 不可用时放行，只记日志
func RateLimitMiddleware(cfg RateLimitConfig) app.HandlerFunc {
	if !config.Cfg.RateLimitEnabled {
		return func(ctx context.Context, c *app.RequestContext) {
			c.Next(ctx)
		}
	}

	limiter := NewRateLimiter(cfg)

	return func(ctx context.Context, c *app.RequestContext) {
		blocked, err := limiter.IsBlocked(ctx, c)
		if err != nil {
			logger.Logger.Warn("Failed to check block status", zap.Error(err))
			c.Next(ctx)
			return
		}
		if blocked {
			limiter.reject(ctx, c)
			return
		}

		allowed, count, err := limiter.Allow(ctx, c)
		if err != nil {
			logger.Logger.Warn("Failed to check rate limit", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := cfg.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(cfg.Window)*time.Second).Unix(), 10))

		if !allowed {
			if err := limiter.Block(ctx, c); err != nil {
				logger.Logger.Error("Failed to block requester", zap.Error(err))
			}
			limiter.reject(ctx, c)
			return
		}

		c.Next(ctx)
	}
}

// GeneralRateLimitMiddleware 通用限流中间件（适用于所有需要认证的路由）
func GeneralRateLimitMiddleware() app.HandlerFunc {
	cfg := DefaultRateLimitConfig
	if config.Cfg.RateLimitRPS > 0 {
		cfg.MaxRequests = config.Cfg.RateLimitRPS
	}
	return RateLimitMiddleware(cfg)
}

func AIPreviewRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(AIPreviewRateLimitConfig)
}

func ImportRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(ImportRateLimitConfig)
}
