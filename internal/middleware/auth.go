package middleware

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/hertz-contrib/jwt"

	"Atlas/pkg/errors"
	"Atlas/pkg/response"
	"Atlas/pkg/token"
)

const (
	IdentityKey = token.IdentityKey
)

var (
	authMiddleware *jwt.HertzJWTMiddleware
)

func initAuthMiddleware() error {
	// 使用 token 包中共享的生成器
	sharedGenerator := token.GetGenerator()
	if sharedGenerator == nil {
		return fmt.Errorf("%w, call token.Init() first", errors.ErrTokenGeneratorNotInitialized)
	}

	authMiddleware = &jwt.HertzJWTMiddleware{
		Realm:       "Atlas API",
		Key:         sharedGenerator.Key,
		Timeout:     sharedGenerator.Timeout,
		MaxRefresh:  sharedGenerator.MaxRefresh,
		IdentityKey: sharedGenerator.IdentityKey,
		TimeFunc:    sharedGenerator.TimeFunc,

		IdentityHandler: identityFromClaims,

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			response.Error(ctx, c, errors.Unauthorized.WithMessage("%s", message))
		},

		TokenLookup:   "header: Authorization, query: token",
		TokenHeadName: "Bearer",
	}

	return nil
}

// identityFromClaims uid 不是合法 UUID 时返回 nil，后续 GetUserID 取不到用户
func identityFromClaims(ctx context.Context, c *app.RequestContext) interface{} {
	claims := jwt.ExtractClaims(ctx, c)
	raw, ok := claims[IdentityKey].(string)
	if !ok {
		return nil
	}
	uid, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return uid
}

func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// GetUserID 从请求上下文中获取用户ID
func GetUserID(ctx context.Context, c *app.RequestContext) (uuid.UUID, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return uuid.Nil, false
	}

	id, ok := v.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
