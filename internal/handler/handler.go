package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"

	"Atlas/internal/middleware"
	"Atlas/pkg/errors"
	"Atlas/pkg/response"
)

// currentUser 取出鉴权中间件写入的用户 ID，失败时已经写好响应
func currentUser(ctx context.Context, c *app.RequestContext) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// pathUUID 解析路径参数中的 UUID
func pathUUID(ctx context.Context, c *app.RequestContext, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(ctx, c, errors.InvalidRequest.WithMessage("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}
