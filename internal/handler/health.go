package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"Atlas/pkg/logger"
	"Atlas/pkg/response"
	"Atlas/storage"
)

func Live(ctx context.Context, c *app.RequestContext) {
	response.Success(ctx, c, map[string]string{"status": "ok"})
}

// Ready 数据库与 redis 都能 ping 通才算就绪
func Ready(ctx context.Context, c *app.RequestContext) {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := storage.Ready(pingCtx); err != nil {
		logger.Logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	response.Success(ctx, c, map[string]string{"status": "ready"})
}
