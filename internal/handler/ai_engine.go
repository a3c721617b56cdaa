package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"Atlas/internal/model/dto"
	"Atlas/internal/service"
	"Atlas/pkg/response"
)

// PreviewImport 解析自由文本，返回候选行程，不写库
func PreviewImport(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.PreviewRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	plan, err := service.Extract().Extract(ctx, userID, req.RawText, req.ItineraryID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, plan)
}

// CommitImport 用客户端确认后的候选行程替换全部条目
func CommitImport(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.ImportRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	n, err := service.Import().Commit(ctx, userID, req.ItineraryID, &req.Preview)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, dto.ImportResponse{ImportedCount: n})
}
