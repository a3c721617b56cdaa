package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"Atlas/internal/model/dto"
	"Atlas/internal/service"
	"Atlas/pkg/response"
)

// ListPublicItineraries 广场列表，只含已发布的公开行程
func ListPublicItineraries(ctx context.Context, c *app.RequestContext) {
	var query dto.PageQuery
	if err := c.Bind(&query); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	resp, err := service.Explore().List(ctx, query)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.SuccessWithMeta(ctx, c, resp.Items, map[string]interface{}{
		"total":  resp.Total,
		"offset": resp.Offset,
		"limit":  resp.Limit,
	})
}

func GetPublicItinerary(ctx context.Context, c *app.RequestContext) {
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	resp, err := service.Explore().Get(ctx, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, resp)
}

func ListPublicItineraryItems(ctx context.Context, c *app.RequestContext) {
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	resp, err := service.Explore().ListItems(ctx, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, resp)
}

// ForkPublicItinerary 从广场 fork，需要登录
func ForkPublicItinerary(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	resp, err := service.Explore().Fork(ctx, id, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Created(ctx, c, resp)
}
