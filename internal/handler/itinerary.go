package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"Atlas/internal/model/dto"
	"Atlas/internal/service"
	"Atlas/pkg/response"
)

// CreateItinerary 创建行程
func CreateItinerary(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.CreateItineraryRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	resp, err := service.Itinerary().Create(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Created(ctx, c, resp)
}

// ListMyItineraries 当前用户的行程
func ListMyItineraries(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var query dto.PageQuery
	if err := c.Bind(&query); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	resp, err := service.Itinerary().ListMine(ctx, userID, query)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, resp)
}

func GetItinerary(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	resp, err := service.Itinerary().Get(ctx, id, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, resp)
}

// UpdateItinerary 只改元信息，未传字段保持不变
func UpdateItinerary(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	var req dto.UpdateItineraryRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	resp, err := service.Itinerary().Update(ctx, id, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, resp)
}

func DeleteItinerary(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	if err := service.Itinerary().Delete(ctx, id, userID); err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.NoContent(ctx, c)
}

// ListItineraryItems 条目按天、顺序排列，附带 POI
func ListItineraryItems(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	resp, err := service.Itinerary().ListItems(ctx, id, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, resp)
}

func CreateItineraryItem(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	var req dto.CreateItemRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	resp, err := service.Itinerary().CreateItem(ctx, id, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Created(ctx, c, resp)
}

func UpdateItineraryItem(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}
	itemID, ok := pathUUID(ctx, c, "item_id")
	if !ok {
		return
	}

	var req dto.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	resp, err := service.Itinerary().UpdateItem(ctx, id, itemID, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, resp)
}

func DeleteItineraryItem(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}
	itemID, ok := pathUUID(ctx, c, "item_id")
	if !ok {
		return
	}

	if err := service.Itinerary().DeleteItem(ctx, id, itemID, userID); err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.NoContent(ctx, c)
}

// ForkItinerary 复制一份可见行程到当前用户名下
func ForkItinerary(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	resp, err := service.Fork().Fork(ctx, id, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Created(ctx, c, resp)
}

// GetItineraryDiff fork 与其来源快照的差异
func GetItineraryDiff(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	diff, err := service.Diff().Diff(ctx, id, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, diff)
}

func RecordDiffActions(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathUUID(ctx, c, "itinerary_id")
	if !ok {
		return
	}

	var req dto.RecordDiffActionsRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	resp, err := service.DiffAction().Record(ctx, id, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Created(ctx, c, resp)
}
