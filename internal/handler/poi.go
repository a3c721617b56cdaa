package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"Atlas/internal/model/dto"
	"Atlas/internal/service"
	"Atlas/pkg/response"
)

func CreatePOI(ctx context.Context, c *app.RequestContext) {
	var req dto.CreatePOIRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	poi, err := service.POI().Create(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Created(ctx, c, poi)
}

func GetPOI(ctx context.Context, c *app.RequestContext) {
	id, ok := pathUUID(ctx, c, "poi_id")
	if !ok {
		return
	}

	poi, err := service.POI().Get(ctx, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, poi)
}

func UpdatePOI(ctx context.Context, c *app.RequestContext) {
	id, ok := pathUUID(ctx, c, "poi_id")
	if !ok {
		return
	}

	var req dto.UpdatePOIRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	poi, err := service.POI().Update(ctx, id, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, poi)
}

func DeletePOI(ctx context.Context, c *app.RequestContext) {
	id, ok := pathUUID(ctx, c, "poi_id")
	if !ok {
		return
	}

	if err := service.POI().Delete(ctx, id); err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.NoContent(ctx, c)
}

func ListPOIs(ctx context.Context, c *app.RequestContext) {
	var query dto.PageQuery
	if err := c.Bind(&query); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	resp, err := service.POI().List(ctx, query)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, resp)
}

// SearchPOIs 按名称模糊搜索，destination 出现在地址里的排前面
func SearchPOIs(ctx context.Context, c *app.RequestContext) {
	var query dto.POISearchQuery
	if err := c.Bind(&query); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	pois, err := service.POI().Search(ctx, query)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, pois)
}

func SetPOIParent(ctx context.Context, c *app.RequestContext) {
	id, ok := pathUUID(ctx, c, "poi_id")
	if !ok {
		return
	}

	var req dto.SetPOIParentRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	if err := service.POI().SetParent(ctx, id, req.ParentPOIID); err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.NoContent(ctx, c)
}

// GetPOIParentChain 从自身一直到最上层父级
func GetPOIParentChain(ctx context.Context, c *app.RequestContext) {
	id, ok := pathUUID(ctx, c, "poi_id")
	if !ok {
		return
	}

	resp, err := service.POI().ParentChain(ctx, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, resp)
}
