package dto

import (
	"github.com/google/uuid"

	"Atlas/internal/model"
)

// ========== POI 相关 DTO ==========

// CreatePOIRequest 新建 POI
type CreatePOIRequest struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Longitude    *float64   `json:"longitude"`
	Latitude     *float64   `json:"latitude"`
	Address      *string    `json:"address"`
	OpeningHours *string    `json:"opening_hours"`
	TicketPrice  *float64   `json:"ticket_price"`
	ParentPOIID  *uuid.UUID `json:"parent_poi_id"`
}

// UpdatePOIRequest 只修改出现的字段，经纬度必须同时给出
type UpdatePOIRequest struct {
	Name         *string  `json:"name"`
	Type         *string  `json:"type"`
	Longitude    *float64 `json:"longitude"`
	Latitude     *float64 `json:"latitude"`
	Address      *string  `json:"address"`
	OpeningHours *string  `json:"opening_hours"`
	TicketPrice  *float64 `json:"ticket_price"`
}

// POISearchQuery 名称搜索
type POISearchQuery struct {
	Q           string `query:"q"`
	Destination string `query:"destination"`
	Limit       int    `query:"limit"`
}

// POIListResponse POI 列表
type POIListResponse struct {
	Items  []model.POI `json:"items"`
	Total  int64       `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

// POIParentChainResponse 从自身到最上层父级
type POIParentChainResponse struct {
	Chain     []model.POI `json:"chain"`
	Truncated bool        `json:"truncated"`
}

// SetPOIParentRequest parent_poi_id 为 null 表示清除父级
type SetPOIParentRequest struct {
	ParentPOIID *uuid.UUID `json:"parent_poi_id"`
}
