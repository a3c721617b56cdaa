package dto

import (
	"time"

	"github.com/google/uuid"

	"Atlas/internal/model"
)

// ========== Itinerary 相关 DTO ==========

// PageQuery offset 分页参数
type PageQuery struct {
	Offset int `query:"offset"`
	Limit  int `query:"limit"`
}

// Normalize limit 默认 20，最大 100
func (q *PageQuery) Normalize() {
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}

// CreateItineraryRequest 创建行程请求
type CreateItineraryRequest struct {
	Title         string                 `json:"title"`
	Destination   string                 `json:"destination"`
	Days          int                    `json:"days"`
	Status        *model.ItineraryStatus `json:"status"`
	Visibility    *model.Visibility      `json:"visibility"`
	CoverImageURL *string                `json:"cover_image_url"`
}

// UpdateItineraryRequest 更新行程元信息，不涉及条目
type UpdateItineraryRequest struct {
	Title         *string                `json:"title"`
	Destination   *string                `json:"destination"`
	Days          *int                   `json:"days"`
	Status        *model.ItineraryStatus `json:"status"`
	Visibility    *model.Visibility      `json:"visibility"`
	CoverImageURL *string                `json:"cover_image_url"`
}

// ItineraryResponse 行程详情，fork 出来的行程附带来源信息
type ItineraryResponse struct {
	CreatedAt                time.Time             `json:"created_at"`
	UpdatedAt                time.Time             `json:"updated_at"`
	ID                       uuid.UUID             `json:"id"`
	Title                    string                `json:"title"`
	Destination              string                `json:"destination"`
	Days                     int                   `json:"days"`
	CreatorUserID            uuid.UUID             `json:"creator_user_id"`
	Status                   model.ItineraryStatus `json:"status"`
	Visibility               model.Visibility      `json:"visibility"`
	CoverImageURL            *string               `json:"cover_image_url"`
	ForkSourceItineraryID    *uuid.UUID            `json:"fork_source_itinerary_id"`
	ForkSourceSnapshotID     *uuid.UUID            `json:"fork_source_snapshot_id"`
	ForkSourceAuthorNickname *string               `json:"fork_source_author_nickname"`
	ForkSourceTitle          *string               `json:"fork_source_title"`
}

// ItineraryListResponse 行程列表
type ItineraryListResponse struct {
	Items  []ItineraryResponse `json:"items"`
	Total  int64               `json:"total"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
}

// PublicItineraryResponse 广场行程
type PublicItineraryResponse struct {
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	ID             uuid.UUID             `json:"id"`
	Title          string                `json:"title"`
	Destination    string                `json:"destination"`
	Days           int                   `json:"days"`
	Status         model.ItineraryStatus `json:"status"`
	Visibility     model.Visibility      `json:"visibility"`
	CoverImageURL  *string               `json:"cover_image_url"`
	AuthorNickname string                `json:"author_nickname"`
	ForkedCount    int64                 `json:"forked_count"`
}

// PublicItineraryListResponse 广场行程列表
type PublicItineraryListResponse struct {
	Items  []PublicItineraryResponse `json:"items"`
	Total  int64                     `json:"total"`
	Offset int                       `json:"offset"`
	Limit  int                       `json:"limit"`
}

// ForkResponse fork 结果。DisplayTitle 为 "来自@昵称：标题"
type ForkResponse struct {
	NewItineraryID       uuid.UUID `json:"new_itinerary_id"`
	SnapshotID           uuid.UUID `json:"snapshot_id"`
	Title                string    `json:"title"`
	DisplayTitle         string    `json:"display_title"`
	SourceItineraryID    uuid.UUID `json:"source_itinerary_id"`
	SourceTitle          string    `json:"source_title"`
	SourceAuthorNickname string    `json:"source_author_nickname"`
}

// ========== Item 相关 DTO ==========

// CreateItemRequest 新增条目
type CreateItemRequest struct {
	DayIndex        int       `json:"day_index"`
	SortOrder       int       `json:"sort_order"`
	POIID           uuid.UUID `json:"poi_id"`
	StartTime       *string   `json:"start_time"`
	DurationMinutes *int      `json:"duration_minutes"`
	Cost            *float64  `json:"cost"`
	Tips            *string   `json:"tips"`
}

// UpdateItemRequest 修改条目，未传的字段保持不变
type UpdateItemRequest struct {
	DayIndex        *int       `json:"day_index"`
	SortOrder       *int       `json:"sort_order"`
	POIID           *uuid.UUID `json:"poi_id"`
	StartTime       *string    `json:"start_time"`
	DurationMinutes *int       `json:"duration_minutes"`
	Cost            *float64   `json:"cost"`
	Tips            *string    `json:"tips"`
}

// ItemWithPOIResponse 条目连同 POI 信息
type ItemWithPOIResponse struct {
	ID              uuid.UUID  `json:"id"`
	ItineraryID     uuid.UUID  `json:"itinerary_id"`
	DayIndex        int        `json:"day_index"`
	SortOrder       int        `json:"sort_order"`
	StartTime       *string    `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes"`
	Cost            float64    `json:"cost"`
	Tips            *string    `json:"tips"`
	POI             *model.POI `json:"poi"`
}

// ItemListResponse 条目列表
type ItemListResponse struct {
	Items []ItemWithPOIResponse `json:"items"`
}

// ========== Diff 相关 DTO ==========

// DiffActionEntry 单条处理记录
type DiffActionEntry struct {
	DiffKey  string               `json:"diff_key"`
	DiffType model.DiffType       `json:"diff_type"`
	Action   model.DiffActionKind `json:"action"`
	Reason   *string              `json:"reason"`
}

// RecordDiffActionsRequest 批量记录 diff 处理
type RecordDiffActionsRequest struct {
	Actions []DiffActionEntry `json:"actions"`
}

// RecordDiffActionsResponse 记录结果
type RecordDiffActionsResponse struct {
	Recorded         int               `json:"recorded"`
	SourceSnapshotID uuid.UUID         `json:"source_snapshot_id"`
	ActionStatuses   map[string]string `json:"action_statuses"`
}

// ========== AI 导入相关 DTO ==========

// PreviewRequest 文本解析预览
type PreviewRequest struct {
	RawText     string    `json:"raw_text"`
	ItineraryID uuid.UUID `json:"itinerary_id"`
}

// ImportRequest 客户端把（可能修改过的）预览结果原样提交
type ImportRequest struct {
	ItineraryID uuid.UUID           `json:"itinerary_id"`
	Preview     model.CandidatePlan `json:"preview"`
}

// ImportResponse 导入结果
type ImportResponse struct {
	ImportedCount int `json:"imported_count"`
}
