package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Snapshot fork 时对来源行程的不可变拷贝，插入后不再更新
type Snapshot struct {
	CreatedAt   time.Time       `gorm:"not null;default:now()" json:"created_at"`
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ItineraryID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_itinerary_snapshot_version,priority:1" json:"itinerary_id"`
	VersionNo   int             `gorm:"not null;uniqueIndex:uq_itinerary_snapshot_version,priority:2" json:"version_no"`
	Payload     SnapshotPayload `gorm:"type:jsonb;not null" json:"payload"`
}

// TableName 指定表名
func (Snapshot) TableName() string {
	return "itinerary_snapshots"
}

func (s *Snapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// BeforeUpdate 快照只允许插入
func (s *Snapshot) BeforeUpdate(tx *gorm.DB) error {
	return fmt.Errorf("snapshot %s is immutable", s.ID)
}

// SnapshotPayload 元信息 + 按 (day, sort) 排好序的条目
type SnapshotPayload struct {
	Meta  SnapshotMeta   `json:"meta"`
	Items []SnapshotItem `json:"items"`
}

type SnapshotMeta struct {
	Title         string          `json:"title"`
	Destination   string          `json:"destination"`
	Days          int             `json:"days"`
	Status        ItineraryStatus `json:"status"`
	Visibility    Visibility      `json:"visibility"`
	CoverImageURL *string         `json:"cover_image_url"`
}

// SnapshotItem 条目连同 POI 的值拷贝，POI 后续修改不影响历史 diff
type SnapshotItem struct {
	DayIndex        int       `json:"day_index"`
	SortOrder       int       `json:"sort_order"`
	POIID           uuid.UUID `json:"poi_id"`
	POIName         string    `json:"poi_name"`
	POIType         string    `json:"poi_type"`
	Longitude       *float64  `json:"longitude"`
	Latitude        *float64  `json:"latitude"`
	Address         *string   `json:"address"`
	OpeningHours    *string   `json:"opening_hours"`
	TicketPrice     *float64  `json:"ticket_price"`
	StartTime       *string   `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Cost            float64   `json:"cost"`
	Tips            *string   `json:"tips"`
}

// Key 复合键 (day_index, sort_order, poi_id)
func (s SnapshotItem) Key() string {
	return ItemKey(s.DayIndex, s.SortOrder, s.POIID)
}

func ItemKey(dayIndex, sortOrder int, poiID uuid.UUID) string {
	return fmt.Sprintf("d%d-s%d-p%s", dayIndex, sortOrder, poiID)
}

// NewSnapshotMeta 从行程当前状态取元信息
func NewSnapshotMeta(it *Itinerary) SnapshotMeta {
	return SnapshotMeta{
		Title:         it.Title,
		Destination:   it.Destination,
		Days:          it.Days,
		Status:        it.Status,
		Visibility:    it.Visibility,
		CoverImageURL: it.CoverImageURL,
	}
}

// NewSnapshotItem 条目必须已经带上 POI
func NewSnapshotItem(item *ItineraryItem) SnapshotItem {
	s := SnapshotItem{
		DayIndex:        item.DayIndex,
		SortOrder:       item.SortOrder,
		POIID:           item.POIID,
		StartTime:       item.StartTime,
		DurationMinutes: item.DurationMinutes,
		Cost:            item.Cost,
		Tips:            item.Tips,
	}
	if p := item.POI; p != nil {
		s.POIName = p.Name
		s.POIType = p.Type
		s.Longitude = p.Longitude
		s.Latitude = p.Latitude
		s.Address = p.Address
		s.OpeningHours = p.OpeningHours
		s.TicketPrice = p.TicketPrice
	}
	return s
}

// Value 实现 driver.Valuer，存为 jsonb
func (p SnapshotPayload) Value() (driver.Value, error) {
	if p.Items == nil {
		p.Items = []SnapshotItem{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (p *SnapshotPayload) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*p = SnapshotPayload{Items: []SnapshotItem{}}
		return nil
	default:
		return fmt.Errorf("unsupported snapshot payload type %T", value)
	}
	return json.Unmarshal(raw, p)
}
