package model

import (
	"github.com/google/uuid"
)

const DefaultPOIType = "scenic"

// POI 地点。只有从未解析条目物化出来的 POI 没有坐标
type POI struct {
	BaseModel
	Name         string     `gorm:"type:varchar(128);not null" json:"name"`
	Type         string     `gorm:"type:varchar(32);not null" json:"type"`
	Longitude    *float64   `gorm:"type:double precision" json:"longitude"`
	Latitude     *float64   `gorm:"type:double precision" json:"latitude"`
	Address      *string    `gorm:"type:varchar(255)" json:"address"`
	OpeningHours *string    `gorm:"type:varchar(255)" json:"opening_hours"`
	TicketPrice  *float64   `gorm:"type:numeric(10,2)" json:"ticket_price"`
	ParentPOIID  *uuid.UUID `gorm:"type:uuid;index" json:"parent_poi_id"` // 弱引用，只用于展示分组
}

// TableName 指定表名
func (POI) TableName() string {
	return "pois"
}

func (p *POI) Coordinates() *Coordinates {
	if p.Longitude == nil || p.Latitude == nil {
		return nil
	}
	return &Coordinates{Longitude: *p.Longitude, Latitude: *p.Latitude}
}

// Coordinates 经纬度
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}
