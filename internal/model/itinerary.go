package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"Atlas/pkg/errors"
)

// ItineraryStatus 行程状态
type ItineraryStatus string

const (
	ItineraryStatusDraft      ItineraryStatus = "draft"
	ItineraryStatusInProgress ItineraryStatus = "in_progress"
	ItineraryStatusPublished  ItineraryStatus = "published"
)

func (s ItineraryStatus) Valid() bool {
	switch s {
	case ItineraryStatusDraft, ItineraryStatusInProgress, ItineraryStatusPublished:
		return true
	}
	return false
}

// Visibility 可见性
type Visibility string

const (
	VisibilityPrivate   Visibility = "private"
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityFollowers:
		return true
	}
	return false
}

const (
	MaxTitleLength       = 128
	MaxDestinationLength = 64
	MaxDays              = 60
)

// Itinerary 行程。fork 出来的行程带有来源行程与快照两个字段，二者同时存在或同时为空
type Itinerary struct {
	BaseModel
	Title             string          `gorm:"type:varchar(128);not null" json:"title"`
	Destination       string          `gorm:"type:varchar(64);not null;default:''" json:"destination"`
	Days              int             `gorm:"not null;default:1;check:days > 0" json:"days"`
	OwnerID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"owner_id"`
	Status            ItineraryStatus `gorm:"type:varchar(16);not null;default:'draft';index" json:"status"`
	Visibility        Visibility      `gorm:"type:varchar(16);not null;default:'private';index" json:"visibility"`
	CoverImageURL     *string         `gorm:"type:varchar(512)" json:"cover_image_url"`
	SourceItineraryID *uuid.UUID      `gorm:"type:uuid;index" json:"source_itinerary_id"`
	SourceSnapshotID  *uuid.UUID      `gorm:"type:uuid" json:"source_snapshot_id"`
	ForkedCount       int64           `gorm:"not null;default:0" json:"forked_count"`
}

// TableName 指定表名
func (Itinerary) TableName() string {
	return "itineraries"
}

// BeforeSave 所有写路径都会经过这里
func (i *Itinerary) BeforeSave(tx *gorm.DB) error {
	return i.ValidateLineage()
}

func (i *Itinerary) ValidateLineage() error {
	if (i.SourceItineraryID == nil) != (i.SourceSnapshotID == nil) {
		return errors.ItineraryLineageBroken
	}
	return nil
}

func (i *Itinerary) IsForked() bool {
	return i.SourceItineraryID != nil && i.SourceSnapshotID != nil
}

func (i *Itinerary) OwnedBy(userID uuid.UUID) bool {
	return i.OwnerID == userID
}

// VisibleTo followers 关系不在本服务内，非本人只能看 public
func (i *Itinerary) VisibleTo(userID uuid.UUID) bool {
	return i.Visibility == VisibilityPublic || i.OwnedBy(userID)
}

// ItineraryItem 行程条目。整体替换时需要物理删除，所以不使用软删除
type ItineraryItem struct {
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:now()" json:"updated_at"`
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ItineraryID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_itinerary_day_sort,priority:1" json:"itinerary_id"`
	DayIndex        int       `gorm:"not null;uniqueIndex:uq_itinerary_day_sort,priority:2" json:"day_index"`
	SortOrder       int       `gorm:"not null;uniqueIndex:uq_itinerary_day_sort,priority:3" json:"sort_order"`
	POIID           uuid.UUID `gorm:"column:poi_id;type:uuid;not null;index" json:"poi_id"`
	StartTime       *string   `gorm:"type:varchar(5)" json:"start_time"` // HH:MM
	DurationMinutes int       `gorm:"not null;default:0" json:"duration_minutes"`
	Cost            float64   `gorm:"type:numeric(10,2);not null;default:0" json:"cost"`
	Tips            *string   `gorm:"type:text" json:"tips"`

	POI *POI `gorm:"foreignKey:POIID" json:"poi,omitempty"`
}

// TableName 指定表名
func (ItineraryItem) TableName() string {
	return "itinerary_items"
}

func (it *ItineraryItem) BeforeCreate(tx *gorm.DB) error {
	it.EnsureID()
	return nil
}

func (it *ItineraryItem) EnsureID() {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
}
