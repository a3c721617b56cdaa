package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItineraryFork fork 关系，forked_count 以它为准对账
type ItineraryFork struct {
	CreatedAt         time.Time `gorm:"not null;default:now()" json:"created_at"`
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourceItineraryID uuid.UUID `gorm:"type:uuid;not null;index" json:"source_itinerary_id"`
	SourceSnapshotID  uuid.UUID `gorm:"type:uuid;not null;index" json:"source_snapshot_id"`
	ForkedItineraryID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"forked_itinerary_id"`
	ForkedByUserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"forked_by_user_id"`
}

// TableName 指定表名
func (ItineraryFork) TableName() string {
	return "itinerary_forks"
}

func (f *ItineraryFork) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// DiffType diff 条目类别
type DiffType string

const (
	DiffTypeMetadata DiffType = "metadata"
	DiffTypeAdded    DiffType = "added"
	DiffTypeRemoved  DiffType = "removed"
	DiffTypeModified DiffType = "modified"
)

func (t DiffType) Valid() bool {
	switch t {
	case DiffTypeMetadata, DiffTypeAdded, DiffTypeRemoved, DiffTypeModified:
		return true
	}
	return false
}

// DiffActionKind 用户对某条 diff 的处理
type DiffActionKind string

const (
	DiffActionApplied    DiffActionKind = "applied"
	DiffActionRolledBack DiffActionKind = "rolled_back"
	DiffActionIgnored    DiffActionKind = "ignored"
	DiffActionRead       DiffActionKind = "read"
)

func (a DiffActionKind) Valid() bool {
	switch a {
	case DiffActionApplied, DiffActionRolledBack, DiffActionIgnored, DiffActionRead:
		return true
	}
	return false
}

// DiffAction 只追加，最新一条即当前状态
type DiffAction struct {
	CreatedAt        time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ItineraryID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"itinerary_id"`
	SourceSnapshotID uuid.UUID      `gorm:"type:uuid;not null;index" json:"source_snapshot_id"`
	DiffKey          string         `gorm:"type:varchar(128);not null;index" json:"diff_key"`
	DiffType         DiffType       `gorm:"type:varchar(16);not null" json:"diff_type"`
	Action           DiffActionKind `gorm:"type:varchar(16);not null" json:"action"`
	Reason           *string        `gorm:"type:text" json:"reason"`
	ActorUserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"actor_user_id"`
}

// TableName 指定表名
func (DiffAction) TableName() string {
	return "itinerary_diff_actions"
}

func (d *DiffAction) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
