package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BaseModel struct {
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
}

// BeforeCreate 未指定 ID 时生成 UUID
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	b.EnsureID()
	return nil
}

func (b *BaseModel) EnsureID() {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
}
