package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserInventory is the single container that holds a user's items. One row
// per user; it doubles as the lock target for multi-user mutations.
type UserInventory struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	IsPublic  bool      `gorm:"column:is_public;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *UserInventory) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
