package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryTransferLog is the audit trail for item movements between users.
type InventoryTransferLog struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FromUserID     uuid.UUID `gorm:"column:from_user_id;type:uuid;not null;index"`
	ToUserID       uuid.UUID `gorm:"column:to_user_id;type:uuid;not null;index"`
	CardID         uuid.UUID `gorm:"column:card_id;type:uuid;not null"`
	Quantity       int64     `gorm:"column:quantity;not null"`
	IsCredit       bool      `gorm:"column:is_credit;not null;default:false"`
	IdempotencyKey *string   `gorm:"column:idempotency_key"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *InventoryTransferLog) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
