package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/pkg/enums"
)

// InventoryItem is one stack of a card inside a user's inventory. Quantity
// never goes negative; a row may exist at zero.
type InventoryItem struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	InventoryID        uuid.UUID                `gorm:"column:inventory_id;type:uuid;not null;uniqueIndex:ux_inventory_card"`
	CardID             uuid.UUID                `gorm:"column:card_id;type:uuid;not null;uniqueIndex:ux_inventory_card"`
	Quantity           int64                    `gorm:"column:quantity;not null;default:0;check:chk_qty_nonneg,quantity >= 0"`
	VerificationStatus enums.VerificationStatus `gorm:"column:verification_status;not null;default:unverified"`
	VerifiedAt         *time.Time               `gorm:"column:verified_at"`
	VerifiedBy         *uuid.UUID               `gorm:"column:verified_by;type:uuid"`
	ListedForSale      bool                     `gorm:"column:listed_for_sale;not null;default:false"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *InventoryItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
