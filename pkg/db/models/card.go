package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditSetName marks the synthetic set that holds store-credit denominations.
const CreditSetName = "CREDIT"

// Card is the catalog entity. Store-credit denominations are cards in the
// CREDIT set whose price is the denomination in minor units. At most one
// credit card may exist per (price, foiling, rarity, art_style) tuple.
type Card struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name       string         `gorm:"column:name;not null"`
	SetName    string         `gorm:"column:set_name;not null;uniqueIndex:ux_credit_card_denom,where:set_name = 'CREDIT'"`
	PriceCents int64          `gorm:"column:price_cents;not null;uniqueIndex:ux_credit_card_denom,where:set_name = 'CREDIT'"`
	Foiling    string         `gorm:"column:foiling;not null;default:'';uniqueIndex:ux_credit_card_denom,where:set_name = 'CREDIT'"`
	Rarity     string         `gorm:"column:rarity;not null;default:'';uniqueIndex:ux_credit_card_denom,where:set_name = 'CREDIT'"`
	ArtStyle   string         `gorm:"column:art_style;not null;default:'';uniqueIndex:ux_credit_card_denom,where:set_name = 'CREDIT'"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (c *Card) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsCredit reports whether the card is a store-credit denomination.
func (c *Card) IsCredit() bool {
	return c.SetName == CreditSetName
}
