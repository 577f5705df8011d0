package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/pkg/enums"
)

// CreditLedgerEntry records an immutable store-credit movement. Amounts are
// always positive; direction carries the sign.
type CreditLedgerEntry struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents    int64                 `gorm:"column:amount_cents;not null;check:chk_amount_positive,amount_cents > 0"`
	Direction      enums.LedgerDirection `gorm:"column:direction;not null"`
	Kind           enums.LedgerKind      `gorm:"column:kind;not null"`
	RelatedOrderID *uuid.UUID            `gorm:"column:related_order_id;type:uuid"`
	RelatedItemID  *uuid.UUID            `gorm:"column:related_inventory_item_id;type:uuid"`
	AdminID        *uuid.UUID            `gorm:"column:admin_id;type:uuid"`
	IdempotencyKey *string               `gorm:"column:idempotency_key;uniqueIndex:ux_ledger_idem_key,where:idempotency_key IS NOT NULL"`
	Notes          *string               `gorm:"column:notes"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *CreditLedgerEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
