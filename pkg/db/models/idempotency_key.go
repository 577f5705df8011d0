package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/pkg/enums"
)

// IdempotencyKey records a consumed request key. Insertion happens inside the
// same transaction as the guarded mutation; a unique violation on key means
// the request already ran.
type IdempotencyKey struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Key                string                 `gorm:"column:key;not null;uniqueIndex"`
	Scope              enums.IdempotencyScope `gorm:"column:scope;not null"`
	RequestFingerprint *string                `gorm:"column:request_fingerprint"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	LastSeenAt         time.Time              `gorm:"column:last_seen_at;autoCreateTime"`
}

func (k *IdempotencyKey) BeforeCreate(_ *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}
