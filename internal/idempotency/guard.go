// Package idempotency implements the durable replay guard. The key row is
// inserted in the same transaction as the mutation it guards, so "key
// recorded" and "operation applied" commit or roll back together.
package idempotency

import (
	"context"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/cardhaven/cardhaven-backend/pkg/db"
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
	pkgerrors "github.com/cardhaven/cardhaven-backend/pkg/errors"
)

// Guard checks and records idempotency keys.
type Guard interface {
	WithTx(tx *gorm.DB) Guard
	// Check is a no-op for an empty key. A key seen before fails with
	// IdempotentReplay before any other state is touched; otherwise the key
	// is recorded as consumed.
	Check(ctx context.Context, key string, scope enums.IdempotencyScope) error
	DeleteKeysBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type guard struct {
	db *gorm.DB
}

// NewGuard constructs a guard bound to the provided GORM DB.
func NewGuard(db *gorm.DB) Guard {
	return &guard{db: db}
}

func (g *guard) WithTx(tx *gorm.DB) Guard {
	if tx == nil {
		return g
	}
	return &guard{db: tx}
}

func (g *guard) Check(ctx context.Context, key string, scope enums.IdempotencyScope) error {
	if key == "" {
		return nil
	}

	record := &models.IdempotencyKey{Key: key, Scope: scope}
	if err := g.db.WithContext(ctx).Create(record).Error; err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeIdempotentReplay, "request already processed").
				WithDetails(map[string]any{"key": key})
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording idempotency key")
	}
	return nil
}

// DeleteKeysBefore prunes keys last seen before the cutoff. Retention runs
// long after any client could legitimately retry the guarded request.
func (g *guard) DeleteKeysBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := g.db.WithContext(ctx).
		Where("last_seen_at < ?", cutoff).
		Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
