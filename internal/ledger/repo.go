package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
)

// Repository manages persistence for credit ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.CreditLedgerEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CreditLedgerEntry, error)
	SumByUserAndKind(ctx context.Context, userID uuid.UUID, kind enums.LedgerKind) (int64, error)
	ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.CreditLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CreditLedgerEntry, error) {
	var entries []models.CreditLedgerEntry
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// SumByUserAndKind totals the value moved for the user under one kind.
func (r *repository) SumByUserAndKind(ctx context.Context, userID uuid.UUID, kind enums.LedgerKind) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditLedgerEntry{}).
		Select("SUM(amount_cents)").
		Where("user_id = ? AND kind = ?", userID, kind).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) ExistsByIdempotencyKey(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CreditLedgerEntry{}).
		Where("idempotency_key = ?", key).
		Count(&count).Error
	return count > 0, err
}
