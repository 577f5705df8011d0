// Package catalog owns card records. The credit engine only touches the
// reserved CREDIT set, where each card is a denomination keyed by its price.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/cardhaven/cardhaven-backend/pkg/db"
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
)

// Repository exposes card persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	EnsureCreditCard(ctx context.Context, denominationCents int64) (*models.Card, error)
	ListCreditCards(ctx context.Context) ([]models.Card, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// CreditCardName is the canonical display name for a denomination.
func CreditCardName(denominationCents int64) string {
	return fmt.Sprintf("Store Credit %d", denominationCents)
}

// EnsureCreditCard resolves the credit card for the denomination, creating it
// on first issue. The name is refreshed to the canonical label if it drifted.
// A concurrent create loses the unique-index race and re-reads the winner.
func (r *repository) EnsureCreditCard(ctx context.Context, denominationCents int64) (*models.Card, error) {
	card, err := r.findCreditCard(ctx, denominationCents)
	if err == nil {
		canonical := CreditCardName(denominationCents)
		if card.Name != canonical {
			if err := r.db.WithContext(ctx).
				Model(card).
				UpdateColumn("name", canonical).Error; err != nil {
				return nil, err
			}
			card.Name = canonical
		}
		return card, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.Card{
		Name:       CreditCardName(denominationCents),
		SetName:    models.CreditSetName,
		PriceCents: denominationCents,
	}
	if createErr := r.db.WithContext(ctx).Create(created).Error; createErr != nil {
		if dbpkg.IsUniqueViolation(createErr, "ux_credit_card_denom") {
			return r.findCreditCard(ctx, denominationCents)
		}
		return nil, createErr
	}
	return created, nil
}

// ListCreditCards returns all credit denominations, highest first.
func (r *repository) ListCreditCards(ctx context.Context) ([]models.Card, error) {
	var cards []models.Card
	err := r.db.WithContext(ctx).
		Where("set_name = ?", models.CreditSetName).
		Order("price_cents DESC").
		Find(&cards).Error
	return cards, err
}

func (r *repository) findCreditCard(ctx context.Context, denominationCents int64) (*models.Card, error) {
	var card models.Card
	err := r.db.WithContext(ctx).
		Where("set_name = ? AND price_cents = ? AND foiling = '' AND rarity = '' AND art_style = ''",
			models.CreditSetName, denominationCents).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}
