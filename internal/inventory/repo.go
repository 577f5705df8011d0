// Package inventory owns per-user item containers and lines. All quantity
// mutation happens through this repository inside a caller-held transaction.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/cardhaven/cardhaven-backend/pkg/db"
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
)

// ErrQuantityExceeded reports a decrement larger than the held quantity.
var ErrQuantityExceeded = errors.New("inventory: decrement exceeds held quantity")

// Repository exposes inventory persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureContainer(ctx context.Context, userID uuid.UUID) (*models.UserInventory, error)
	FindContainerByUser(ctx context.Context, userID uuid.UUID) (*models.UserInventory, error)
	LockContainersForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.UserInventory, error)
	FindLineByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.InventoryItem, error)
	LockCreditLines(ctx context.Context, inventoryID uuid.UUID) ([]CreditLine, error)
	CreditLines(ctx context.Context, inventoryID uuid.UUID) ([]CreditLine, error)
	AddQuantity(ctx context.Context, inventoryID, cardID uuid.UUID, delta int64, seed LineSeed) (*models.InventoryItem, error)
	DecrementQuantity(ctx context.Context, lineID uuid.UUID, delta int64) error
	AppendTransferLog(ctx context.Context, log *models.InventoryTransferLog) error
	DeleteTransferLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CreditLine pairs a credit inventory line with its denomination.
type CreditLine struct {
	Line              models.InventoryItem
	CardID            uuid.UUID
	DenominationCents int64
}

// LineSeed carries the initial state for a line created by AddQuantity.
// Transfers use it to carry verification metadata onto the destination.
type LineSeed struct {
	VerificationStatus enums.VerificationStatus
	VerifiedAt         *time.Time
	VerifiedBy         *uuid.UUID
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs an inventory repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// EnsureContainer returns the user's container, creating it on first access.
// A concurrent create loses the unique-index race and re-reads the winner.
func (r *repository) EnsureContainer(ctx context.Context, userID uuid.UUID) (*models.UserInventory, error) {
	var container models.UserInventory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&container).Error
	if err == nil {
		return &container, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.UserInventory{UserID: userID}
	if createErr := r.db.WithContext(ctx).Create(created).Error; createErr != nil {
		if dbpkg.IsUniqueViolation(createErr, "") {
			err = r.db.WithContext(ctx).
				Where("user_id = ?", userID).
				First(&container).Error
			if err != nil {
				return nil, err
			}
			return &container, nil
		}
		return nil, createErr
	}
	return created, nil
}

// FindContainerByUser loads the container without creating it. Previews use
// this so a read-only path never writes.
func (r *repository) FindContainerByUser(ctx context.Context, userID uuid.UUID) (*models.UserInventory, error) {
	var container models.UserInventory
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&container).Error; err != nil {
		return nil, err
	}
	return &container, nil
}

// LockContainersForUsers update-locks the containers for the given users in
// ascending user-id order. The fixed order is the deadlock-avoidance
// invariant for transfers running in opposite directions. Missing containers
// are created first so every user has a lock target.
func (r *repository) LockContainersForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.UserInventory, error) {
	ordered := make([]uuid.UUID, len(userIDs))
	copy(ordered, userIDs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	out := make(map[uuid.UUID]*models.UserInventory, len(ordered))
	for _, userID := range ordered {
		if _, seen := out[userID]; seen {
			continue
		}
		if _, err := r.EnsureContainer(ctx, userID); err != nil {
			return nil, err
		}
		var container models.UserInventory
		err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
			Where("user_id = ?", userID).
			First(&container).Error
		if err != nil {
			return nil, err
		}
		out[userID] = &container
	}
	return out, nil
}

func (r *repository) FindLineByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.InventoryItem, error) {
	query := r.db.WithContext(ctx)
	if forUpdate {
		query = dbpkg.ForUpdate(query)
	}
	var line models.InventoryItem
	if err := query.First(&line, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// LockCreditLines update-locks the credit lines in the container, ordered by
// denomination descending then line id ascending. Redemptions compute and
// lock in this same order so preview and commit agree.
func (r *repository) LockCreditLines(ctx context.Context, inventoryID uuid.UUID) ([]CreditLine, error) {
	return r.creditLines(ctx, inventoryID, true)
}

// CreditLines is the read-only variant used by previews.
func (r *repository) CreditLines(ctx context.Context, inventoryID uuid.UUID) ([]CreditLine, error) {
	return r.creditLines(ctx, inventoryID, false)
}

func (r *repository) creditLines(ctx context.Context, inventoryID uuid.UUID, forUpdate bool) ([]CreditLine, error) {
	query := r.db.WithContext(ctx).
		Table("inventory_items").
		Select("inventory_items.*, cards.price_cents AS denomination_cents, cards.id AS card_ref").
		Joins("JOIN cards ON cards.id = inventory_items.card_id").
		Where("inventory_items.inventory_id = ?", inventoryID).
		Where("cards.set_name = ?", models.CreditSetName).
		Order("cards.price_cents DESC").
		Order("inventory_items.id ASC")
	if forUpdate {
		query = dbpkg.ForUpdateOf(query, "inventory_items")
	}

	var rows []struct {
		models.InventoryItem
		DenominationCents int64     `gorm:"column:denomination_cents"`
		CardRef           uuid.UUID `gorm:"column:card_ref"`
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]CreditLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, CreditLine{
			Line:              row.InventoryItem,
			CardID:            row.CardRef,
			DenominationCents: row.DenominationCents,
		})
	}
	return out, nil
}

// AddQuantity increments the (container, card) line by delta, creating the
// line when it does not exist yet. A non-empty seed stamps its verification
// metadata on both branches: verification travels with the incoming units,
// not with the line they merge into. The caller must hold the container lock.
func (r *repository) AddQuantity(ctx context.Context, inventoryID, cardID uuid.UUID, delta int64, seed LineSeed) (*models.InventoryItem, error) {
	if delta <= 0 {
		return nil, fmt.Errorf("inventory: delta must be positive, got %d", delta)
	}

	var line models.InventoryItem
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("inventory_id = ? AND card_id = ?", inventoryID, cardID).
		First(&line).Error
	if err == nil {
		updates := map[string]any{"quantity": gorm.Expr("quantity + ?", delta)}
		if seed.VerificationStatus != "" {
			updates["verification_status"] = seed.VerificationStatus
			updates["verified_at"] = seed.VerifiedAt
			updates["verified_by"] = seed.VerifiedBy
		}
		if err := r.db.WithContext(ctx).
			Model(&line).
			UpdateColumns(updates).Error; err != nil {
			return nil, err
		}
		line.Quantity += delta
		if seed.VerificationStatus != "" {
			line.VerificationStatus = seed.VerificationStatus
			line.VerifiedAt = seed.VerifiedAt
			line.VerifiedBy = seed.VerifiedBy
		}
		return &line, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.InventoryItem{
		InventoryID: inventoryID,
		CardID:      cardID,
		Quantity:    delta,
	}
	if seed.VerificationStatus != "" {
		created.VerificationStatus = seed.VerificationStatus
		created.VerifiedAt = seed.VerifiedAt
		created.VerifiedBy = seed.VerifiedBy
	}
	if createErr := r.db.WithContext(ctx).Create(created).Error; createErr != nil {
		return nil, createErr
	}
	return created, nil
}

// DecrementQuantity subtracts delta from the line, guarded so quantity never
// goes negative even if the caller's snapshot is stale.
func (r *repository) DecrementQuantity(ctx context.Context, lineID uuid.UUID, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("inventory: delta must be positive, got %d", delta)
	}
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ? AND quantity >= ?", lineID, delta).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrQuantityExceeded
	}
	return nil
}

func (r *repository) AppendTransferLog(ctx context.Context, log *models.InventoryTransferLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// DeleteTransferLogsBefore prunes audit rows older than the cutoff.
func (r *repository) DeleteTransferLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.InventoryTransferLog{})
	return res.RowsAffected, res.Error
}
