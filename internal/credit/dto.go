package credit

import "github.com/google/uuid"

// RedeemMode selects how a redemption picks denominations.
type RedeemMode string

const (
	RedeemModeAuto   RedeemMode = "auto"
	RedeemModeManual RedeemMode = "manual"
)

// IsValid reports whether the mode is recognized.
func (m RedeemMode) IsValid() bool {
	return m == RedeemModeAuto || m == RedeemModeManual
}

// IssueInput carries an admin grant of credit units to a user.
type IssueInput struct {
	AdminID           uuid.UUID `json:"admin_id" validate:"required"`
	UserID            uuid.UUID `json:"user_id" validate:"required"`
	DenominationCents int64     `json:"denomination_cents"`
	Units             int64     `json:"units"`
	IdempotencyKey    string    `json:"idempotency_key"`
	Notes             string    `json:"notes"`
}

// IssueResult reports what a grant changed.
type IssueResult struct {
	UserID            uuid.UUID `json:"user_id"`
	CardID            uuid.UUID `json:"card_id"`
	InventoryLineID   uuid.UUID `json:"inventory_line_id"`
	DenominationCents int64     `json:"denomination_cents"`
	Units             int64     `json:"units"`
	TotalCents        int64     `json:"total_cents"`
}

// TransferInput carries a movement of one inventory line between users.
type TransferInput struct {
	FromUserID     uuid.UUID `json:"from_user_id" validate:"required"`
	ToUserID       uuid.UUID `json:"to_user_id" validate:"required"`
	LineID         uuid.UUID `json:"line_id" validate:"required"`
	Quantity       int64     `json:"quantity"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// TransferResult reports what a transfer moved.
type TransferResult struct {
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	CardID     uuid.UUID `json:"card_id"`
	Quantity   int64     `json:"quantity"`
	IsCredit   bool      `json:"is_credit"`
}

// BreakdownRequest names one denomination and unit count for manual redemption.
type BreakdownRequest struct {
	CardID uuid.UUID `json:"card_id" validate:"required"`
	Units  int64     `json:"units" validate:"gt=0"`
}

// RedeemInput carries a redemption of held credit against an amount due.
type RedeemInput struct {
	UserID         uuid.UUID          `json:"user_id" validate:"required"`
	AmountDueCents int64              `json:"amount_due_cents"`
	Mode           RedeemMode         `json:"mode" validate:"required"`
	Breakdown      []BreakdownRequest `json:"breakdown" validate:"dive"`
	IdempotencyKey string             `json:"idempotency_key"`
	RelatedOrderID *uuid.UUID         `json:"related_order_id"`
	Preview        bool               `json:"preview"`
}

// AppliedLine is one denomination consumed (or previewed) by a redemption.
type AppliedLine struct {
	CardID            uuid.UUID `json:"card_id"`
	InventoryLineID   uuid.UUID `json:"inventory_line_id"`
	DenominationCents int64     `json:"denomination_cents"`
	Units             int64     `json:"units"`
	ValueCents        int64     `json:"value_cents"`
}

// RedeemResult reports the applied value and what remains due.
type RedeemResult struct {
	AppliedCents   int64         `json:"applied_cents"`
	RemainingCents int64         `json:"remaining_cents"`
	Breakdown      []AppliedLine `json:"breakdown"`
}
