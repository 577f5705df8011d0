// Package payloads defines the data section of each outbox envelope emitted
// by the credit engine. Field names are part of the published contract.
package payloads

import "github.com/google/uuid"

// CreditIssued is emitted once per successful grant.
type CreditIssued struct {
	LedgerEntryID     uuid.UUID `json:"ledgerEntryId"`
	UserID            uuid.UUID `json:"userId"`
	AdminID           uuid.UUID `json:"adminId"`
	CardID            uuid.UUID `json:"cardId"`
	DenominationCents int64     `json:"denominationCents"`
	Units             int64     `json:"units"`
	AmountCents       int64     `json:"amountCents"`
}

// InventoryTransferred is emitted once per successful transfer.
type InventoryTransferred struct {
	TransferLogID uuid.UUID `json:"transferLogId"`
	FromUserID    uuid.UUID `json:"fromUserId"`
	ToUserID      uuid.UUID `json:"toUserId"`
	CardID        uuid.UUID `json:"cardId"`
	Quantity      int64     `json:"quantity"`
	IsCredit      bool      `json:"isCredit"`
}

// CreditRedeemed is emitted once per successful redemption, covering the
// whole breakdown rather than one event per denomination.
type CreditRedeemed struct {
	UserID         uuid.UUID      `json:"userId"`
	RelatedOrderID *uuid.UUID     `json:"relatedOrderId,omitempty"`
	TotalCents     int64          `json:"totalCents"`
	Lines          []RedeemedLine `json:"lines"`
}

// RedeemedLine is one denomination consumed during a redemption.
type RedeemedLine struct {
	CardID            uuid.UUID `json:"cardId"`
	DenominationCents int64     `json:"denominationCents"`
	Units             int64     `json:"units"`
	AmountCents       int64     `json:"amountCents"`
}
