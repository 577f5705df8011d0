package enums

import "fmt"

// LedgerDirection maps to the direction column of credit_ledger_entries.
type LedgerDirection string

const (
	LedgerDirectionCredit LedgerDirection = "credit"
	LedgerDirectionDebit  LedgerDirection = "debit"
)

var validLedgerDirections = []LedgerDirection{
	LedgerDirectionCredit,
	LedgerDirectionDebit,
}

// IsValid reports whether the value matches the canonical direction enum.
func (d LedgerDirection) IsValid() bool {
	for _, candidate := range validLedgerDirections {
		if candidate == d {
			return true
		}
	}
	return false
}

// LedgerKind maps to the kind column of credit_ledger_entries.
// The engine writes issue/redeem/transfer_in/transfer_out; revoke and adjust
// are reserved for admin tooling outside this engine.
type LedgerKind string

const (
	LedgerKindIssue       LedgerKind = "issue"
	LedgerKindRedeem      LedgerKind = "redeem"
	LedgerKindTransferIn  LedgerKind = "transfer_in"
	LedgerKindTransferOut LedgerKind = "transfer_out"
	LedgerKindRevoke      LedgerKind = "revoke"
	LedgerKindAdjust      LedgerKind = "adjust"
)

var validLedgerKinds = []LedgerKind{
	LedgerKindIssue,
	LedgerKindRedeem,
	LedgerKindTransferIn,
	LedgerKindTransferOut,
	LedgerKindRevoke,
	LedgerKindAdjust,
}

// IsValid reports whether the value matches the canonical kind enum.
func (k LedgerKind) IsValid() bool {
	for _, candidate := range validLedgerKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseLedgerKind converts raw input into LedgerKind.
func ParseLedgerKind(value string) (LedgerKind, error) {
	for _, candidate := range validLedgerKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger kind %q", value)
}
