package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/internal/inventory"
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
	pkgerrors "github.com/cardhaven/cardhaven-backend/pkg/errors"
	"github.com/cardhaven/cardhaven-backend/pkg/outbox"
	"github.com/cardhaven/cardhaven-backend/pkg/outbox/payloads"
)

// ApplyCredits redeems held credit against an amount due. Auto mode walks the
// user's credit lines by denomination descending (line id ascending on ties);
// manual mode considers only the requested denominations. With Preview set
// the computation runs read-only and returns the same result shape.
func (s *service) ApplyCredits(ctx context.Context, input RedeemInput) (result *RedeemResult, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, opRedeem, start, err) }()
	ctx = s.logg.WithOperation(ctx, opRedeem)

	if !s.flags.CreditEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeFeatureDisabled, "credit is disabled")
	}
	if input.AmountDueCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "amount due must be non-negative")
	}
	if verr := s.validate.Struct(input); verr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "invalid redeem input")
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown redeem mode %q", input.Mode))
	}
	if input.Mode == RedeemModeManual && len(input.Breakdown) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual mode requires a breakdown")
	}
	if exists, uerr := s.usersRepo.Exists(ctx, input.UserID); uerr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, uerr, "checking user")
	} else if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeUserNotFound, "user not found")
	}

	if input.Preview {
		return s.previewRedeem(ctx, input)
	}

	err = s.tx.RunInTx(ctx, opRedeem, func(tx *gorm.DB) error {
		if gerr := s.guard.WithTx(tx).Check(ctx, input.IdempotencyKey, enums.IdempotencyScopeRedeem); gerr != nil {
			return gerr
		}

		inv := s.inv.WithTx(tx)
		container, cerr := inv.EnsureContainer(ctx, input.UserID)
		if cerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, cerr, "resolving inventory")
		}
		lines, llerr := inv.LockCreditLines(ctx, container.ID)
		if llerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, llerr, "locking credit lines")
		}

		applied := computeApplication(lines, input.AmountDueCents, input.Mode, input.Breakdown)

		entriesRepo := s.entries.WithTx(tx)
		eventLines := make([]payloads.RedeemedLine, 0, len(applied.Breakdown))
		for _, line := range applied.Breakdown {
			if derr := inv.DecrementQuantity(ctx, line.InventoryLineID, line.Units); derr != nil {
				if errors.Is(derr, inventory.ErrQuantityExceeded) {
					return pkgerrors.New(pkgerrors.CodeInsufficientQuantity, "credit line changed underneath redemption")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, derr, "decrementing credit line")
			}

			lineID := line.InventoryLineID
			entry := &models.CreditLedgerEntry{
				UserID:         input.UserID,
				AmountCents:    line.ValueCents,
				Direction:      enums.LedgerDirectionDebit,
				Kind:           enums.LedgerKindRedeem,
				RelatedOrderID: input.RelatedOrderID,
				RelatedItemID:  &lineID,
			}
			if input.IdempotencyKey != "" {
				// Per-denomination sub-key keeps each partial application
				// individually traceable and replay-safe.
				subKey := fmt.Sprintf("%s:%d", input.IdempotencyKey, line.DenominationCents)
				entry.IdempotencyKey = &subKey
			}
			if eerr := entriesRepo.Create(ctx, entry); eerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, eerr, "appending redeem ledger entry")
			}

			eventLines = append(eventLines, payloads.RedeemedLine{
				CardID:            line.CardID,
				DenominationCents: line.DenominationCents,
				Units:             line.Units,
				AmountCents:       line.ValueCents,
			})
		}

		if applied.AppliedCents > 0 {
			if oerr := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCreditRedeemed,
				AggregateType: enums.AggregateInventoryItem,
				AggregateID:   container.ID,
				Actor:         &outbox.ActorRef{UserID: input.UserID},
				Data: payloads.CreditRedeemed{
					UserID:         input.UserID,
					RelatedOrderID: input.RelatedOrderID,
					TotalCents:     applied.AppliedCents,
					Lines:          eventLines,
				},
				Version: 1,
			}); oerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, oerr, "queueing redeem event")
			}
		}

		result = applied
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":         input.UserID.String(),
		"applied_cents":   result.AppliedCents,
		"remaining_cents": result.RemainingCents,
	})
	s.logg.Info(logCtx, "credit redeemed")
	return result, nil
}

// previewRedeem computes the application without locks, mutation, ledger
// writes, or idempotency checks.
func (s *service) previewRedeem(ctx context.Context, input RedeemInput) (*RedeemResult, error) {
	container, err := s.inv.FindContainerByUser(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &RedeemResult{
				RemainingCents: input.AmountDueCents,
				Breakdown:      []AppliedLine{},
			}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving inventory")
	}
	lines, err := s.inv.CreditLines(ctx, container.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading credit lines")
	}
	return computeApplication(lines, input.AmountDueCents, input.Mode, input.Breakdown), nil
}

// computeApplication walks lines already ordered by denomination descending,
// id ascending, and consumes whole units while value remains. Both preview
// and commit run this exact function over lines in this exact order.
func computeApplication(lines []inventory.CreditLine, amountDueCents int64, mode RedeemMode, breakdown []BreakdownRequest) *RedeemResult {
	requested := map[string]int64{}
	if mode == RedeemModeManual {
		for _, req := range breakdown {
			requested[req.CardID.String()] += req.Units
		}
	}

	remaining := amountDueCents
	out := &RedeemResult{Breakdown: []AppliedLine{}}
	for _, line := range lines {
		if remaining == 0 {
			break
		}
		if line.DenominationCents <= 0 || line.Line.Quantity <= 0 {
			continue
		}

		maxUnits := min64(line.Line.Quantity, remaining/line.DenominationCents)
		if mode == RedeemModeManual {
			maxUnits = min64(maxUnits, requested[line.CardID.String()])
		}
		if maxUnits <= 0 {
			continue
		}
		if mode == RedeemModeManual {
			requested[line.CardID.String()] -= maxUnits
		}

		value := maxUnits * line.DenominationCents
		remaining -= value
		out.Breakdown = append(out.Breakdown, AppliedLine{
			CardID:            line.CardID,
			InventoryLineID:   line.Line.ID,
			DenominationCents: line.DenominationCents,
			Units:             maxUnits,
			ValueCents:        value,
		})
	}

	out.AppliedCents = amountDueCents - remaining
	out.RemainingCents = remaining
	return out
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
