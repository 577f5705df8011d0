package credit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/internal/inventory"
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
	pkgerrors "github.com/cardhaven/cardhaven-backend/pkg/errors"
	"github.com/cardhaven/cardhaven-backend/pkg/outbox"
	"github.com/cardhaven/cardhaven-backend/pkg/outbox/payloads"
)

// Transfer moves quantity of one inventory line from one user to another.
// Both containers are locked in ascending user-id order before the line lock;
// that total order is what prevents deadlock between opposite transfers of
// the same user pair.
func (s *service) Transfer(ctx context.Context, input TransferInput) (result *TransferResult, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, opTransfer, start, err) }()
	ctx = s.logg.WithOperation(ctx, opTransfer)

	if !s.flags.TransfersEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeFeatureDisabled, "transfers are disabled")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be positive")
	}
	if input.FromUserID == input.ToUserID {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransfer, "cannot transfer to yourself")
	}
	if verr := s.validate.Struct(input); verr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "invalid transfer input")
	}
	if exists, uerr := s.usersRepo.Exists(ctx, input.ToUserID); uerr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, uerr, "checking destination user")
	} else if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeUserNotFound, "destination user not found")
	}

	err = s.tx.RunInTx(ctx, opTransfer, func(tx *gorm.DB) error {
		if gerr := s.guard.WithTx(tx).Check(ctx, input.IdempotencyKey, enums.IdempotencyScopeTransfer); gerr != nil {
			return gerr
		}

		inv := s.inv.WithTx(tx)
		containers, lerr := inv.LockContainersForUsers(ctx, []uuid.UUID{input.FromUserID, input.ToUserID})
		if lerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, lerr, "locking inventories")
		}
		source := containers[input.FromUserID]
		destination := containers[input.ToUserID]

		line, flerr := inv.FindLineByID(ctx, input.LineID, true)
		if flerr != nil {
			if errors.Is(flerr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeItemNotFound, "inventory line not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, flerr, "locking source line")
		}
		if line.InventoryID != source.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "line does not belong to sender")
		}

		card, cerr := s.cards.WithTx(tx).FindByID(ctx, line.CardID)
		if cerr != nil {
			if errors.Is(cerr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeCardNotFound, "card not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, cerr, "loading card")
		}

		isCredit := card.IsCredit()
		if !isCredit {
			if line.ListedForSale {
				return pkgerrors.New(pkgerrors.CodeItemListed, "item is listed for sale")
			}
			if line.VerificationStatus != enums.VerificationStatusVerified {
				return pkgerrors.New(pkgerrors.CodeNotVerified, "item is not verified")
			}
		}
		if input.Quantity > line.Quantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientQuantity, "not enough quantity to transfer").
				WithDetails(map[string]any{"held": line.Quantity, "requested": input.Quantity})
		}

		if derr := inv.DecrementQuantity(ctx, line.ID, input.Quantity); derr != nil {
			if errors.Is(derr, inventory.ErrQuantityExceeded) {
				return pkgerrors.New(pkgerrors.CodeInsufficientQuantity, "not enough quantity to transfer")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, derr, "decrementing source line")
		}

		// Verification travels with ownership on ordinary items; credit
		// lines are always verified.
		seed := inventory.LineSeed{
			VerificationStatus: line.VerificationStatus,
			VerifiedAt:         line.VerifiedAt,
			VerifiedBy:         line.VerifiedBy,
		}
		if isCredit {
			seed = creditLineSeed(time.Now())
		}
		destLine, merr := inv.AddQuantity(ctx, destination.ID, card.ID, input.Quantity, seed)
		if merr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, merr, "merging destination line")
		}

		if isCredit {
			value := card.PriceCents * input.Quantity
			out := &models.CreditLedgerEntry{
				UserID:        input.FromUserID,
				AmountCents:   value,
				Direction:     enums.LedgerDirectionDebit,
				Kind:          enums.LedgerKindTransferOut,
				RelatedItemID: &line.ID,
			}
			in := &models.CreditLedgerEntry{
				UserID:        input.ToUserID,
				AmountCents:   value,
				Direction:     enums.LedgerDirectionCredit,
				Kind:          enums.LedgerKindTransferIn,
				RelatedItemID: &destLine.ID,
			}
			if input.IdempotencyKey != "" {
				outKey := input.IdempotencyKey + ":out"
				inKey := input.IdempotencyKey + ":in"
				out.IdempotencyKey = &outKey
				in.IdempotencyKey = &inKey
			}
			entriesRepo := s.entries.WithTx(tx)
			if value > 0 {
				for _, entry := range []*models.CreditLedgerEntry{out, in} {
					if eerr := entriesRepo.Create(ctx, entry); eerr != nil {
						return pkgerrors.Wrap(pkgerrors.CodeInternal, eerr, "appending transfer ledger entry")
					}
				}
			}
		}

		logRow := &models.InventoryTransferLog{
			FromUserID: input.FromUserID,
			ToUserID:   input.ToUserID,
			CardID:     card.ID,
			Quantity:   input.Quantity,
			IsCredit:   isCredit,
		}
		if input.IdempotencyKey != "" {
			logRow.IdempotencyKey = &input.IdempotencyKey
		}
		// Audit write is best effort: a failure is logged, not propagated,
		// so it never aborts the transfer it describes.
		if aerr := inv.AppendTransferLog(ctx, logRow); aerr != nil {
			warnCtx := s.logg.WithFields(ctx, map[string]any{
				"from_user_id": input.FromUserID.String(),
				"to_user_id":   input.ToUserID.String(),
				"error":        aerr.Error(),
			})
			s.logg.Warn(warnCtx, "transfer audit log write failed")
		}

		if oerr := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryTransferred,
			AggregateType: enums.AggregateTransfer,
			AggregateID:   logRow.ID,
			Actor:         &outbox.ActorRef{UserID: input.FromUserID},
			Data: payloads.InventoryTransferred{
				TransferLogID: logRow.ID,
				FromUserID:    input.FromUserID,
				ToUserID:      input.ToUserID,
				CardID:        card.ID,
				Quantity:      input.Quantity,
				IsCredit:      isCredit,
			},
			Version: 1,
		}); oerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, oerr, "queueing transfer event")
		}

		result = &TransferResult{
			FromUserID: input.FromUserID,
			ToUserID:   input.ToUserID,
			CardID:     card.ID,
			Quantity:   input.Quantity,
			IsCredit:   isCredit,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"from_user_id": input.FromUserID.String(),
		"to_user_id":   input.ToUserID.String(),
		"quantity":     input.Quantity,
		"is_credit":    result.IsCredit,
	})
	s.logg.Info(logCtx, "inventory transferred")
	return result, nil
}
