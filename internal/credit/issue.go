package credit

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
	pkgerrors "github.com/cardhaven/cardhaven-backend/pkg/errors"
	"github.com/cardhaven/cardhaven-backend/pkg/outbox"
	"github.com/cardhaven/cardhaven-backend/pkg/outbox/payloads"
)

// Issue grants units of one credit denomination to a user. The denomination
// card is created lazily on first issue; the user's credit line is merged or
// created under the container lock.
func (s *service) Issue(ctx context.Context, input IssueInput) (result *IssueResult, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, opIssue, start, err) }()
	ctx = s.logg.WithOperation(ctx, opIssue)

	if !s.flags.CreditEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeFeatureDisabled, "credit is disabled")
	}
	if input.Units <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "units must be positive")
	}
	if input.DenominationCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "denomination must be non-negative")
	}
	if input.DenominationCents > 0 && input.Units > math.MaxInt64/input.DenominationCents {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidAmount, "grant value exceeds the ledger amount range").
			WithDetails(map[string]any{"denomination_cents": input.DenominationCents, "units": input.Units})
	}
	if verr := s.validate.Struct(input); verr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, verr, "invalid issue input")
	}

	admin, aerr := s.usersRepo.FindByID(ctx, input.AdminID)
	if aerr != nil {
		if errors.Is(aerr, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "issuing credit requires an admin")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, aerr, "loading acting admin")
	}
	if !admin.Role.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "issuing credit requires an admin")
	}
	if exists, uerr := s.usersRepo.Exists(ctx, input.UserID); uerr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, uerr, "checking target user")
	} else if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeUserNotFound, "target user not found")
	}

	totalCents := input.DenominationCents * input.Units

	err = s.tx.RunInTx(ctx, opIssue, func(tx *gorm.DB) error {
		if gerr := s.guard.WithTx(tx).Check(ctx, input.IdempotencyKey, enums.IdempotencyScopeIssue); gerr != nil {
			return gerr
		}

		card, cerr := s.cards.WithTx(tx).EnsureCreditCard(ctx, input.DenominationCents)
		if cerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, cerr, "resolving credit denomination")
		}

		inv := s.inv.WithTx(tx)
		containers, lerr := inv.LockContainersForUsers(ctx, []uuid.UUID{input.UserID})
		if lerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, lerr, "locking target inventory")
		}
		container := containers[input.UserID]

		now := time.Now()
		line, merr := inv.AddQuantity(ctx, container.ID, card.ID, input.Units, creditLineSeed(now))
		if merr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, merr, "merging credit line")
		}

		entry := &models.CreditLedgerEntry{
			UserID:        input.UserID,
			Direction:     enums.LedgerDirectionCredit,
			Kind:          enums.LedgerKindIssue,
			AdminID:       &input.AdminID,
			RelatedItemID: &line.ID,
		}
		if input.IdempotencyKey != "" {
			entry.IdempotencyKey = &input.IdempotencyKey
		}
		if input.Notes != "" {
			entry.Notes = &input.Notes
		}
		// A zero denomination moves no value, so nothing is ledgered.
		if totalCents > 0 {
			entry.AmountCents = totalCents
			if eerr := s.entries.WithTx(tx).Create(ctx, entry); eerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, eerr, "appending issue ledger entry")
			}
			if oerr := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCreditIssued,
				AggregateType: enums.AggregateCreditLedgerEntry,
				AggregateID:   entry.ID,
				Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: string(enums.UserRoleAdmin)},
				Data: payloads.CreditIssued{
					LedgerEntryID:     entry.ID,
					UserID:            input.UserID,
					AdminID:           input.AdminID,
					CardID:            card.ID,
					DenominationCents: input.DenominationCents,
					Units:             input.Units,
					AmountCents:       totalCents,
				},
				Version: 1,
			}); oerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, oerr, "queueing issue event")
			}
		}

		result = &IssueResult{
			UserID:            input.UserID,
			CardID:            card.ID,
			InventoryLineID:   line.ID,
			DenominationCents: input.DenominationCents,
			Units:             input.Units,
			TotalCents:        totalCents,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":     input.UserID.String(),
		"admin_id":    input.AdminID.String(),
		"total_cents": totalCents,
		"units":       input.Units,
	})
	s.logg.Info(logCtx, "credit issued")
	return result, nil
}
