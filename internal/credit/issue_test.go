package credit

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/cardhaven/cardhaven-backend/internal/catalog"
	"github.com/cardhaven/cardhaven-backend/pkg/config"
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
	pkgerrors "github.com/cardhaven/cardhaven-backend/pkg/errors"
)

func TestIssueCreatesLineAndLedger(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	admin := seedUser(t, conn, enums.UserRoleAdmin)
	target := seedUser(t, conn, enums.UserRoleUser)

	result, err := svc.Issue(ctx, IssueInput{
		AdminID:           admin,
		UserID:            target,
		DenominationCents: 10000,
		Units:             5,
		IdempotencyKey:    "issue-1",
		Notes:             "welcome bonus",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if result.TotalCents != 50000 || result.Units != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}

	line := creditLineFor(t, conn, target, 10000)
	if line.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", line.Quantity)
	}
	if line.VerificationStatus != enums.VerificationStatusVerified {
		t.Fatalf("credit lines must be verified, got %q", line.VerificationStatus)
	}

	var card models.Card
	if err := conn.First(&card, "id = ?", result.CardID).Error; err != nil {
		t.Fatalf("load card: %v", err)
	}
	if card.SetName != models.CreditSetName || card.Name != catalog.CreditCardName(10000) {
		t.Fatalf("unexpected card: %+v", card)
	}

	entries := ledgerEntries(t, conn, target)
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.AmountCents != 50000 || entry.Kind != enums.LedgerKindIssue || entry.Direction != enums.LedgerDirectionCredit {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.AdminID == nil || *entry.AdminID != admin {
		t.Fatalf("entry must record the acting admin")
	}
	if entry.IdempotencyKey == nil || *entry.IdempotencyKey != "issue-1" {
		t.Fatalf("entry must record the idempotency key")
	}

	if got := countOutboxEvents(t, conn, enums.EventCreditIssued); got != 1 {
		t.Fatalf("expected 1 outbox event, got %d", got)
	}
}

func TestIssueMergesExistingLine(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	admin := seedUser(t, conn, enums.UserRoleAdmin)
	target := seedUser(t, conn, enums.UserRoleUser)

	for i, key := range []string{"grant-a", "grant-b"} {
		if _, err := svc.Issue(ctx, IssueInput{
			AdminID:           admin,
			UserID:            target,
			DenominationCents: 1000,
			Units:             int64(i + 2),
			IdempotencyKey:    key,
		}); err != nil {
			t.Fatalf("issue %s: %v", key, err)
		}
	}

	line := creditLineFor(t, conn, target, 1000)
	if line.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", line.Quantity)
	}

	var cardCount int64
	if err := conn.Model(&models.Card{}).Where("set_name = ?", models.CreditSetName).Count(&cardCount).Error; err != nil {
		t.Fatalf("count cards: %v", err)
	}
	if cardCount != 1 {
		t.Fatalf("expected a single denomination card, got %d", cardCount)
	}
}

func TestIssueRejectsNonAdmin(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	actor := seedUser(t, conn, enums.UserRoleUser)
	target := seedUser(t, conn, enums.UserRoleUser)

	_, err := svc.Issue(ctx, IssueInput{AdminID: actor, UserID: target, DenominationCents: 1000, Units: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestIssueValidation(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	admin := seedUser(t, conn, enums.UserRoleAdmin)
	target := seedUser(t, conn, enums.UserRoleUser)

	cases := []struct {
		name  string
		input IssueInput
		code  pkgerrors.Code
	}{
		{
			name:  "zero units",
			input: IssueInput{AdminID: admin, UserID: target, DenominationCents: 1000, Units: 0},
			code:  pkgerrors.CodeInvalidQuantity,
		},
		{
			name:  "negative units",
			input: IssueInput{AdminID: admin, UserID: target, DenominationCents: 1000, Units: -3},
			code:  pkgerrors.CodeInvalidQuantity,
		},
		{
			name:  "negative denomination",
			input: IssueInput{AdminID: admin, UserID: target, DenominationCents: -1, Units: 1},
			code:  pkgerrors.CodeInvalidAmount,
		},
		{
			name:  "overflowing grant value",
			input: IssueInput{AdminID: admin, UserID: target, DenominationCents: math.MaxInt64 / 2, Units: 3},
			code:  pkgerrors.CodeInvalidAmount,
		},
		{
			name:  "missing target",
			input: IssueInput{AdminID: admin, UserID: uuid.New(), DenominationCents: 1000, Units: 1},
			code:  pkgerrors.CodeUserNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Issue(ctx, tc.input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestIssueFeatureDisabled(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, config.FeatureFlagsConfig{CreditEnabled: false, TransfersEnabled: true})
	ctx := context.Background()
	admin := seedUser(t, conn, enums.UserRoleAdmin)
	target := seedUser(t, conn, enums.UserRoleUser)

	_, err := svc.Issue(ctx, IssueInput{AdminID: admin, UserID: target, DenominationCents: 1000, Units: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeFeatureDisabled {
		t.Fatalf("expected FeatureDisabled, got %v", err)
	}
}

func TestIssueIdempotencyReplay(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	admin := seedUser(t, conn, enums.UserRoleAdmin)
	target := seedUser(t, conn, enums.UserRoleUser)

	input := IssueInput{
		AdminID:           admin,
		UserID:            target,
		DenominationCents: 10000,
		Units:             5,
		IdempotencyKey:    "k1",
	}
	if _, err := svc.Issue(ctx, input); err != nil {
		t.Fatalf("first issue: %v", err)
	}

	_, err := svc.Issue(ctx, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeIdempotentReplay {
		t.Fatalf("expected IdempotentReplay, got %v", err)
	}

	line := creditLineFor(t, conn, target, 10000)
	if line.Quantity != 5 {
		t.Fatalf("replay must not mutate, got quantity %d", line.Quantity)
	}
	if entries := ledgerEntries(t, conn, target); len(entries) != 1 {
		t.Fatalf("replay must not append ledger entries, got %d", len(entries))
	}
}
