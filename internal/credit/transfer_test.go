package credit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/pkg/config"
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
	pkgerrors "github.com/cardhaven/cardhaven-backend/pkg/errors"
)

func seedLineForCard(t *testing.T, conn *gorm.DB, userID, cardID uuid.UUID, qty int64, status enums.VerificationStatus, verifiedBy *uuid.UUID) uuid.UUID {
	t.Helper()
	container := models.UserInventory{UserID: userID}
	if err := conn.Where("user_id = ?", userID).FirstOrCreate(&container).Error; err != nil {
		t.Fatalf("seed container: %v", err)
	}
	line := models.InventoryItem{
		InventoryID:        container.ID,
		CardID:             cardID,
		Quantity:           qty,
		VerificationStatus: status,
		VerifiedBy:         verifiedBy,
	}
	if status == enums.VerificationStatusVerified {
		now := time.Now().UTC()
		line.VerifiedAt = &now
	}
	if err := conn.Create(&line).Error; err != nil {
		t.Fatalf("seed line: %v", err)
	}
	return line.ID
}

func TestTransferCreditMovesValueBothWays(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	admin := seedUser(t, conn, enums.UserRoleAdmin)
	alice := seedUser(t, conn, enums.UserRoleUser)
	bob := seedUser(t, conn, enums.UserRoleUser)

	if _, err := svc.Issue(ctx, IssueInput{
		AdminID: admin, UserID: alice, DenominationCents: 10000, Units: 5, IdempotencyKey: "k1",
	}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	sourceLine := creditLineFor(t, conn, alice, 10000)

	result, err := svc.Transfer(ctx, TransferInput{
		FromUserID:     alice,
		ToUserID:       bob,
		LineID:         sourceLine.ID,
		Quantity:       2,
		IdempotencyKey: "k2",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !result.IsCredit || result.Quantity != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if got := lineQuantity(t, conn, sourceLine.ID); got != 3 {
		t.Fatalf("expected source quantity 3, got %d", got)
	}
	destLine := creditLineFor(t, conn, bob, 10000)
	if destLine.Quantity != 2 {
		t.Fatalf("expected destination quantity 2, got %d", destLine.Quantity)
	}

	aliceEntries := ledgerEntries(t, conn, alice)
	bobEntries := ledgerEntries(t, conn, bob)
	var out, in *models.CreditLedgerEntry
	for i := range aliceEntries {
		if aliceEntries[i].Kind == enums.LedgerKindTransferOut {
			out = &aliceEntries[i]
		}
	}
	for i := range bobEntries {
		if bobEntries[i].Kind == enums.LedgerKindTransferIn {
			in = &bobEntries[i]
		}
	}
	if out == nil || in == nil {
		t.Fatal("expected transfer_out and transfer_in entries")
	}
	if out.AmountCents != 20000 || in.AmountCents != 20000 {
		t.Fatalf("expected equal and opposite 20000, got out=%d in=%d", out.AmountCents, in.AmountCents)
	}
	if out.Direction != enums.LedgerDirectionDebit || in.Direction != enums.LedgerDirectionCredit {
		t.Fatalf("unexpected directions: out=%s in=%s", out.Direction, in.Direction)
	}

	var logRow models.InventoryTransferLog
	if err := conn.First(&logRow, "from_user_id = ?", alice).Error; err != nil {
		t.Fatalf("load transfer log: %v", err)
	}
	if logRow.ToUserID != bob || logRow.Quantity != 2 || !logRow.IsCredit {
		t.Fatalf("unexpected transfer log: %+v", logRow)
	}
	if got := countOutboxEvents(t, conn, enums.EventInventoryTransferred); got != 1 {
		t.Fatalf("expected 1 outbox event, got %d", got)
	}
}

func TestTransferOrdinaryItemCarriesVerification(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	alice := seedUser(t, conn, enums.UserRoleUser)
	bob := seedUser(t, conn, enums.UserRoleUser)
	lineID, cardID := seedOrdinaryLine(t, conn, alice, 4, enums.VerificationStatusVerified, false)

	result, err := svc.Transfer(ctx, TransferInput{
		FromUserID: alice, ToUserID: bob, LineID: lineID, Quantity: 3,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if result.IsCredit {
		t.Fatal("ordinary item must not be flagged as credit")
	}

	if got := lineQuantity(t, conn, lineID); got != 1 {
		t.Fatalf("expected source quantity 1, got %d", got)
	}

	var container models.UserInventory
	if err := conn.First(&container, "user_id = ?", bob).Error; err != nil {
		t.Fatalf("load container: %v", err)
	}
	var destLine models.InventoryItem
	if err := conn.First(&destLine, "inventory_id = ? AND card_id = ?", container.ID, cardID).Error; err != nil {
		t.Fatalf("load destination line: %v", err)
	}
	if destLine.Quantity != 3 {
		t.Fatalf("expected destination quantity 3, got %d", destLine.Quantity)
	}
	if destLine.VerificationStatus != enums.VerificationStatusVerified {
		t.Fatalf("verification must travel with ownership, got %q", destLine.VerificationStatus)
	}

	// No value moved, so no ledger entries for either side.
	if entries := ledgerEntries(t, conn, alice); len(entries) != 0 {
		t.Fatalf("expected no ledger entries, got %d", len(entries))
	}
}

func TestTransferMergeStampsVerificationOnExistingLine(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	alice := seedUser(t, conn, enums.UserRoleUser)
	bob := seedUser(t, conn, enums.UserRoleUser)
	verifier := seedUser(t, conn, enums.UserRoleAdmin)

	card := models.Card{Name: "Shadow Wing", SetName: "BASE", PriceCents: 12000}
	if err := conn.Create(&card).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}
	sourceID := seedLineForCard(t, conn, alice, card.ID, 3, enums.VerificationStatusVerified, &verifier)
	destID := seedLineForCard(t, conn, bob, card.ID, 2, enums.VerificationStatusUnverified, nil)

	if _, err := svc.Transfer(ctx, TransferInput{
		FromUserID: alice, ToUserID: bob, LineID: sourceID, Quantity: 3,
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	var dest models.InventoryItem
	if err := conn.First(&dest, "id = ?", destID).Error; err != nil {
		t.Fatalf("reload destination: %v", err)
	}
	if dest.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", dest.Quantity)
	}
	if dest.VerificationStatus != enums.VerificationStatusVerified {
		t.Fatalf("verification must travel with ownership on merge, got %q", dest.VerificationStatus)
	}
	if dest.VerifiedBy == nil || *dest.VerifiedBy != verifier {
		t.Fatalf("expected source verifier on merged line, got %v", dest.VerifiedBy)
	}
}

func TestTransferCreditMergesIntoExistingLine(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	admin := seedUser(t, conn, enums.UserRoleAdmin)
	alice := seedUser(t, conn, enums.UserRoleUser)
	bob := seedUser(t, conn, enums.UserRoleUser)

	if _, err := svc.Issue(ctx, IssueInput{
		AdminID: admin, UserID: alice, DenominationCents: 10000, Units: 5, IdempotencyKey: "grant-alice",
	}); err != nil {
		t.Fatalf("issue to alice: %v", err)
	}
	if _, err := svc.Issue(ctx, IssueInput{
		AdminID: admin, UserID: bob, DenominationCents: 10000, Units: 2, IdempotencyKey: "grant-bob",
	}); err != nil {
		t.Fatalf("issue to bob: %v", err)
	}
	sourceLine := creditLineFor(t, conn, alice, 10000)
	destBefore := creditLineFor(t, conn, bob, 10000)

	if _, err := svc.Transfer(ctx, TransferInput{
		FromUserID: alice, ToUserID: bob, LineID: sourceLine.ID, Quantity: 2, IdempotencyKey: "move",
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	var bobLines int64
	if err := conn.Model(&models.InventoryItem{}).
		Where("inventory_id = ?", destBefore.InventoryID).
		Count(&bobLines).Error; err != nil {
		t.Fatalf("count destination lines: %v", err)
	}
	if bobLines != 1 {
		t.Fatalf("transfer must merge into the existing credit line, got %d lines", bobLines)
	}
	destAfter := creditLineFor(t, conn, bob, 10000)
	if destAfter.ID != destBefore.ID {
		t.Fatal("merged line must keep its identity")
	}
	if destAfter.Quantity != 4 {
		t.Fatalf("expected merged quantity 4, got %d", destAfter.Quantity)
	}
	if destAfter.VerificationStatus != enums.VerificationStatusVerified {
		t.Fatalf("credit lines stay verified, got %q", destAfter.VerificationStatus)
	}
}

func TestTransferRejectsUnverifiedItem(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	alice := seedUser(t, conn, enums.UserRoleUser)
	bob := seedUser(t, conn, enums.UserRoleUser)
	lineID, _ := seedOrdinaryLine(t, conn, alice, 4, enums.VerificationStatusUnverified, false)

	_, err := svc.Transfer(ctx, TransferInput{FromUserID: alice, ToUserID: bob, LineID: lineID, Quantity: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotVerified {
		t.Fatalf("expected NotVerified, got %v", err)
	}
	if got := lineQuantity(t, conn, lineID); got != 4 {
		t.Fatalf("failed transfer must leave source unchanged, got %d", got)
	}
}

func TestTransferRejectsListedItem(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	alice := seedUser(t, conn, enums.UserRoleUser)
	bob := seedUser(t, conn, enums.UserRoleUser)
	lineID, _ := seedOrdinaryLine(t, conn, alice, 4, enums.VerificationStatusVerified, true)

	_, err := svc.Transfer(ctx, TransferInput{FromUserID: alice, ToUserID: bob, LineID: lineID, Quantity: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeItemListed {
		t.Fatalf("expected ItemListed, got %v", err)
	}
}

func TestTransferGuards(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	admin := seedUser(t, conn, enums.UserRoleAdmin)
	alice := seedUser(t, conn, enums.UserRoleUser)
	bob := seedUser(t, conn, enums.UserRoleUser)
	mallory := seedUser(t, conn, enums.UserRoleUser)

	if _, err := svc.Issue(ctx, IssueInput{
		AdminID: admin, UserID: alice, DenominationCents: 10000, Units: 2, IdempotencyKey: "seed",
	}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	line := creditLineFor(t, conn, alice, 10000)

	cases := []struct {
		name  string
		input TransferInput
		code  pkgerrors.Code
	}{
		{
			name:  "zero quantity",
			input: TransferInput{FromUserID: alice, ToUserID: bob, LineID: line.ID, Quantity: 0},
			code:  pkgerrors.CodeInvalidQuantity,
		},
		{
			name:  "self transfer",
			input: TransferInput{FromUserID: alice, ToUserID: alice, LineID: line.ID, Quantity: 1},
			code:  pkgerrors.CodeInvalidTransfer,
		},
		{
			name:  "missing destination",
			input: TransferInput{FromUserID: alice, ToUserID: uuid.New(), LineID: line.ID, Quantity: 1},
			code:  pkgerrors.CodeUserNotFound,
		},
		{
			name:  "missing line",
			input: TransferInput{FromUserID: alice, ToUserID: bob, LineID: uuid.New(), Quantity: 1},
			code:  pkgerrors.CodeItemNotFound,
		},
		{
			name:  "not the owner",
			input: TransferInput{FromUserID: mallory, ToUserID: bob, LineID: line.ID, Quantity: 1},
			code:  pkgerrors.CodeForbidden,
		},
		{
			name:  "insufficient quantity",
			input: TransferInput{FromUserID: alice, ToUserID: bob, LineID: line.ID, Quantity: 10},
			code:  pkgerrors.CodeInsufficientQuantity,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Transfer(ctx, tc.input)
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	if got := lineQuantity(t, conn, line.ID); got != 2 {
		t.Fatalf("failed transfers must not mutate, got %d", got)
	}
}

func TestTransferFeatureDisabled(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, config.FeatureFlagsConfig{CreditEnabled: true, TransfersEnabled: false})
	ctx := context.Background()
	alice := seedUser(t, conn, enums.UserRoleUser)
	bob := seedUser(t, conn, enums.UserRoleUser)
	lineID, _ := seedOrdinaryLine(t, conn, alice, 4, enums.VerificationStatusVerified, false)

	_, err := svc.Transfer(ctx, TransferInput{FromUserID: alice, ToUserID: bob, LineID: lineID, Quantity: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeFeatureDisabled {
		t.Fatalf("expected FeatureDisabled, got %v", err)
	}
}

func TestTransferIdempotencyReplay(t *testing.T) {
	t.Parallel()

	svc, conn := newTestEngine(t, allFlags())
	ctx := context.Background()
	admin := seedUser(t, conn, enums.UserRoleAdmin)
	alice := seedUser(t, conn, enums.UserRoleUser)
	bob := seedUser(t, conn, enums.UserRoleUser)

	if _, err := svc.Issue(ctx, IssueInput{
		AdminID: admin, UserID: alice, DenominationCents: 10000, Units: 5, IdempotencyKey: "k1",
	}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	line := creditLineFor(t, conn, alice, 10000)

	input := TransferInput{FromUserID: alice, ToUserID: bob, LineID: line.ID, Quantity: 2, IdempotencyKey: "k2"}
	if _, err := svc.Transfer(ctx, input); err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	_, err := svc.Transfer(ctx, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeIdempotentReplay {
		t.Fatalf("expected IdempotentReplay, got %v", err)
	}
	if got := lineQuantity(t, conn, line.ID); got != 3 {
		t.Fatalf("replay must not mutate, got %d", got)
	}
}
