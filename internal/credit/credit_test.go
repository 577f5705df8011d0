package credit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/internal/catalog"
	"github.com/cardhaven/cardhaven-backend/internal/idempotency"
	"github.com/cardhaven/cardhaven-backend/internal/inventory"
	"github.com/cardhaven/cardhaven-backend/internal/ledger"
	"github.com/cardhaven/cardhaven-backend/internal/users"
	"github.com/cardhaven/cardhaven-backend/pkg/config"
	"github.com/cardhaven/cardhaven-backend/pkg/db"
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	dbtxn "github.com/cardhaven/cardhaven-backend/pkg/db/txn"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
	"github.com/cardhaven/cardhaven-backend/pkg/logger"
	"github.com/cardhaven/cardhaven-backend/pkg/outbox"
)

func allFlags() config.FeatureFlagsConfig {
	return config.FeatureFlagsConfig{CreditEnabled: true, TransfersEnabled: true}
}

func newTestEngine(t *testing.T, flags config.FeatureFlagsConfig) (Service, *gorm.DB) {
	t.Helper()

	dsn := "file:credit_" + uuid.NewString() + "?mode=memory&cache=shared"
	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: "sqlite"}, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	conn := client.DB()
	if err := conn.AutoMigrate(
		&models.User{},
		&models.Card{},
		&models.UserInventory{},
		&models.InventoryItem{},
		&models.CreditLedgerEntry{},
		&models.IdempotencyKey{},
		&models.InventoryTransferLog{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := logger.New(logger.Options{Output: io.Discard})
	runner, err := dbtxn.NewRunner(client, config.TxnConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}, log, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	svc, err := NewService(
		runner,
		users.NewRepository(conn),
		catalog.NewRepository(conn),
		inventory.NewRepository(conn),
		ledger.NewRepository(conn),
		idempotency.NewGuard(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		flags,
		log,
		nil,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func seedUser(t *testing.T, conn *gorm.DB, role enums.UserRole) uuid.UUID {
	t.Helper()
	user := models.User{
		Email:       uuid.NewString() + "@example.com",
		DisplayName: "test user",
		Role:        role,
		IsActive:    true,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func seedOrdinaryLine(t *testing.T, conn *gorm.DB, userID uuid.UUID, qty int64, status enums.VerificationStatus, listed bool) (uuid.UUID, uuid.UUID) {
	t.Helper()

	card := models.Card{Name: "Shadow Wing", SetName: "BASE", PriceCents: 12000}
	if err := conn.Create(&card).Error; err != nil {
		t.Fatalf("seed card: %v", err)
	}
	container := models.UserInventory{UserID: userID}
	if err := conn.Where("user_id = ?", userID).FirstOrCreate(&container).Error; err != nil {
		t.Fatalf("seed container: %v", err)
	}
	line := models.InventoryItem{
		InventoryID:        container.ID,
		CardID:             card.ID,
		Quantity:           qty,
		VerificationStatus: status,
		ListedForSale:      listed,
	}
	if err := conn.Create(&line).Error; err != nil {
		t.Fatalf("seed line: %v", err)
	}
	return line.ID, card.ID
}

func lineQuantity(t *testing.T, conn *gorm.DB, lineID uuid.UUID) int64 {
	t.Helper()
	var line models.InventoryItem
	if err := conn.First(&line, "id = ?", lineID).Error; err != nil {
		t.Fatalf("load line: %v", err)
	}
	return line.Quantity
}

func creditLineFor(t *testing.T, conn *gorm.DB, userID uuid.UUID, denomCents int64) *models.InventoryItem {
	t.Helper()
	var container models.UserInventory
	if err := conn.First(&container, "user_id = ?", userID).Error; err != nil {
		t.Fatalf("load container: %v", err)
	}
	var line models.InventoryItem
	err := conn.
		Joins("JOIN cards ON cards.id = inventory_items.card_id").
		Where("inventory_items.inventory_id = ?", container.ID).
		Where("cards.set_name = ? AND cards.price_cents = ?", models.CreditSetName, denomCents).
		First(&line).Error
	if err != nil {
		t.Fatalf("load credit line: %v", err)
	}
	return &line
}

func ledgerEntries(t *testing.T, conn *gorm.DB, userID uuid.UUID) []models.CreditLedgerEntry {
	t.Helper()
	var entries []models.CreditLedgerEntry
	if err := conn.Where("user_id = ?", userID).Order("created_at ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return entries
}

func countOutboxEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	return count
}
