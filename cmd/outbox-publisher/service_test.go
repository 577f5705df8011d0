package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/cardhaven/cardhaven-backend/pkg/config"
	"github.com/cardhaven/cardhaven-backend/pkg/db/models"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
	"github.com/cardhaven/cardhaven-backend/pkg/logger"
)

func newTestService(t *testing.T, repo *fakeOutboxRepo, bus *fakeBus) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
		Bus:        bus,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func testEvent(eventType enums.OutboxEventType) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateCreditLedgerEntry,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	issued := testEvent(enums.EventCreditIssued)
	transferred := testEvent(enums.EventInventoryTransferred)
	repo := &fakeOutboxRepo{pending: []models.OutboxEvent{issued, transferred}}
	bus := &fakeBus{}
	svc := newTestService(t, repo, bus)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report progress")
	}
	if len(bus.published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(bus.published))
	}
	if bus.published[0].channel != "test:events:"+string(enums.EventCreditIssued) {
		t.Fatalf("unexpected channel %s", bus.published[0].channel)
	}
	if len(repo.publishedIDs) != 2 {
		t.Fatalf("expected both events marked published, got %d", len(repo.publishedIDs))
	}
}

func TestProcessBatchMarksFailureAndContinues(t *testing.T) {
	bad := testEvent(enums.EventCreditIssued)
	good := testEvent(enums.EventCreditRedeemed)
	repo := &fakeOutboxRepo{pending: []models.OutboxEvent{bad, good}}
	bus := &fakeBus{failChannels: map[string]error{
		"test:events:" + string(enums.EventCreditIssued): errors.New("bus down"),
	}}
	svc := newTestService(t, repo, bus)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report progress")
	}
	if len(repo.failedIDs) != 1 || repo.failedIDs[0] != bad.ID {
		t.Fatalf("expected failing event marked failed, got %v", repo.failedIDs)
	}
	if len(repo.publishedIDs) != 1 || repo.publishedIDs[0] != good.ID {
		t.Fatalf("one failure must not block the rest, got %v", repo.publishedIDs)
	}
}

func TestProcessBatchEmptyIsIdle(t *testing.T) {
	repo := &fakeOutboxRepo{}
	svc := newTestService(t, repo, &fakeBus{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch: %v", err)
	}
	if processed {
		t.Fatal("empty batch must report idle")
	}
}

func TestNewServiceDefaults(t *testing.T) {
	svc := newTestService(t, &fakeOutboxRepo{}, &fakeBus{})
	if svc.batchSize != defaultBatchSize {
		t.Fatalf("expected default batch size, got %d", svc.batchSize)
	}
	if svc.maxAttempts != defaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", svc.maxAttempts)
	}
	if svc.pollInterval != defaultPollInterval {
		t.Fatalf("expected default poll interval, got %s", svc.pollInterval)
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	if _, err := NewService(ServiceParams{Logger: logg, Repository: &fakeOutboxRepo{}, Bus: &fakeBus{}}); err == nil {
		t.Fatal("expected error without config")
	}
	if _, err := NewService(ServiceParams{Config: &config.Config{}, Logger: logg, Bus: &fakeBus{}}); err == nil {
		t.Fatal("expected error without repository")
	}
	if _, err := NewService(ServiceParams{Config: &config.Config{}, Logger: logg, Repository: &fakeOutboxRepo{}}); err == nil {
		t.Fatal("expected error without bus")
	}
}

type fakeOutboxRepo struct {
	pending      []models.OutboxEvent
	publishedIDs []uuid.UUID
	failedIDs    []uuid.UUID
	fetchErr     error
}

func (f *fakeOutboxRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	return f.pending[:limit], nil
}

func (f *fakeOutboxRepo) MarkPublished(id uuid.UUID) error {
	f.publishedIDs = append(f.publishedIDs, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failedIDs = append(f.failedIDs, id)
	return nil
}

type publishedMessage struct {
	channel string
	payload any
}

type fakeBus struct {
	published    []publishedMessage
	failChannels map[string]error
}

func (f *fakeBus) Ping(context.Context) error { return nil }

func (f *fakeBus) Publish(ctx context.Context, channel string, payload any) error {
	if err := f.failChannels[channel]; err != nil {
		return err
	}
	f.published = append(f.published, publishedMessage{channel: channel, payload: payload})
	return nil
}

func (f *fakeBus) ChannelKey(name string) string { return "test:events:" + name }
