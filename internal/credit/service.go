// Package credit implements the store-credit engine: issuing credit tokens,
// transferring inventory between users, and redeeming held credit against an
// amount due. Every mutating operation runs inside a single retried
// transaction; no partial application is observable.
package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/internal/catalog"
	"github.com/cardhaven/cardhaven-backend/internal/idempotency"
	"github.com/cardhaven/cardhaven-backend/internal/inventory"
	"github.com/cardhaven/cardhaven-backend/internal/ledger"
	"github.com/cardhaven/cardhaven-backend/internal/users"
	"github.com/cardhaven/cardhaven-backend/pkg/config"
	"github.com/cardhaven/cardhaven-backend/pkg/enums"
	pkgerrors "github.com/cardhaven/cardhaven-backend/pkg/errors"
	"github.com/cardhaven/cardhaven-backend/pkg/logger"
	"github.com/cardhaven/cardhaven-backend/pkg/metrics"
	"github.com/cardhaven/cardhaven-backend/pkg/outbox"
)

// Operation labels used for logs and metrics.
const (
	opIssue    = "issue"
	opTransfer = "transfer"
	opRedeem   = "redeem"
)

type txRunner interface {
	RunInTx(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the engine's boundary surface.
type Service interface {
	Issue(ctx context.Context, input IssueInput) (*IssueResult, error)
	Transfer(ctx context.Context, input TransferInput) (*TransferResult, error)
	ApplyCredits(ctx context.Context, input RedeemInput) (*RedeemResult, error)
}

type service struct {
	tx        txRunner
	usersRepo users.Repository
	cards     catalog.Repository
	inv       inventory.Repository
	entries   ledger.Repository
	guard     idempotency.Guard
	outbox    outboxPublisher
	flags     config.FeatureFlagsConfig
	logg      *logger.Logger
	metrics   *metrics.EngineMetrics
	validate  *validator.Validate
}

// NewService builds the credit engine. Feature toggles are captured at
// construction so tests can run differently-configured engines side by side.
// Metrics may be nil.
func NewService(
	tx txRunner,
	usersRepo users.Repository,
	cards catalog.Repository,
	inv inventory.Repository,
	entries ledger.Repository,
	guard idempotency.Guard,
	publisher outboxPublisher,
	flags config.FeatureFlagsConfig,
	logg *logger.Logger,
	engMetrics *metrics.EngineMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if cards == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if entries == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        tx,
		usersRepo: usersRepo,
		cards:     cards,
		inv:       inv,
		entries:   entries,
		guard:     guard,
		outbox:    publisher,
		flags:     flags,
		logg:      logg,
		metrics:   engMetrics,
		validate:  validator.New(),
	}, nil
}

// creditLineSeed is the line state for newly created credit lines: credit
// tokens are always verified and never independently re-verified.
func creditLineSeed(now time.Time) inventory.LineSeed {
	return inventory.LineSeed{
		VerificationStatus: enums.VerificationStatusVerified,
		VerifiedAt:         &now,
	}
}

// observe records the outcome of one operation. Unexpected failures get a
// full diagnostic dump; expected business rejections stay quiet.
func (s *service) observe(ctx context.Context, operation string, start time.Time, err error) {
	s.metrics.ObserveDuration(operation, time.Since(start))
	if err == nil {
		s.metrics.IncSuccess(operation)
		return
	}
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	s.metrics.IncFailure(operation, string(code))
	if code == pkgerrors.CodeInternal || code == pkgerrors.CodeDependency {
		logCtx := s.logg.WithField(ctx, "dump", pkgerrors.Dump(err))
		s.logg.Error(logCtx, operation+" failed", err)
	}
}
