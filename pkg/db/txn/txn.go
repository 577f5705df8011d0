// Package txn wraps database transactions with retry on transient conflicts.
//
// Multi-user mutations take row locks in a fixed order, but serialization
// failures and deadlocks still surface under load. The runner retries those a
// bounded number of times with exponential backoff; everything else returns
// to the caller on the first attempt.
package txn

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cardhaven/cardhaven-backend/pkg/config"
	"github.com/cardhaven/cardhaven-backend/pkg/db"
	"github.com/cardhaven/cardhaven-backend/pkg/logger"
	"github.com/cardhaven/cardhaven-backend/pkg/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = 50 * time.Millisecond
)

// beginner is the slice of db.Client the runner depends on.
type beginner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Runner executes transactional closures with bounded retry.
type Runner struct {
	client      beginner
	log         *logger.Logger
	engMetrics  *metrics.EngineMetrics
	maxAttempts int
	baseBackoff time.Duration
}

// NewRunner builds a Runner. Metrics may be nil.
func NewRunner(client beginner, cfg config.TxnConfig, log *logger.Logger, engMetrics *metrics.EngineMetrics) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("txn: client is required")
	}
	if log == nil {
		return nil, fmt.Errorf("txn: logger is required")
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBaseBackoff
	}
	return &Runner{
		client:      client,
		log:         log,
		engMetrics:  engMetrics,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
	}, nil
}

// RunInTx runs fn inside a transaction. Transient conflicts roll back and
// retry with doubling backoff (50ms, 100ms, 200ms at defaults); other errors
// return immediately. The operation label feeds logs and metrics only.
func (r *Runner) RunInTx(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	backoff := r.baseBackoff
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.client.WithTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !db.IsTransientConflict(err) || attempt == r.maxAttempts {
			return err
		}

		r.engMetrics.IncTxnRetry(operation)
		logCtx := r.log.WithFields(ctx, map[string]any{
			"operation": operation,
			"attempt":   attempt,
			"backoff":   backoff.String(),
			"error":     err.Error(),
		})
		r.log.Warn(logCtx, "retrying transaction after transient conflict")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
