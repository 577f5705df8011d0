package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/cardhaven/cardhaven-backend/pkg/config"
	"github.com/cardhaven/cardhaven-backend/pkg/logger"
)

type outboxPruner interface {
	DeletePublishedBefore(cutoff time.Time) (int64, error)
}

type transferLogPruner interface {
	DeleteTransferLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type idempotencyKeyPruner interface {
	DeleteKeysBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJobParams configure the retention job.
type RetentionJobParams struct {
	Logger      *logger.Logger
	Outbox      outboxPruner
	TransferLog transferLogPruner
	Keys        idempotencyKeyPruner
	Retention   config.RetentionConfig
}

// NewRetentionJob builds the job that prunes published outbox events, old
// transfer audit rows, and stale idempotency keys. A zero-day window
// disables the corresponding prune.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.TransferLog == nil {
		return nil, fmt.Errorf("transfer log repository required")
	}
	if params.Keys == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	return &retentionJob{
		logg:      params.Logger,
		outbox:    params.Outbox,
		transfers: params.TransferLog,
		keys:      params.Keys,
		retention: params.Retention,
		now:       time.Now,
	}, nil
}

type retentionJob struct {
	logg      *logger.Logger
	outbox    outboxPruner
	transfers transferLogPruner
	keys      idempotencyKeyPruner
	retention config.RetentionConfig
	now       func() time.Time
}

func (j *retentionJob) Name() string { return "retention" }

// Run prunes each store independently so one failing table does not block
// the others. Errors are collected and returned together.
func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error
	deleted := map[string]int64{}

	if days := j.retention.OutboxDays; days > 0 {
		rows, err := j.outbox.DeletePublishedBefore(cutoff(now, days))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("outbox prune: %w", err))
		} else {
			deleted["outbox"] = rows
		}
	}
	if days := j.retention.TransferLogDays; days > 0 {
		rows, err := j.transfers.DeleteTransferLogsBefore(ctx, cutoff(now, days))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("transfer log prune: %w", err))
		} else {
			deleted["transfer_logs"] = rows
		}
	}
	if days := j.retention.IdempotencyKeyDays; days > 0 {
		rows, err := j.keys.DeleteKeysBefore(ctx, cutoff(now, days))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("idempotency key prune: %w", err))
		} else {
			deleted["idempotency_keys"] = rows
		}
	}
	if errs != nil {
		return errs
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"outbox_rows":       deleted["outbox"],
		"transfer_log_rows": deleted["transfer_logs"],
		"key_rows":          deleted["idempotency_keys"],
	})
	j.logg.Info(logCtx, "retention cleanup complete")
	return nil
}

func cutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}
