package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/fincore/internal/common/logger"
	"github.com/AlibekovAA/fincore/internal/observability/metrics"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig is sized for reads and compare-and-swap writes on the
// accounts table. Anything slower belongs to the caller's own deadline.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     time.Second,
	Multiplier:   2.0,
}

var retryableCodes = map[string]struct{}{
	"08000": {}, "08001": {}, "08003": {}, "08004": {}, "08006": {}, "08007": {}, "08P01": {},
	"40001": {}, "40P01": {},
	"55P03": {},
	"57P01": {},
}

// IsRetryableError reports connection loss, serialization failures, lock
// timeouts and admin shutdowns. Query results and caller cancellation are final.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryableCodes[pgErr.Code]
		return ok
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return pgconn.SafeToRetry(err)
}

// RetryWithBackoff runs fn until it succeeds, fails permanently or the attempts
// run out. Only idempotent statements may go through here.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, cfg RetryConfig, operation string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				metrics.DBRetries.WithLabelValues(operation, "recovered").Inc()
				log.WithFields(ctx, logger.Fields{
					"operation": operation,
					"attempts":  attempt,
					"action":    "db_retry_recovered",
				}).Info("database operation succeeded after retry")
			}
			return nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		metrics.DBRetries.WithLabelValues(operation, "retrying").Inc()
		log.WithFields(ctx, logger.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay.String(),
			"action":    "db_retry",
		}).Warnf("database operation failed, retrying: %v", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: context done during retry: %w", operation, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	metrics.DBRetries.WithLabelValues(operation, "exhausted").Inc()
	return fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.MaxAttempts, lastErr)
}
