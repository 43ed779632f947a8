package cleanup

import (
	"context"
	"time"

	"github.com/AlibekovAA/fincore/internal/common/clock"
	"github.com/AlibekovAA/fincore/internal/common/logger"
	"github.com/AlibekovAA/fincore/internal/observability/metrics"
)

type SessionStore interface {
	ClearStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
	ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper clears refresh material past its hard cap and expired OTP hashes.
// Token versions are left alone.
type Sweeper struct {
	store SessionStore
	grace time.Duration
	clock clock.Clock
	log   *logger.Logger
}

func NewSweeper(store SessionStore, grace time.Duration, clock clock.Clock, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store: store,
		grace: grace,
		clock: clock,
		log:   log,
	}
}

func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep and reports how many sessions and OTPs it cleared.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, int64) {
	now := s.clock.Now()

	sessions, err := s.store.ClearStaleSessions(ctx, now.Add(-s.grace))
	if err != nil {
		s.log.Errorf("session cleanup failed: %v", err)
	} else if sessions > 0 {
		metrics.SessionCleanupCleared.WithLabelValues("session").Add(float64(sessions))
		s.log.Infof("session cleanup: cleared %d stale sessions", sessions)
	}

	otps, err := s.store.ClearExpiredOTPs(ctx, now)
	if err != nil {
		s.log.Errorf("otp cleanup failed: %v", err)
	} else if otps > 0 {
		metrics.SessionCleanupCleared.WithLabelValues("otp").Add(float64(otps))
		s.log.Infof("otp cleanup: cleared %d expired otps", otps)
	}

	return sessions, otps
}
